// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/kampai/internal/kvstore"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/validation"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memoryUsers) CreateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryUsers) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := kvstore.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	svc, err := NewService(Config{
		Secret:      testSecret,
		BcryptCost:  bcrypt.MinCost,
		AdminEmails: []string{"Admin@Kampai.jp"},
	}, &memoryUsers{users: map[string]models.User{}}, NewSessionStore(db))
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestTokenManagerRoundTrip(t *testing.T) {
	t.Parallel()

	tm, err := NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, exp, err := tm.Issue("u1", "taro", RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("expiry = %v, want about an hour from now", exp)
	}
	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID() != "u1" || claims.Username != "taro" || claims.Role != RoleUser {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenManagerRejects(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenManager("short", time.Hour); err == nil {
		t.Error("NewTokenManager() should reject a short secret")
	}

	tm, _ := NewTokenManager(testSecret, time.Hour)
	other, _ := NewTokenManager(strings.Repeat("x", 32), time.Hour)
	forged, _, _ := other.Issue("u1", "taro", RoleAdmin)

	expiredMgr, _ := NewTokenManager(testSecret, time.Minute)
	expiredMgr.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, _ := expiredMgr.Issue("u1", "taro", RoleUser)

	for name, token := range map[string]string{
		"garbage": "not.a.jwt",
		"forged":  forged,
		"expired": expired,
	} {
		if _, err := tm.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%s) error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("kanpai-2026", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "kanpai-2026") {
		t.Error("CheckPassword() = false for the right password")
	}
	if CheckPassword(hash, "kanpai-2025") {
		t.Error("CheckPassword() = true for a wrong password")
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	tokens, err := svc.SignUp(ctx, SignUpInput{Email: " Taro@Example.jp ", Password: "password1", Username: "taro"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if tokens.User.Email != "taro@example.jp" || tokens.User.Role != RoleUser {
		t.Errorf("user = %+v", tokens.User)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Error("SignUp() should return both tokens")
	}

	if _, err := svc.SignUp(ctx, SignUpInput{Email: "taro@example.jp", Password: "password2", Username: "taro2"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate SignUp() error = %v, want ErrEmailTaken", err)
	}
	if _, err := svc.SignUp(ctx, SignUpInput{Email: "bad", Password: "x", Username: "t"}); !errors.Is(err, validation.ErrInvalid) {
		t.Errorf("invalid SignUp() error = %v, want validation error", err)
	}

	if _, err := svc.SignIn(ctx, SignInInput{Email: "taro@example.jp", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("SignIn(wrong password) error = %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInInput{Email: "hanako@example.jp", Password: "password1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("SignIn(unknown) error = %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInInput{Email: "TARO@example.jp", Password: "password1"}); err != nil {
		t.Errorf("SignIn() error = %v", err)
	}

	admin, err := svc.SignUp(ctx, SignUpInput{Email: "admin@kampai.jp", Password: "password1", Username: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if admin.User.Role != RoleAdmin {
		t.Errorf("admin role = %q", admin.User.Role)
	}
}

func TestRefreshRotatesAndSignOut(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []Event
	sub := svc.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	first, err := svc.SignUp(ctx, SignUpInput{Email: "jiro@example.jp", Password: "password1", Username: "jiro"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("Refresh() should rotate the refresh token")
	}
	if _, err := svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("reusing a rotated token error = %v, want ErrSessionNotFound", err)
	}

	if err := svc.SignOut(ctx, second.RefreshToken); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if err := svc.SignOut(ctx, second.RefreshToken); err != nil {
		t.Errorf("second SignOut() error = %v", err)
	}
	svc.Unsubscribe(sub)
	if _, err := svc.SignIn(ctx, SignInInput{Email: "jiro@example.jp", Password: "password1"}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventSignedIn, EventTokenRefreshed, EventSignedOut}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %v", events, want)
	}
	for i, typ := range want {
		if events[i].Type != typ || events[i].UserID != first.User.ID {
			t.Errorf("events[%d] = %+v, want %s", i, events[i], typ)
		}
	}
}

func TestSessionStoreExpiryAndSignOutEverywhere(t *testing.T) {
	t.Parallel()

	db, err := kvstore.Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewSessionStore(db)
	ctx := context.Background()

	a, _ := store.Create(ctx, "u1", time.Hour)
	b, _ := store.Create(ctx, "u1", time.Hour)
	c, _ := store.Create(ctx, "u2", time.Hour)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := store.Get(ctx, a.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get(expired) error = %v", err)
	}
	store.now = time.Now

	n, err := store.DeleteByUser(ctx, "u1")
	if err != nil || n != 2 {
		t.Errorf("DeleteByUser() = %d, %v, want 2", n, err)
	}
	if _, err := store.Get(ctx, b.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(revoked) error = %v", err)
	}
	if _, err := store.Get(ctx, c.Token); err != nil {
		t.Errorf("other user's session should survive: %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tm, _ := NewTokenManager(testSecret, time.Hour)
	token, _, _ := tm.Issue("u9", "saburo", RoleUser)
	mw := NewMiddleware(tm)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "user="+UserID(r.Context()))
	})

	tests := []struct {
		name     string
		handler  http.Handler
		header   string
		cookie   string
		wantCode int
		wantBody string
	}{
		{"require bearer", mw.Require(echo), "Bearer " + token, "", http.StatusOK, "user=u9"},
		{"require cookie", mw.Require(echo), "", token, http.StatusOK, "user=u9"},
		{"require missing", mw.Require(echo), "", "", http.StatusUnauthorized, ""},
		{"require bad scheme", mw.Require(echo), "Basic " + token, "", http.StatusUnauthorized, ""},
		{"require bad token", mw.Require(echo), "Bearer nope", "", http.StatusUnauthorized, ""},
		{"optional anonymous", mw.Optional(echo), "", "", http.StatusOK, "user="},
		{"optional bad token", mw.Optional(echo), "Bearer nope", "", http.StatusOK, "user="},
		{"optional signed in", mw.Optional(echo), "Bearer " + token, "", http.StatusOK, "user=u9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
