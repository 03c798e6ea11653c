// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/activity"
	"github.com/tomtom215/kampai/internal/audit"
	"github.com/tomtom215/kampai/internal/backup"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/checkin"
	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/database"
	"github.com/tomtom215/kampai/internal/kampai"
	"github.com/tomtom215/kampai/internal/kvstore"
	"github.com/tomtom215/kampai/internal/likes"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/profiles"
	"github.com/tomtom215/kampai/internal/realtime"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type testServer struct {
	handler http.Handler
	files   *media.MemoryStore
	audit   *audit.Logger
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	kv, err := kvstore.Open("")
	if err != nil {
		t.Fatalf("kvstore.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	enforcer, err := authz.NewEnforcer("")
	if err != nil {
		t.Fatalf("authz.NewEnforcer() error = %v", err)
	}
	feed := realtime.NewMemoryFeed()
	t.Cleanup(func() { _ = feed.Close() })

	authSvc, err := auth.NewService(auth.Config{
		Secret:      testSecret,
		AccessTTL:   time.Hour,
		RefreshTTL:  24 * time.Hour,
		BcryptCost:  4,
		AdminEmails: []string{"admin@example.com"},
	}, db, auth.NewSessionStore(kv))
	if err != nil {
		t.Fatalf("auth.NewService() error = %v", err)
	}

	auditStore := audit.NewDuckDBStore(db.Conn())
	if err := auditStore.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	auditLog := audit.NewLogger(auditStore, audit.Config{})
	enforcer.SetAuditor(auditLog)
	backups, err := backup.NewManager(backup.Config{Dir: t.TempDir()}, db.Conn())
	if err != nil {
		t.Fatalf("backup.NewManager() error = %v", err)
	}
	authSvc.Subscribe(auditLog.RecordAuth)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = auditLog.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	files := media.NewMemoryStore("http://localhost/media")
	uploads := media.NewService(files)

	h := NewHandler(Deps{
		Auth:       authSvc,
		Audit:      auditLog,
		Backups:    backups,
		Locations:  locations.NewService(db, feed),
		CheckIns:   checkin.NewService(db, enforcer, feed),
		Likes:      likes.NewService(db, enforcer, feed),
		Kampai:     kampai.NewService(db, enforcer, feed, kampai.Config{}),
		Chat:       chatroom.NewService(db, enforcer, feed),
		Activities: activity.NewService(db, enforcer, feed),
		Profiles:   profiles.NewService(db, enforcer, uploads),
		Media:      uploads,
		MediaFiles: files,
		DB:         db,
		Version:    "test",
	})
	router := NewRouter(h, auth.NewMiddleware(authSvc.Tokens()), RouterConfig{
		CORSOrigins:       []string{"*"},
		RateLimitDisabled: true,
	})
	return &testServer{handler: router.Setup(), files: files, audit: auditLog}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Code != http.StatusNoContent && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, resp
}

// decodeData re-encodes resp.Data into v.
func decodeData(t *testing.T, resp APIResponse, v any) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatal(err)
	}
}

func (s *testServer) signUp(t *testing.T, email, username string) (token, userID string) {
	t.Helper()
	rec, resp := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", auth.SignUpInput{
		Email: email, Password: "correct horse", Username: username,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var tokens auth.Tokens
	decodeData(t, resp, &tokens)
	return tokens.AccessToken, tokens.User.ID
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		rec, resp := s.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK || !resp.Success {
			t.Errorf("GET %s = %d success=%v, want 200 true", path, rec.Code, resp.Success)
		}
	}
}

func TestSignUpSetsCookieAndAuthenticates(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", auth.SignUpInput{
		Email: "Camper@Example.com", Password: "correct horse", Username: "camper",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", rec.Code)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("token cookie = %+v, want HttpOnly cookie with a value", cookie)
	}

	rec, resp := s.do(t, http.MethodGet, "/api/v1/auth/me", cookie.Value, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, want 200", rec.Code)
	}
	var me struct {
		Username string `json:"username"`
	}
	decodeData(t, resp, &me)
	if me.Username != "camper" {
		t.Errorf("me.Username = %q, want camper", me.Username)
	}

	rec, resp = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", auth.SignUpInput{
		Email: "camper@example.com", Password: "correct horse", Username: "other",
	})
	if rec.Code != http.StatusConflict || resp.Error == nil || resp.Error.Code != ErrCodeConflict {
		t.Errorf("duplicate signup = %d %+v, want 409 CONFLICT", rec.Code, resp.Error)
	}
}

func TestUnauthenticatedWriteUsesEnvelope(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/kampai", "", kampai.CreateInput{LocationID: "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeUnauthorized {
		t.Errorf("body = %+v, want UNAUTHORIZED envelope", resp)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestLocationEndpoints(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)
	token, _ := s.signUp(t, "a@example.com", "alice")

	rec, resp := s.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
		"name": "Lakeside", "type": "camp", "latitude": 35.5, "longitude": 139.5, "district": "Hakone",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &created)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/locations?min_lat=35&min_lng=139&max_lat=36&max_lng=140", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bounds status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var found []struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &found)
	if len(found) != 1 || found[0].ID != created.ID {
		t.Errorf("bounds query = %+v, want [%s]", found, created.ID)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/locations?min_lat=35&min_lng=139&max_lat=36&max_lng=140&type=camp", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("category filter status = %d, want 200", rec.Code)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing bounds", "/api/v1/locations", http.StatusBadRequest},
		{"inverted bounds", "/api/v1/locations?min_lat=36&min_lng=139&max_lat=35&max_lng=140", http.StatusBadRequest},
		{"unknown category", "/api/v1/locations?min_lat=35&min_lng=139&max_lat=36&max_lng=140&type=castle", http.StatusBadRequest},
		{"unknown id", "/api/v1/locations/nope", http.StatusNotFound},
		{"known id", "/api/v1/locations/" + created.ID, http.StatusOK},
	}
	for _, tt := range tests {
		rec, _ := s.do(t, http.MethodGet, tt.path, "", nil)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}

	rec, resp = s.do(t, http.MethodGet, "/api/v1/locations/trending", "", nil)
	if rec.Code != http.StatusOK || resp.Meta == nil || resp.Meta.Pagination == nil {
		t.Fatalf("trending = %d meta=%+v, want 200 with pagination", rec.Code, resp.Meta)
	}
	if p := resp.Meta.Pagination; p.Count != 1 || p.Limit != locations.TrendingPageSize || p.HasMore {
		t.Errorf("trending pagination = %+v, want count 1 limit %d has_more false", p, locations.TrendingPageSize)
	}
}

func TestCheckInTwiceConflicts(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)
	token, _ := s.signUp(t, "b@example.com", "bob")

	_, resp := s.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
		"name": "Ridge", "type": "spot", "latitude": 36.1, "longitude": 138.2,
	})
	var loc struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &loc)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/camp-logs", token, checkin.CreateInput{LocationID: loc.ID, Content: "first"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first check-in = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/camp-logs", token, checkin.CreateInput{LocationID: loc.ID, Content: "second"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second check-in = %d, want 409", rec.Code)
	}

	rec, resp = s.do(t, http.MethodGet, "/api/v1/camp-logs/eligibility?location_id="+loc.ID, token, nil)
	var elig canCheckInResponse
	decodeData(t, resp, &elig)
	if rec.Code != http.StatusOK || elig.Allowed {
		t.Errorf("eligibility = %d %+v, want 200 allowed=false", rec.Code, elig)
	}
}

func TestLikeToggle(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)
	token, _ := s.signUp(t, "c@example.com", "carol")

	_, resp := s.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
		"name": "Onsen", "type": "hotel", "latitude": 35.2, "longitude": 139.0,
	})
	var loc struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &loc)

	var st struct {
		Count int  `json:"count"`
		Liked bool `json:"liked"`
	}
	_, resp = s.do(t, http.MethodPost, "/api/v1/likes/"+loc.ID+"/toggle", token, nil)
	decodeData(t, resp, &st)
	if st.Count != 1 || !st.Liked {
		t.Errorf("after like = %+v, want count 1 liked", st)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/likes/"+loc.ID, "", nil)
	decodeData(t, resp, &st)
	if st.Count != 1 || st.Liked {
		t.Errorf("anonymous status = %+v, want count 1 not liked", st)
	}
}

func TestOptionalIntegrationsDisabled(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)
	token, _ := s.signUp(t, "d@example.com", "dave")

	tests := []struct {
		method, path, token string
	}{
		{http.MethodGet, "/api/v1/weather?lat=35&lng=139", ""},
		{http.MethodGet, "/api/v1/geocode/reverse?lat=35&lng=139", ""},
		{http.MethodGet, "/api/v1/assistant", token},
	}
	for _, tt := range tests {
		rec, resp := s.do(t, tt.method, tt.path, tt.token, nil)
		if rec.Code != http.StatusServiceUnavailable || resp.Error == nil {
			t.Errorf("%s %s = %d, want 503", tt.method, tt.path, rec.Code)
		}
	}

	rec, _ := s.do(t, http.MethodGet, "/api/v1/weather?lat=135&lng=139", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("weather with bad coordinate = %d, want 400", rec.Code)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCommentImageUploadAndServe(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)
	token, _ := s.signUp(t, "e@example.com", "erin")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="a.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(pngBytes(t))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/comment-images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	var up uploadResponse
	decodeData(t, resp, &up)
	path := strings.TrimPrefix(up.URL, "http://localhost")
	if !strings.HasPrefix(path, "/media/"+media.BucketCommentImages+"/") {
		t.Fatalf("upload url = %q, want under /media/%s/", up.URL, media.BucketCommentImages)
	}

	req = httptest.NewRequest(http.MethodGet, path, nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("serve = %d %q, want 200 image/jpeg", rec.Code, rec.Header().Get("Content-Type"))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/uploads/comment-images", strings.NewReader("plain"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload = %d, want 400", rec.Code)
	}
}

func TestWriteServiceErrorHidesInternalErrors(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	writeServiceError(rec, req, io.ErrUnexpectedEOF)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "unexpected EOF") {
		t.Errorf("body leaks internal error: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	writeServiceError(rec, req.WithContext(ctx), ctx.Err())
	if rec.Code == http.StatusInternalServerError {
		t.Errorf("canceled request answered 500")
	}
}

func TestAuditTrailIsAdminOnly(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)

	adminToken, _ := s.signUp(t, "admin@example.com", "ranger")
	userToken, userID := s.signUp(t, "camper@example.com", "camper")

	rec, resp := s.do(t, http.MethodGet, "/api/v1/admin/audit", userToken, nil)
	if rec.Code != http.StatusForbidden || resp.Error == nil || resp.Error.Code != ErrCodeForbidden {
		t.Fatalf("user GET audit = %d %+v, want 403 FORBIDDEN", rec.Code, resp.Error)
	}

	// The logger writes asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, resp = s.do(t, http.MethodGet, "/api/v1/admin/audit?type=auth.sign_in&actor_id="+userID, adminToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("admin GET audit = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var events []audit.Event
		decodeData(t, resp, &events)
		if len(events) == 1 && events[0].Type == audit.EventTypeSignIn {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit events = %+v, want one sign-in for %s", events, userID)
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/admin/audit?since=yesterday", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want 400", rec.Code)
	}
}

func TestAdminBackups(t *testing.T) {
	t.Parallel()
	s := setupTestServer(t)

	adminToken, _ := s.signUp(t, "admin@example.com", "ranger")
	userToken, _ := s.signUp(t, "camper@example.com", "camper")

	if rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/backups", userToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("user POST backups = %d, want 403", rec.Code)
	}

	rec, resp := s.do(t, http.MethodPost, "/api/v1/admin/backups", adminToken, map[string]string{"notes": "before upgrade"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin POST backups = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created backup.Backup
	decodeData(t, resp, &created)
	if created.ID == "" || created.Notes != "before upgrade" || created.Trigger != backup.TriggerManual {
		t.Errorf("created backup = %+v", created)
	}

	rec, resp = s.do(t, http.MethodGet, "/api/v1/admin/backups", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin GET backups = %d, want 200", rec.Code)
	}
	var listed struct {
		Backups []backup.Backup `json:"backups"`
		Stats   backup.Stats    `json:"stats"`
	}
	decodeData(t, resp, &listed)
	if len(listed.Backups) != 1 || listed.Stats.Count != 1 {
		t.Errorf("GET backups = %+v, want one backup", listed)
	}

	rec, resp = s.do(t, http.MethodPost, "/api/v1/admin/backups/"+created.ID+"/verify", adminToken, nil)
	var verified struct {
		Valid bool `json:"valid"`
	}
	decodeData(t, resp, &verified)
	if rec.Code != http.StatusOK || !verified.Valid {
		t.Errorf("verify = %d %+v, want 200 valid", rec.Code, verified)
	}

	if rec, _ := s.do(t, http.MethodPost, "/api/v1/admin/backups/missing/verify", adminToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("verify missing = %d, want 404", rec.Code)
	}
}
