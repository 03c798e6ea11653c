// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package authz

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/kampai/internal/models"
)

func TestEnforcerEmbeddedPolicy(t *testing.T) {
	t.Parallel()

	e, err := NewEnforcer("")
	if err != nil {
		t.Fatal(err)
	}

	alice := Subject{UserID: "alice", Role: "user"}
	root := Subject{UserID: "root", Role: "admin"}
	anon := Subject{}

	tests := []struct {
		name     string
		sub      Subject
		resource string
		act      string
		owner    string
		want     error
	}{
		{"create location", alice, ResourceLocations, ActionCreate, "", nil},
		{"delete own comment", alice, ResourceComments, ActionDelete, "alice", nil},
		{"delete others comment", alice, ResourceComments, ActionDelete, "bob", models.ErrForbidden},
		{"delete others kampai", alice, ResourceKampaiNow, ActionDelete, "bob", models.ErrForbidden},
		{"update own profile", alice, ResourceProfiles, ActionUpdate, "alice", nil},
		{"update others profile", alice, ResourceProfiles, ActionUpdate, "bob", models.ErrForbidden},
		{"toggle like", alice, ResourceLikes, ActionToggle, "", nil},
		{"unknown action", alice, ResourceLocations, ActionDelete, "alice", models.ErrForbidden},
		{"admin deletes any comment", root, ResourceComments, ActionDelete, "bob", nil},
		{"admin creates", root, ResourceLocations, ActionCreate, "", nil},
		{"anonymous", anon, ResourceLikes, ActionToggle, "", models.ErrUnauthorized},
		{"empty role defaults to user", Subject{UserID: "carol"}, ResourceChatMessages, ActionDelete, "carol", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := e.Check(tt.sub, tt.resource, tt.act, tt.owner)
			if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Errorf("Check() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnforcerPolicyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.csv")
	if err := os.WriteFile(path, []byte("p, user, likes, toggle, any\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	e, err := NewEnforcer(path)
	if err != nil {
		t.Fatal(err)
	}
	sub := Subject{UserID: "alice", Role: "user"}
	if ok, _ := e.Allowed(sub, ResourceLikes, ActionToggle, ""); !ok {
		t.Error("file policy should allow toggling likes")
	}
	if ok, _ := e.Allowed(sub, ResourceLocations, ActionCreate, ""); ok {
		t.Error("file policy does not grant location creation")
	}
}

type recordingAuditor struct {
	decisions []bool
	roles     []string
}

func (r *recordingAuditor) AuthzDecision(sub Subject, _, _, _ string, allowed bool) {
	r.decisions = append(r.decisions, allowed)
	r.roles = append(r.roles, sub.Role)
}

func TestEnforcerNotifiesAuditor(t *testing.T) {
	t.Parallel()

	e, err := NewEnforcer("")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recordingAuditor{}
	e.SetAuditor(rec)

	_ = e.Check(Subject{UserID: "alice"}, ResourceComments, ActionDelete, "alice")
	_ = e.Check(Subject{UserID: "alice"}, ResourceComments, ActionDelete, "bob")
	_ = e.Check(Subject{}, ResourceComments, ActionDelete, "bob")

	if len(rec.decisions) != 2 {
		t.Fatalf("auditor saw %d decisions, want 2 (anonymous callers are not audited)", len(rec.decisions))
	}
	if !rec.decisions[0] || rec.decisions[1] {
		t.Errorf("decisions = %v, want [true false]", rec.decisions)
	}
	if rec.roles[0] != "user" {
		t.Errorf("role = %q, want defaulted %q", rec.roles[0], "user")
	}
}
