// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package authz decides whether a signed-in user may act on a community
// record. Rules live in a Casbin policy: each (role, resource, action) is
// granted either for any record or only for records the caller owns.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Resources.
const (
	ResourceLocations     = "locations"
	ResourceCampLogs      = "camp_logs"
	ResourceCampLogImages = "camp_log_images"
	ResourceComments      = "comments"
	ResourceLikes         = "likes"
	ResourceKampaiNow     = "kampai_now"
	ResourceChatMessages  = "chat_messages"
	ResourceNotifications = "notifications"
	ResourceActivities    = "activities"
	ResourceProfiles      = "profiles"
	ResourceUploads       = "uploads"
)

// Actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
)

// Subject is the caller.
type Subject struct {
	UserID string
	Role   string
}

// Auditor observes every decision made for a signed-in caller.
type Auditor interface {
	AuthzDecision(sub Subject, resource, act, ownerID string, allowed bool)
}

// Enforcer wraps a synced Casbin enforcer.
type Enforcer struct {
	e       *casbin.SyncedEnforcer
	auditor Auditor
}

// SetAuditor installs a. Call it before the enforcer is shared.
func (en *Enforcer) SetAuditor(a Auditor) {
	en.auditor = a
}

// NewEnforcer loads the model and policy. An empty policyPath uses the
// embedded policy.
func NewEnforcer(policyPath string) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	var e *casbin.SyncedEnforcer
	if policyPath != "" {
		e, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		e, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(e, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	return &Enforcer{e: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		rule := make([]any, 0, len(parts)-1)
		for _, p := range parts[1:] {
			rule = append(rule, strings.TrimSpace(p))
		}
		var err error
		switch strings.TrimSpace(parts[0]) {
		case "p":
			_, err = e.AddPolicy(rule...)
		case "g":
			_, err = e.AddGroupingPolicy(rule...)
		default:
			err = fmt.Errorf("unknown policy type %q", parts[0])
		}
		if err != nil {
			return fmt.Errorf("policy line %q: %w", line, err)
		}
	}
	return nil
}

// Allowed reports whether sub may perform act on a resource record owned by
// ownerID. ownerID is empty for actions that do not target an existing record.
func (en *Enforcer) Allowed(sub Subject, resource, act, ownerID string) (bool, error) {
	if sub.UserID == "" {
		return false, nil
	}
	role := sub.Role
	if role == "" {
		role = "user"
	}
	ok, err := en.e.Enforce(sub.UserID, role, resource, act, ownerID)
	if err != nil {
		return false, fmt.Errorf("enforce: %w", err)
	}
	if en.auditor != nil {
		en.auditor.AuthzDecision(Subject{UserID: sub.UserID, Role: role}, resource, act, ownerID, ok)
	}
	return ok, nil
}

// Check is Allowed as an error: models.ErrUnauthorized for anonymous
// callers, models.ErrForbidden for a denial.
func (en *Enforcer) Check(sub Subject, resource, act, ownerID string) error {
	if sub.UserID == "" {
		return models.ErrUnauthorized
	}
	ok, err := en.Allowed(sub, resource, act, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		logging.Debug().Str("user_id", sub.UserID).Str("resource", resource).Str("action", act).Msg("Access denied")
		return models.ErrForbidden
	}
	return nil
}
