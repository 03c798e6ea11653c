// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package models

import "time"

// UserRef is the embedded author summary returned with community records.
type UserRef struct {
	Username string `json:"username"`
}

// UserSummary is a mention candidate.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LocationRef is the embedded location summary returned with check-ins.
type LocationRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"type"`
	District string `json:"district,omitempty"`
}

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`
	PreferredActivities []string  `json:"preferred_activities"`
	Bio                 string    `json:"bio,omitempty"`
	AvatarURL           string    `json:"avatar_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// ProfileUpdate holds the mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username            *string  `json:"username,omitempty" validate:"omitempty,min=2,max=40"`
	PreferredActivities []string `json:"preferred_activities,omitempty" validate:"omitempty,dive,oneof=camp travel other"`
	Bio                 *string  `json:"bio,omitempty" validate:"omitempty,max=500"`
	AvatarURL           *string  `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// CampLog is a check-in at a location.
type CampLog struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	LocationID string           `json:"location_id"`
	Content    string           `json:"content,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Location   *LocationRef     `json:"location,omitempty"`
	User       *UserRef         `json:"user,omitempty"`
	Images     []CampLogImage   `json:"images"`
	Comments   []CampLogComment `json:"comments"`
}

// CheckInPosition is a check-in with the position of its location.
type CheckInPosition struct {
	CampLogID  string    `json:"camp_log_id"`
	UserID     string    `json:"user_id"`
	LocationID string    `json:"location_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CreatedAt  time.Time `json:"created_at"`
}

// CampLogImage is an uploaded photo attached to a check-in.
type CampLogImage struct {
	ID        string    `json:"id"`
	CampLogID string    `json:"camp_log_id"`
	ImageURL  string    `json:"image_url"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CampLogComment carries text, an image, or both.
type CampLogComment struct {
	ID        string    `json:"id"`
	CampLogID string    `json:"camp_log_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	User      *UserRef  `json:"user,omitempty"`
}

// LikeStatus is the like count of a target plus whether the caller likes it.
type LikeStatus struct {
	TargetID string `json:"target_id"`
	Count    int    `json:"count"`
	Liked    bool   `json:"liked"`
}

// KampaiNow announces that a user is raising a glass at a location right now.
type KampaiNow struct {
	ID          string       `json:"id"`
	LocationID  string       `json:"location_id"`
	UserID      string       `json:"user_id"`
	IsAnonymous bool         `json:"is_anonymous"`
	ExpiresAt   time.Time    `json:"expires_at"`
	CreatedAt   time.Time    `json:"created_at"`
	User        *UserRef     `json:"user,omitempty"`
	Location    *LocationRef `json:"location,omitempty"`
}

// ChatMessage is a short-lived message in a location's chat room.
type ChatMessage struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	Mentions   []string  `json:"mentions"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	User       *UserRef  `json:"user,omitempty"`
}

// Notification is created for every user mentioned in a chat message.
type Notification struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	MessageID string       `json:"message_id"`
	Type      string       `json:"type"`
	IsRead    bool         `json:"is_read"`
	CreatedAt time.Time    `json:"created_at"`
	Message   *ChatMessage `json:"message,omitempty"`
}

// ActivityType classifies what a user is doing at a location.
type ActivityType string

const (
	ActivityCamp   ActivityType = "camp"
	ActivityTravel ActivityType = "travel"
	ActivityOther  ActivityType = "other"
)

// Activity is an expiring "I am here" status shown on the timeline.
type Activity struct {
	ID           string       `json:"id"`
	LocationID   string       `json:"location_id"`
	UserID       string       `json:"user_id"`
	ActivityType ActivityType `json:"activity_type"`
	IsAnonymous  bool         `json:"is_anonymous"`
	ExpiresAt    time.Time    `json:"expires_at"`
	CreatedAt    time.Time    `json:"created_at"`
	Location     *LocationRef `json:"location,omitempty"`
	User         *UserRef     `json:"user,omitempty"`
}
