// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/assistant"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/checkin"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/kampai"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/profiles"
	"github.com/tomtom215/kampai/internal/validation"
)

var (
	// ErrFeatureDisabled is returned by handlers for optional integrations
	// that are not configured.
	ErrFeatureDisabled = errors.New("feature is not configured")

	errBadJSON   = errors.New("request body is not valid JSON")
	errBadQuery  = errors.New("invalid query parameter")
	errBadUpload = errors.New("expected a multipart form with a file part")
)

// badRequestErrors map to 400 with the error text as message.
var badRequestErrors = []error{
	errBadJSON,
	errBadQuery,
	errBadUpload,
	geo.ErrInvalidCoordinate,
	media.ErrInvalidImage,
	checkin.ErrEmptyComment,
	chatroom.ErrEmptyMessage,
	assistant.ErrEmptyMessage,
}

var unauthorizedErrors = []error{
	models.ErrUnauthorized,
	auth.ErrInvalidCredentials,
	auth.ErrInvalidToken,
	auth.ErrSessionNotFound,
	auth.ErrSessionExpired,
}

// writeServiceError maps a service error to its HTTP status. Unknown errors
// are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.Error
	if errors.As(err, &verr) {
		rw.ValidationError(verr.Error(), verr.Fields)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body is too large")
		return
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			rw.BadRequest(err.Error())
			return
		}
	}
	for _, target := range unauthorizedErrors {
		if errors.Is(err, target) {
			rw.Unauthorized(target.Error())
			return
		}
	}

	switch {
	case errors.Is(err, models.ErrForbidden):
		rw.Error(http.StatusForbidden, ErrCodeForbidden, "you can only change your own content")
	case errors.Is(err, models.ErrNotFound):
		rw.NotFound("resource not found")
	case errors.Is(err, auth.ErrEmailTaken):
		rw.Error(http.StatusConflict, ErrCodeConflict, auth.ErrEmailTaken.Error())
	case errors.Is(err, checkin.ErrTooSoon):
		rw.Error(http.StatusConflict, ErrCodeConflict, checkin.ErrTooSoon.Error())
	case errors.Is(err, kampai.ErrCooldown):
		rw.TooManyRequests(kampai.ErrCooldown.Error())
	case errors.Is(err, profiles.ErrUploadsDisabled), errors.Is(err, ErrFeatureDisabled):
		rw.ServiceUnavailable(err.Error())
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rw.ServiceUnavailable("upstream service is temporarily unavailable")
	case errors.Is(err, locations.ErrQueryFailed):
		rw.DatabaseError(err)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Request canceled")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Unhandled service error")
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "an unexpected error occurred")
	}
}

// uploadFormError keeps size violations intact and turns every other
// multipart parsing failure into a 400.
func uploadFormError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadUpload, err)
}
