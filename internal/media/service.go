// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package media normalizes uploaded images and stores them in object
// storage.
package media

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
)

// Buckets.
const (
	BucketCommentImages = "comment-images"
	BucketAvatars       = "avatars"
)

var buckets = map[string]bool{BucketCommentImages: true, BucketAvatars: true}

// Service uploads images.
type Service struct {
	store ObjectStore
	now   func() time.Time
}

// NewService writes to store.
func NewService(store ObjectStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Upload normalizes the image read from r and stores it in bucket under a
// fresh "<unix-millis>-<random>.jpg" key. It returns the public URL.
func (s *Service) Upload(ctx context.Context, bucket, contentType string, size int64, r io.Reader) (string, error) {
	if !buckets[bucket] {
		return "", fmt.Errorf("%w: unknown bucket %q", ErrInvalidImage, bucket)
	}
	data, err := Normalize(r, contentType, size)
	if err != nil {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "rejected").Inc()
		return "", err
	}

	key := s.newKey()
	url, err := s.store.Put(ctx, bucket, key, "image/jpeg", data)
	if err != nil {
		metrics.ImageUploadsTotal.WithLabelValues(bucket, "error").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Image upload failed")
		return "", err
	}
	metrics.ImageUploadsTotal.WithLabelValues(bucket, "ok").Inc()
	logging.Ctx(ctx).Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("Image uploaded")
	return url, nil
}

func (s *Service) newKey() string {
	var b [5]byte
	_, _ = rand.Read(b[:])
	suffix := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b[:]))
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + suffix + ".jpg"
}
