// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/breaker"
)

// ObjectStore puts objects and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, body []byte) (string, error)
}

// S3Config configures S3Store. Endpoint is set for S3-compatible services
// such as MinIO; it switches to path-style addressing.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL prefixes object URLs. Empty derives the AWS virtual
	// host URL, or Endpoint/bucket when Endpoint is set.
	PublicBaseURL string
	// BucketPrefix is prepended to logical bucket names.
	BucketPrefix string
}

// S3Store writes to S3 behind a circuit breaker.
type S3Store struct {
	cfg    S3Config
	client *s3.Client
	cb     *gobreaker.CircuitBreaker[struct{}]
}

// NewS3Store loads AWS configuration (static keys if given, otherwise the
// default credential chain) and builds the client.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		cfg:    cfg,
		client: client,
		cb:     breaker.New[struct{}]("s3", breaker.Settings{}),
	}, nil
}

// Put implements ObjectStore.
func (s *S3Store) Put(ctx context.Context, bucket, key, contentType string, body []byte) (string, error) {
	name := s.cfg.BucketPrefix + bucket
	_, err := s.cb.Execute(func() (struct{}, error) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(name),
			Key:          aws.String(key),
			Body:         bytes.NewReader(body),
			ContentType:  aws.String(contentType),
			CacheControl: aws.String("public, max-age=3600"),
		})
		return struct{}{}, err
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", name, key, err)
	}
	return s.publicURL(name, key), nil
}

func (s *S3Store) publicURL(bucket, key string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + bucket + "/" + key
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
	}
}

// MemoryStore keeps objects in process. It backs single-node development
// setups where no object storage is configured.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	contentType string
	body        []byte
}

// NewMemoryStore serves URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]memoryObject)}
}

// Put implements ObjectStore.
func (m *MemoryStore) Put(_ context.Context, bucket, key, contentType string, body []byte) (string, error) {
	m.mu.Lock()
	m.objects[bucket+"/"+key] = memoryObject{contentType: contentType, body: append([]byte(nil), body...)}
	m.mu.Unlock()
	return m.baseURL + "/" + bucket + "/" + key, nil
}

// Get returns a stored object; it serves the URLs Put hands out.
func (m *MemoryStore) Get(bucket, key string) (body []byte, contentType string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[bucket+"/"+key]
	return o.body, o.contentType, ok
}
