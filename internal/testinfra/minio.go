// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMinIOImage is the MinIO server image.
	DefaultMinIOImage = "minio/minio:latest"

	// DefaultMinIOPort is the S3 API port inside the container.
	DefaultMinIOPort = "9000"

	DefaultMinIOAccessKey = "kampai"
	DefaultMinIOSecretKey = "kampai-secret-key"
)

// MinIOContainer is a running MinIO server.
type MinIOContainer struct {
	testcontainers.Container
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// MinIOOption configures NewMinIOContainer.
type MinIOOption func(*minioConfig)

type minioConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMinIOImage overrides the container image.
func WithMinIOImage(image string) MinIOOption {
	return func(c *minioConfig) {
		c.image = image
	}
}

// WithStartTimeout sets how long to wait for the health endpoint.
func WithStartTimeout(timeout time.Duration) MinIOOption {
	return func(c *minioConfig) {
		c.startTimeout = timeout
	}
}

// NewMinIOContainer starts MinIO and waits until it reports live.
func NewMinIOContainer(ctx context.Context, opts ...MinIOOption) (*MinIOContainer, error) {
	cfg := &minioConfig{
		image:        DefaultMinIOImage,
		startTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMinIOPort + "/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     DefaultMinIOAccessKey,
			"MINIO_ROOT_PASSWORD": DefaultMinIOSecretKey,
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMinIOPort+"/tcp"),
			wait.ForHTTP("/minio/health/live").WithPort(DefaultMinIOPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultMinIOPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MinIOContainer{
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
		Region:    "us-east-1",
		AccessKey: DefaultMinIOAccessKey,
		SecretKey: DefaultMinIOSecretKey,
	}, nil
}

// Client returns an S3 client for the container with path-style addressing.
func (m *MinIOContainer) Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(m.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.AccessKey, m.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(m.Endpoint)
		o.UsePathStyle = true
	}), nil
}

// CreateBuckets creates each bucket.
func (m *MinIOContainer) CreateBuckets(ctx context.Context, names ...string) error {
	client, err := m.Client(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}
