// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package testinfra starts Docker containers for integration tests. Every
// file carries the integration build tag, so plain go test never needs
// Docker:
//
//	go test -tags integration ./internal/media/...
//
// # MinIO Container
//
// MinIOContainer runs an S3-compatible server for the image store:
//
//	func TestS3Upload(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    minio, err := testinfra.NewMinIOContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.CleanupContainer(t, minio)
//
//	    store, err := media.NewS3Store(ctx, media.S3Config{
//	        Region:          minio.Region,
//	        Endpoint:        minio.Endpoint,
//	        AccessKeyID:     minio.AccessKey,
//	        SecretAccessKey: minio.SecretKey,
//	    })
//	    // ...
//	}
//
// First runs pull the image; tests are skipped when Docker is unavailable.
package testinfra
