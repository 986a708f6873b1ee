package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vasiliy-maslov/storefront-service/internal/config"
)

type minioStorage struct {
	client    *minio.Client
	bucket    string
	baseURL   string
	uploadTTL time.Duration
	readTTL   time.Duration
}

func NewMinioClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return client, nil
}

func NewMinioStorage(client *minio.Client, cfg config.StorageConfig) Storage {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &minioStorage{
		client:    client,
		bucket:    cfg.Bucket,
		baseURL:   base,
		uploadTTL: cfg.UploadURLTTL,
		readTTL:   cfg.ReadURLTTL,
	}
}

func (s *minioStorage) SignedUploadURL(ctx context.Context, objectPath string) (*SignedURL, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, objectPath, s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to sign upload for %s: %w", objectPath, err)
	}
	return &SignedURL{URL: u.String(), Path: objectPath, ExpiresAt: time.Now().UTC().Add(s.uploadTTL)}, nil
}

func (s *minioStorage) SignedReadURL(ctx context.Context, objectPath string) (*SignedURL, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectPath, s.readTTL, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to sign read for %s: %w", objectPath, err)
	}
	return &SignedURL{URL: u.String(), Path: objectPath, ExpiresAt: time.Now().UTC().Add(s.readTTL)}, nil
}

func (s *minioStorage) Delete(ctx context.Context, objectPath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: failed to delete %s: %w", objectPath, err)
	}
	return nil
}

func (s *minioStorage) PublicURL(objectPath string) string {
	return s.baseURL + "/" + objectPath
}

func (s *minioStorage) ObjectPath(publicURL string) (string, bool) {
	return ParseObjectPath(s.baseURL, publicURL)
}
