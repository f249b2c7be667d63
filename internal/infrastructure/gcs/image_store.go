// Package gcs stores sweet images in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// NewClient creates a Google Cloud Storage client. If credsPath is empty, ADC is used.
func NewClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	if credsPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

type ImageStore struct {
	client *storage.Client
	bucket string
}

func NewImageStore(client *storage.Client, bucket string) *ImageStore {
	return &ImageStore{client: client, bucket: bucket}
}

// ObjectPath returns a fresh object name for an image of sweetID.
func ObjectPath(sweetID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join("sweets", sweetID, uuid.NewString()+ext)
}

// Upload writes r to a new object and returns its public URL.
func (s *ImageStore) Upload(ctx context.Context, sweetID, filename, contentType string, r io.Reader) (string, error) {
	objectPath := ObjectPath(sweetID, filename)
	wc := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // disable chunking for small files
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return PublicURL(s.bucket, objectPath), nil
}

// PublicURL builds a public URL for an object (assuming public read access or signed URLs)
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
