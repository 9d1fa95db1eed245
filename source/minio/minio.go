// Package minio reads assets from MinIO and other S3-compatible stores.
package minio

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/kiln/source"
)

// Source implements source.Source and source.Lister for a MinIO bucket.
type Source struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a source over an existing client. prefix is prepended to
// every object key.
func New(client *minio.Client, bucket, prefix string) *Source {
	return &Source{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Dial connects to endpoint with static credentials.
func Dial(endpoint, accessKey, secretKey string, secure bool, bucket, prefix string) (*Source, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return New(client, bucket, prefix), nil
}

func (s *Source) key(name string) string {
	return path.Join(s.prefix, name)
}

// Read implements source.Source.
func (s *Source) Read(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}
	defer obj.Close()

	buf := make([]byte, info.Size)
	if _, err := io.ReadFull(obj, buf); err != nil {
		return nil, mapError(err)
	}
	return buf, nil
}

// List implements source.Lister.
func (s *Source) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func mapError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return source.ErrNotFound
	}
	return err
}
