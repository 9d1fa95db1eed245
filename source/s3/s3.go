// Package s3 reads assets from Amazon S3.
//
//	src, err := s3.NewFromEnv(ctx, "game-assets", s3.WithPrefix("release/"))
//	raw, err := src.Read(ctx, "textures/rock.ktx.zst")
//
// Objects are sized with HeadObject and fetched with the SDK's concurrent
// ranged downloader.
package s3

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/kiln/source"
)

// Client is the subset of the S3 API the source uses.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type options struct {
	prefix      string
	region      string
	partSize    int64
	concurrency int
}

// Option configures a Source.
type Option func(*options)

// WithPrefix prepends prefix to every object key.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithRegion overrides the region resolved by NewFromEnv.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithPartSize sets the ranged download part size in bytes.
func WithPartSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.partSize = n
		}
	}
}

// WithConcurrency sets how many parts are downloaded in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// Source implements source.Source and source.Lister for an S3 bucket.
type Source struct {
	client     Client
	bucket     string
	prefix     string
	downloader *manager.Downloader
}

// New creates a source over an existing client.
func New(client Client, bucket string, opts ...Option) *Source {
	o := options{
		partSize:    manager.DefaultDownloadPartSize,
		concurrency: manager.DefaultDownloadConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Source{
		client: client,
		bucket: bucket,
		prefix: o.prefix,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = o.partSize
			d.Concurrency = o.concurrency
		}),
	}
}

// NewFromEnv creates a source using the default AWS credential chain.
func NewFromEnv(ctx context.Context, bucket string, opts ...Option) (*Source, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	return New(s3.NewFromConfig(cfg), bucket, opts...), nil
}

func (s *Source) key(name string) string {
	return path.Join(s.prefix, name)
}

// Read implements source.Source.
func (s *Source) Read(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}

	size := aws.ToInt64(head.ContentLength)
	if size == 0 {
		return []byte{}, nil
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return buf.Bytes()[:n], nil
}

// List implements source.Lister. Returned names are relative to the prefix.
func (s *Source) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			name = strings.TrimPrefix(name, "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func mapError(err error) error {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return source.ErrNotFound
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return source.ErrNotFound
	}
	return err
}
