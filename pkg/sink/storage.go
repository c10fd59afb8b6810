package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Sternrassler/rest-ingest/pkg/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_uploads_total",
	Help: "Total object uploads by result",
}, []string{"result"})

// DefaultUploadConcurrency is the number of parallel uploads.
const DefaultUploadConcurrency = 4

// ObjectStorage stores uploaded output files.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

// S3Storage implements ObjectStorage for S3 and S3-compatible services.
type S3Storage struct {
	client *s3.Client
	bucket string
}

// NewS3Storage creates an S3 client from an upload policy. Without static
// keys the default AWS credential chain is used; Endpoint selects an
// S3-compatible service with path-style addressing.
func NewS3Storage(ctx context.Context, cfg *config.UploadPolicy) (*S3Storage, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{client: client, bucket: cfg.Bucket}, nil
}

// Upload uploads an object to the bucket.
func (s *S3Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// ObjectKey joins prefix and the file's base name with "/".
func ObjectKey(prefix, file string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filepath.Base(file)
	}
	return path.Join(prefix, filepath.Base(file))
}

// Uploader copies written files to object storage with a bounded worker pool.
type Uploader struct {
	storage     ObjectStorage
	prefix      string
	concurrency int
	logger      zerolog.Logger
}

// NewUploader creates an uploader. concurrency <= 0 uses DefaultUploadConcurrency.
func NewUploader(storage ObjectStorage, prefix string, concurrency int, logger zerolog.Logger) *Uploader {
	if concurrency <= 0 {
		concurrency = DefaultUploadConcurrency
	}
	return &Uploader{storage: storage, prefix: prefix, concurrency: concurrency, logger: logger}
}

// UploadAll uploads every file and returns the object keys in input order.
// The first failure cancels the remaining uploads.
func (u *Uploader) UploadAll(ctx context.Context, files []string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make([]string, len(files))
	queue := make(chan int, len(files))
	for i := range files {
		queue <- i
	}
	close(queue)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	workers := u.concurrency
	if workers > len(files) {
		workers = len(files)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					return
				}
				key := ObjectKey(u.prefix, files[i])
				if err := u.uploadFile(ctx, key, files[i]); err != nil {
					uploadsTotal.WithLabelValues("error").Inc()
					errOnce.Do(func() {
						firstErr = fmt.Errorf("upload %s: %w", files[i], err)
						cancel()
					})
					return
				}
				uploadsTotal.WithLabelValues("success").Inc()
				keys[i] = key
				u.logger.Debug().
					Int("worker_id", workerID).
					Str("key", key).
					Msg("Uploaded file")
			}
		}(w)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.logger.Info().
		Int("files", len(files)).
		Str("prefix", u.prefix).
		Msg("Upload complete")
	return keys, nil
}

func (u *Uploader) uploadFile(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return u.storage.Upload(ctx, key, f, info.Size(), "application/json")
}
