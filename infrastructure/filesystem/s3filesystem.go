package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Storage reads import workbooks from S3 or the local disk.
type Storage struct {
	client S3API
}

func NewStorage(client S3API) *Storage {
	return &Storage{client: client}
}

// NewS3Storage uses the default AWS credential chain. region may be empty.
func NewS3Storage(ctx context.Context, region string) (*Storage, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewStorage(s3.NewFromConfig(cfg)), nil
}

func (s *Storage) ReadFile(ctx context.Context, bucket string, key string, outStream io.Writer) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucket, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(outStream, resp.Body); err != nil {
		return fmt.Errorf("failed to copy object %s from bucket %s: %w", key, bucket, err)
	}
	return nil
}

// ListFiles returns the keys under prefix that look like workbooks.
func (s *Storage) ListFiles(ctx context.Context, bucket, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && IsWorkbook(*obj.Key) {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

func IsWorkbook(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ParseS3URI splits "s3://bucket/key". ok is false for anything else.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open returns the workbook at source, an s3:// URI or a local path, along with
// the file name to upload it as. The S3 object is buffered to a temp file.
func (s *Storage) Open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	bucket, key, ok := ParseS3URI(source)
	if !ok {
		f, err := os.Open(source)
		if err != nil {
			return nil, "", err
		}
		return f, filepath.Base(source), nil
	}
	if s == nil || s.client == nil {
		return nil, "", fmt.Errorf("no S3 client configured for %s", source)
	}

	tmp, err := os.CreateTemp("", "worklog-import-*"+path.Ext(key))
	if err != nil {
		return nil, "", err
	}
	if err := s.ReadFile(ctx, bucket, key, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, "", err
	}
	return &tempFile{File: tmp}, path.Base(key), nil
}

type tempFile struct {
	*os.File
}

func (f *tempFile) Close() error {
	err := f.File.Close()
	os.Remove(f.File.Name())
	return err
}
