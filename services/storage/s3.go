// Package storagesvc archives files to S3.
package storagesvc

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/janus/core"
)

const basePath = "janus"

// types missing from the builtin mime table
var contentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
}

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Store struct {
	bucket string
	client S3API
}

var _ core.FileStore = (*S3Store)(nil)

// NewS3Store builds a store from the default AWS credentials chain.
func NewS3Store(ctx context.Context, conf *core.Config) (*S3Store, error) {
	cfg, err := awsconfig(ctx, conf.AWS.Region)
	if err != nil {
		return nil, err
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), conf.AWS.S3Bucket), nil
}

func awsconfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	return cfg, errors.Wrap(err, "loading AWS config")
}

func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{bucket: bucket, client: client}
}

// Upload stores data under `janus/<filename>` and returns the object key.
func (s *S3Store) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	filename = strings.TrimLeft(filename, "/")
	if filename == "" {
		return "", errors.New("filename is empty")
	}

	key := path.Join(basePath, filename)
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType, ok := contentTypes[ext]
	if !ok {
		mimeType = mime.TypeByExtension(ext)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", key)
	}
	return key, nil
}
