package idsync

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// ObjectAPI is the part of the S3 client the syncer uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3Syncer.
type S3Config struct {
	Node           string
	Bucket         string
	Region         string
	Endpoint       string
	Prefix         string
	ForcePathStyle bool
	MaxRetries     int
}

// S3Syncer keeps identity sets in a bucket shared by the cluster.
type S3Syncer struct {
	client ObjectAPI
	bucket string
	prefix string
	node   string
	logger *slog.Logger
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(maxRetries),
	)
	if err != nil {
		return nil, errors.Collaborator(errors.ErrCodePeerSync, err, "failed to load AWS config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Syncer creates an S3 syncer over client.
func NewS3Syncer(client ObjectAPI, cfg S3Config, logger *slog.Logger) (*S3Syncer, error) {
	if client == nil {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "s3 client cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "s3 bucket cannot be empty")
	}
	if cfg.Node == "" || strings.Contains(cfg.Node, "/") {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "invalid node name '%s'", cfg.Node)
	}
	return &S3Syncer{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		node:   cfg.Node,
		logger: utils.Component(logger, "idsync"),
	}, nil
}

// Key returns the object key of backendID's set.
func (s *S3Syncer) Key(backendID int) string {
	return path.Join(s.prefix, s.node, strconv.Itoa(backendID), identity.FileName)
}

// Fetch downloads the set of backendID into path. Peers are not consulted.
func (s *S3Syncer) Fetch(ctx context.Context, dst string, _ []string, backendID int) error {
	key := s.Key(backendID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.translateError(err, "GetObject", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxBody+1))
	if err != nil {
		return errors.Collaborator(errors.ErrCodePeerSync, err, "failed to read object body %s", key)
	}
	ids, err := identity.Decode(data)
	if err != nil {
		return err
	}
	if err := identity.WriteFile(dst, ids); err != nil {
		return err
	}
	s.logger.Info("fetched ids from bucket", "bucket", s.bucket, "key", key, "ids", len(ids))
	return nil
}

// Push uploads the ids file at src.
func (s *S3Syncer) Push(ctx context.Context, src string, _ []string, backendID int) error {
	ids, err := identity.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}
	data := identity.Encode(ids)
	key := s.Key(backendID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return s.translateError(err, "PutObject", key)
	}
	s.logger.Debug("pushed ids to bucket", "bucket", s.bucket, "key", key, "ids", len(ids))
	return nil
}

func (s *S3Syncer) translateError(err error, operation, key string) error {
	var noKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	switch {
	case stderrors.As(err, &noKey):
		return errors.Newf(errors.ErrCodeNotFound, "object not found: %s", key).WithCause(err)
	case stderrors.As(err, &noBucket):
		return errors.Config(errors.ErrCodeInvalidConfig, "bucket not found: %s", s.bucket).WithCause(err)
	default:
		return errors.Collaborator(errors.ErrCodePeerSync, err, "%s failed for %s", operation, key)
	}
}
