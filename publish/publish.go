// Package publish uploads snapshots to an S3 compatible object store, such as
// Cloudflare R2.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam"
)

// ContentType is sent with every upload.
const ContentType = "image/jpeg"

// Key returns the object key for the snapshot at localPath:
// {prefix}pictures/{file name}. The prefix is used as is, it normally ends
// in a slash.
func Key(prefix, localPath string) string {
	return prefix + path.Join("pictures", filepath.Base(localPath))
}

// Publisher uploads a snapshot file and returns the key it was stored under.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// S3Publisher uploads to one bucket.
type S3Publisher struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *zap.SugaredLogger
}

// Ensure S3Publisher implements interface Publisher.
var _ Publisher = (*S3Publisher)(nil)

// NewS3Publisher makes a publisher for the bucket, endpoint and credentials
// in cfg. Requests are not retried.
func NewS3Publisher(cfg plantcam.Config, logger *zap.SugaredLogger) (*S3Publisher, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.R2Region),
		Endpoint:         aws.String(cfg.Endpoint()),
		Credentials:      credentials.NewStaticCredentials(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, ""),
		S3ForcePathStyle: aws.Bool(true),
		MaxRetries:       aws.Int(0),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new object store session")
	}
	return NewPublisher(s3.New(sess), cfg.R2BucketName, cfg.R2ProjectPrefix, logger), nil
}

// NewPublisher makes a publisher using client.
func NewPublisher(client s3iface.S3API, bucket, prefix string, logger *zap.SugaredLogger) *S3Publisher {
	return &S3Publisher{client, bucket, prefix, logger}
}

// Publish reads the file at localPath and stores it under Key, replacing any
// object with that key. Service errors are returned as RequestError.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	buf, err := os.ReadFile(localPath)
	if err != nil {
		return "", errors.Wrap(err, "reading snapshot for upload")
	}
	key := Key(p.prefix, localPath)
	p.logger.Infow("uploading snapshot", "bucket", p.bucket, "key", key, "bytes", len(buf))

	_, err = p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf),
		ContentType:   aws.String(ContentType),
		ContentLength: aws.Int64(int64(len(buf))),
	})
	if err != nil {
		var rf awserr.RequestFailure
		if errors.As(err, &rf) {
			return "", errors.Wrapf(RequestError{rf.StatusCode(), rf.Code(), rf.Message()}, "put %s/%s", p.bucket, key)
		}
		return "", errors.Wrapf(err, "put %s/%s", p.bucket, key)
	}
	return key, nil
}

// RequestError is an error response from the object store.
type RequestError struct {
	StatusCode int    // HTTP status code, eg 403 or 500.
	Code       string // Service error code, eg "AccessDenied".
	Message    string
}

// Error returns a human-readable description of the error response.
func (e RequestError) Error() string {
	return fmt.Sprintf("object store error, status %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Ensure RequestError implements the error interface.
var _ error = RequestError{}
