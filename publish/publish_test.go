package publish_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plantcam/plantcam/publish"
)

type fakeS3 struct {
	s3iface.S3API
	calls int
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	f.calls++
	f.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	require.Equal(t, "plant-cam/pictures/20240615_0930.jpg", publish.Key("plant-cam/", "pictures/20240615_0930.jpg"))
	require.Equal(t, "plant-cam/pictures/cam1-20240615_0930.jpg", publish.Key("plant-cam/", "/var/lib/output/cam1-20240615_0930.jpg"))
	require.Equal(t, "pictures/20240615_0930.jpg", publish.Key("", "20240615_0930.jpg"))
}

func writeSnapshot(t *testing.T) (string, []byte) {
	t.Helper()
	content := []byte("\xff\xd8 not really a jpeg \xff\xd9")
	path := filepath.Join(t.TempDir(), "20240615_0930.jpg")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, content
}

func TestPublish(t *testing.T) {
	path, content := writeSnapshot(t)
	client := &fakeS3{}
	p := publish.NewPublisher(client, "plants", "plant-cam/", zap.NewNop().Sugar())

	key, err := p.Publish(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "plant-cam/pictures/20240615_0930.jpg", key)

	require.Equal(t, 1, client.calls)
	require.Equal(t, "plants", aws.StringValue(client.input.Bucket))
	require.Equal(t, key, aws.StringValue(client.input.Key))
	require.Equal(t, "image/jpeg", aws.StringValue(client.input.ContentType))
	require.Equal(t, int64(len(content)), aws.Int64Value(client.input.ContentLength))
	require.Equal(t, content, client.body)
}

func TestPublishRequestFailure(t *testing.T) {
	path, _ := writeSnapshot(t)
	client := &fakeS3{err: awserr.NewRequestFailure(awserr.New("AccessDenied", "Access Denied", nil), 403, "req-1")}
	p := publish.NewPublisher(client, "plants", "plant-cam/", zap.NewNop().Sugar())

	_, err := p.Publish(context.Background(), path)
	var rerr publish.RequestError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	require.Equal(t, publish.RequestError{StatusCode: 403, Code: "AccessDenied", Message: "Access Denied"}, rerr)
	require.Equal(t, 1, client.calls, "request retried")
}

func TestPublishTransportFailure(t *testing.T) {
	path, _ := writeSnapshot(t)
	cause := errors.New("connection refused")
	p := publish.NewPublisher(&fakeS3{err: cause}, "plants", "plant-cam/", zap.NewNop().Sugar())

	_, err := p.Publish(context.Background(), path)
	require.ErrorIs(t, err, cause)
}

func TestPublishMissingFile(t *testing.T) {
	client := &fakeS3{}
	p := publish.NewPublisher(client, "plants", "plant-cam/", zap.NewNop().Sugar())

	_, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Zero(t, client.calls)
}
