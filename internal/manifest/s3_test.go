package manifest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/internal/config"
	rcerrors "github.com/vango-dev/routecore/internal/errors"
)

type fakeBucket struct {
	objects map[string]string
	err     error
	gets    []string
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets = append(f.gets, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoadS3(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{"site/prod/routes.yaml": blog}}

	m, err := LoadS3(context.Background(), bucket, "s3://site/prod/routes.yaml")
	require.NoError(t, err)
	assert.Equal(t, "s3://site/prod/routes.yaml", m.Path())
	assert.Equal(t, []string{"site/prod/routes.yaml"}, bucket.gets)

	r := newRouter(t, m)
	s := navigate(t, r, "/posts/5")
	assert.Equal(t, "5", leaf(s).LoaderData.(map[string]any)["id"])
}

func TestLoadS3Errors(t *testing.T) {
	tests := []struct {
		name   string
		uri    string
		bucket *fakeBucket
		code   string
	}{
		{"missing key", "s3://site/none.yaml", &fakeBucket{}, "R300"},
		{"missing bucket", "s3://site/a.yaml", &fakeBucket{err: &types.NoSuchBucket{}}, "R300"},
		{"not an s3 url", "https://site/a.yaml", &fakeBucket{}, "R300"},
		{"no key", "s3://site/", &fakeBucket{}, "R300"},
		{"transport", "s3://site/a.yaml", &fakeBucket{err: errors.New("connection refused")}, "R302"},
		{"invalid", "s3://site/a.yaml", &fakeBucket{objects: map[string]string{"site/a.yaml": "routes: [unclosed"}}, "R301"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadS3(context.Background(), tt.bucket, tt.uri)
			assert.True(t, rcerrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("s3://b/k.yaml"))
	assert.False(t, IsRemote("routes.yaml"))
	assert.False(t, IsRemote("/abs/routes.yaml"))
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(config.S3Config{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		PathStyle:       true,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	opts := c.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))

	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)

	anon := NewS3Client(config.S3Config{Region: "us-east-1"}).Options()
	assert.IsType(t, aws.AnonymousCredentials{}, anon.Credentials)
}
