package manifest

import (
	"context"
	stderrors "errors"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/routecore/internal/config"
	"github.com/vango-dev/routecore/internal/errors"
)

// ObjectGetter is the part of *s3.Client that remote manifests need.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// maxManifestSize caps how much of a remote object is read.
const maxManifestSize = 4 << 20

// IsRemote reports whether path names an s3:// object.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// NewS3Client builds a client from the s3 config section. Without static
// credentials requests are sent anonymously.
func NewS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "routecore",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return s3.New(opts)
}

// LoadS3 fetches and validates the manifest at s3://bucket/key.
func LoadS3(ctx context.Context, client ObjectGetter, uri string) (*Manifest, error) {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if stderrors.As(err, &missing) || stderrors.As(err, &noBucket) {
			return nil, errors.New("R300").
				WithDetail("No manifest at " + uri).
				WithSuggestion("Check the bucket and key, or the s3 endpoint in routecore.yaml")
		}
		return nil, errors.New("R302").WithDetail("GET " + uri).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxManifestSize+1))
	if err != nil {
		return nil, errors.New("R302").WithDetail("reading " + uri).Wrap(err)
	}
	if len(data) > maxManifestSize {
		return nil, errors.New("R301").WithDetailf("%s is larger than %d bytes", uri, maxManifestSize)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.path = uri
	return m, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return "", "", errors.New("R300").
			WithDetailf("%q is not an s3://bucket/key URL", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
