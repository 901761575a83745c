// Package s3 serves an S3 (or S3-compatible) bucket prefix as a
// read-only folder tree. Folders are common prefixes under "/".
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/Ning0612/Comicshelf/internal/domain"
	"github.com/Ning0612/Comicshelf/internal/metrics"
	"github.com/Ning0612/Comicshelf/internal/retry"
)

const delimiter = "/"

// API is the subset of the S3 client the adapter uses
type API interface {
	awss3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Settings locate the bucket and credentials
type Settings struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
}

// Adapter lists and downloads objects under Bucket/Prefix
type Adapter struct {
	api    API
	bucket string
	prefix string
	policy retry.Policy
}

// New wraps an existing client
func New(api API, bucket, prefix string, policy retry.Policy) *Adapter {
	return &Adapter{api: api, bucket: bucket, prefix: normalizePrefix(prefix), policy: policy}
}

// Connect loads AWS configuration (static keys, or else environment,
// shared profile and instance role) and builds an adapter. A custom
// endpoint enables path-style addressing for MinIO and similar servers.
func Connect(ctx context.Context, s Settings, policy retry.Policy) (*Adapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions(s)...)
	if err != nil {
		return nil, &domain.AuthError{Provider: "s3", Err: fmt.Errorf("failed to load AWS config: %w", err)}
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, s.Bucket, s.Prefix, policy), nil
}

func loadOptions(s Settings) []func(*awsconfig.LoadOptions) error {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.Profile))
	}
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	return opts
}

// ListChildren lists one level under a prefix. An empty ID lists the
// configured root prefix.
func (a *Adapter) ListChildren(ctx context.Context, folderID string) ([]domain.RemoteNode, error) {
	prefix := folderID
	if prefix == "" {
		prefix = a.prefix
	}
	prefix = normalizePrefix(prefix)

	paginator := awss3.NewListObjectsV2Paginator(a.api, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})

	var nodes []domain.RemoteNode
	for paginator.HasMorePages() {
		page, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*awss3.ListObjectsV2Output, error) {
			out, err := paginator.NextPage(ctx)
			return out, mapError("list s3://"+a.bucket+"/"+prefix, err)
		})
		metrics.RecordProviderCall("s3", "list", err == nil)
		if err != nil {
			return nil, err
		}

		for _, cp := range page.CommonPrefixes {
			p := aws.ToString(cp.Prefix)
			nodes = append(nodes, domain.RemoteNode{
				ID:       p,
				Name:     path.Base(strings.TrimSuffix(p, delimiter)),
				IsFolder: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix || strings.HasSuffix(key, delimiter) {
				continue // folder marker
			}
			nodes = append(nodes, domain.RemoteNode{
				ID:   key,
				Name: path.Base(key),
				Size: aws.ToInt64(obj.Size),
				MD5:  etagMD5(aws.ToString(obj.ETag)),
			})
		}
	}
	return nodes, nil
}

// Download streams an object
func (a *Adapter) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	out, err := retry.Do(ctx, a.policy, func(ctx context.Context) (*awss3.GetObjectOutput, error) {
		out, err := a.api.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(fileID),
		})
		return out, mapError("get s3://"+a.bucket+"/"+fileID, err)
	})
	metrics.RecordProviderCall("s3", "download", err == nil)
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// AccountLabel names the bucket and prefix
func (a *Adapter) AccountLabel(ctx context.Context) string {
	if a.bucket == "" {
		return domain.DefaultAccountLabel
	}
	return "s3://" + a.bucket + "/" + a.prefix
}

func normalizePrefix(p string) string {
	p = strings.TrimLeft(p, delimiter)
	if p != "" && !strings.HasSuffix(p, delimiter) {
		p += delimiter
	}
	return p
}

// etagMD5 returns the ETag when it is a plain MD5 digest. Multipart and
// SSE-KMS objects carry other values and are not verified.
func etagMD5(etag string) string {
	etag = strings.Trim(etag, `"`)
	if len(etag) != 32 || strings.Contains(etag, "-") {
		return ""
	}
	return strings.ToLower(etag)
}

// mapError converts smithy API errors to domain errors. Throttling and
// server errors are marked transient.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case "AccessDenied", "AllAccessDisabled":
			return fmt.Errorf("%s: %w", op, domain.ErrPermissionDenied)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return &domain.AuthError{Provider: "s3", Err: fmt.Errorf("%s: %w", op, err)}
		case "SlowDown", "Throttling", "ThrottlingException":
			return retry.Transient(fmt.Errorf("%s: %w", op, domain.ErrRateLimited))
		case "ServiceUnavailable", "InternalError", "RequestTimeout", "RequestTimeoutException":
			return retry.Transient(&domain.NetworkError{Op: op, Err: err})
		}
		if httpErr, ok := apiErr.(interface{ HTTPStatusCode() int }); ok && httpErr.HTTPStatusCode() >= 500 {
			return retry.Transient(&domain.NetworkError{Op: op, Err: err})
		}
		return &domain.NetworkError{Op: op, Err: err}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return retry.Transient(&domain.NetworkError{Op: op, Err: err})
	}
	return &domain.NetworkError{Op: op, Err: err}
}
