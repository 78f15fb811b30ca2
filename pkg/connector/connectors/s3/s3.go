// Package s3 stores objects as JSON documents in an S3 bucket, one key per
// object under a per-class prefix.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/connectors/objectstore"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Name is the registered connector type.
const Name = "s3"

// Connector is an S3 bucket connector.
type Connector struct {
	*base.BaseConnector

	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	layout *objectstore.Layout
}

var (
	_ core.PoolableConnector = (*Connector)(nil)
	_ core.TestOp            = (*Connector)(nil)
	_ core.SearchOp          = (*Connector)(nil)
	_ core.CreateOp          = (*Connector)(nil)
	_ core.UpdateOp          = (*Connector)(nil)
	_ core.DeleteOp          = (*Connector)(nil)
)

// New creates an uninitialized S3 connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name, "1.0.0")}
}

// Init loads AWS configuration from the environment. Static credentials are
// used when username (access key) and password (secret key) are set; an
// endpoint switches to path-style addressing for S3-compatible stores.
// Writes go through the multipart uploader, tuned by the upload_part_size and
// upload_concurrency properties.
func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}
	conn := &cfg.Connection
	if conn.Bucket == "" {
		return errors.New(errors.ErrorTypeConfig, "connection.bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if conn.Region != "" {
		opts = append(opts, awsconfig.WithRegion(conn.Region))
	}
	if conn.Username != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conn.Username, conn.Password, conn.Property("session_token", ""))))
	}
	if attempts := cfg.Reliability.Attempts(); attempts > 1 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(attempts))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to load aws configuration")
	}

	c.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conn.Endpoint != "" {
			o.BaseEndpoint = aws.String(conn.Endpoint)
			o.UsePathStyle = true
		}
	})
	c.uploader = manager.NewUploader(c.client, func(u *manager.Uploader) {
		u.PartSize = int64(conn.IntProperty("upload_part_size", int(manager.DefaultUploadPartSize)))
		u.Concurrency = conn.IntProperty("upload_concurrency", manager.DefaultUploadConcurrency)
	})
	c.bucket = conn.Bucket
	c.layout = objectstore.NewLayout(conn)
	c.SetHealthCheck(c.headBucket)

	c.Logger().Info("s3 client ready", zap.String("bucket", c.bucket), zap.String("region", awsCfg.Region))
	return nil
}

// Dispose is a no-op beyond the lifecycle guard; the SDK client holds no
// connections that need closing.
func (c *Connector) Dispose() error {
	c.BeginDispose()
	return nil
}

func (c *Connector) headBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	return classify(err, "bucket is not reachable")
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return c.headBucket(ctx)
}

// ExecuteQuery lists the class prefix and evaluates the filter in memory. A
// filter on the Uid alone reads the single key.
func (c *Connector) ExecuteQuery(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	if uid, ok := objectstore.UidLookup(filter); ok {
		obj, err := c.read(ctx, objectClass, uid)
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return &core.SearchResult{}, nil
		}
		if err != nil {
			return nil, err
		}
		if options.Offset() == 0 {
			handler(obj)
		}
		return &core.SearchResult{}, nil
	}

	emit := core.SkipMatching(filter, options.Offset(), handler)
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.layout.ClassPrefix(objectClass)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list objects")
		}
		for _, item := range page.Contents {
			uid, ok := c.layout.Uid(objectClass, aws.ToString(item.Key))
			if !ok {
				continue
			}
			obj, err := c.read(ctx, objectClass, uid)
			if errors.IsType(err, errors.ErrorTypeNotFound) {
				// deleted between list and read
				continue
			}
			if err != nil {
				return nil, err
			}
			if !emit(obj) {
				return &core.SearchResult{RemainingResults: -1}, nil
			}
		}
	}
	return &core.SearchResult{}, nil
}

func (c *Connector) read(ctx context.Context, objectClass core.ObjectClass, uid core.Uid) (*core.ConnectorObject, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.layout.Key(objectClass, uid)),
	})
	if err != nil {
		return nil, classify(err, "failed to read object")
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify(err, "failed to read object body")
	}
	return objectstore.Decode(objectClass, uid, body)
}

func (c *Connector) write(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}) error {
	body, err := objectstore.Encode(attrs)
	if err != nil {
		return err
	}
	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.layout.Key(objectClass, uid)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return classify(err, "failed to write object")
}

func (c *Connector) exists(ctx context.Context, objectClass core.ObjectClass, uid core.Uid) (bool, error) {
	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.layout.Key(objectClass, uid)),
	})
	if err == nil {
		return true, nil
	}
	if err = classify(err, "failed to stat object"); errors.IsType(err, errors.ErrorTypeNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	uid, err := objectstore.NewUid(attrs)
	if err != nil {
		return "", err
	}
	found, err := c.exists(ctx, objectClass, uid)
	if err != nil {
		return "", err
	}
	if found {
		return "", errors.Newf(errors.ErrorTypeConflict, "%s/%s already exists", objectClass, uid)
	}
	if err := c.write(ctx, objectClass, uid, attrs); err != nil {
		return "", err
	}
	return uid, nil
}

func (c *Connector) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	current, err := c.read(ctx, objectClass, uid)
	if err != nil {
		return "", err
	}
	if err := c.write(ctx, objectClass, uid, objectstore.Merge(current.Attributes, attrs)); err != nil {
		return "", err
	}
	return uid, nil
}

func (c *Connector) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	found, err := c.exists(ctx, objectClass, uid)
	if err != nil {
		return err
	}
	if !found {
		return errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.layout.Key(objectClass, uid)),
	})
	return classify(err, "failed to delete object")
}

var fallback = base.NewErrorHandler()

func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if stderrors.As(err, &noKey) || stderrors.As(err, &noBucket) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, message)
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		if t, ok := errorTypeForCode(apiErr.ErrorCode()); ok {
			return errors.Wrap(err, t, message)
		}
	}
	return fallback.Classify(err, message)
}

func errorTypeForCode(code string) (errors.ErrorType, bool) {
	switch code {
	case "NotFound", "NoSuchKey", "NoSuchBucket":
		return errors.ErrorTypeNotFound, true
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
		return errors.ErrorTypeAuthentication, true
	case "SlowDown", "RequestTimeout":
		return errors.ErrorTypeTimeout, true
	case "PreconditionFailed":
		return errors.ErrorTypeConflict, true
	}
	return "", false
}
