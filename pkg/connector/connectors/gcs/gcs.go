// Package gcs stores objects as JSON documents in a Google Cloud Storage
// bucket, using the same key layout as the s3 connector.
package gcs

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/connectors/objectstore"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Name is the registered connector type.
const Name = "gcs"

// Connector is a GCS bucket connector.
type Connector struct {
	*base.BaseConnector

	client *storage.Client
	bucket *storage.BucketHandle
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

// New creates an uninitialized GCS connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name, "1.0.0")}
}

func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}
	conn := &cfg.Connection
	if conn.Bucket == "" {
		return errors.New(errors.ErrorTypeConfig, "connection.bucket is required")
	}

	client, err := storage.NewClient(ctx, clientOptions(conn)...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create storage client")
	}
	c.client = client
	c.bucket = client.Bucket(conn.Bucket)
	c.layout = objectstore.NewLayout(conn)
	c.SetHealthCheck(c.bucketAttrs)

	c.Logger().Info("gcs client ready", zap.String("bucket", conn.Bucket))
	return nil
}

func clientOptions(conn *config.ConnectionConfig) []option.ClientOption {
	var opts []option.ClientOption
	if conn.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conn.CredentialsFile))
	}
	if conn.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(conn.Endpoint))
	}
	if conn.Property("anonymous", "false") == "true" {
		opts = append(opts, option.WithoutAuthentication())
	}
	return opts
}

func (c *Connector) Dispose() error {
	if !c.BeginDispose() || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Connector) bucketAttrs(ctx context.Context) error {
	_, err := c.bucket.Attrs(ctx)
	return classify(err, "bucket is not reachable")
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return c.bucketAttrs(ctx)
}

func (c *Connector) ExecuteQuery(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	if uid, ok := objectstore.UidLookup(filter); ok {
		obj, _, err := c.read(ctx, objectClass, uid)
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
	query := &storage.Query{Prefix: c.layout.ClassPrefix(objectClass)}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "invalid attribute selection")
	}

	it := c.bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err, "failed to list objects")
		}
		uid, ok := c.layout.Uid(objectClass, attrs.Name)
		if !ok {
			continue
		}
		obj, _, err := c.read(ctx, objectClass, uid)
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !emit(obj) {
			return &core.SearchResult{RemainingResults: -1}, nil
		}
	}
	return &core.SearchResult{}, nil
}

// read returns the object and the generation it was read at.
func (c *Connector) read(ctx context.Context, objectClass core.ObjectClass, uid core.Uid) (*core.ConnectorObject, int64, error) {
	r, err := c.bucket.Object(c.layout.Key(objectClass, uid)).NewReader(ctx)
	if err != nil {
		return nil, 0, classify(err, "failed to read object")
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, classify(err, "failed to read object body")
	}
	obj, err := objectstore.Decode(objectClass, uid, body)
	if err != nil {
		return nil, 0, err
	}
	return obj, r.Attrs.Generation, nil
}

// write stores attrs under the given precondition.
func (c *Connector) write(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, cond storage.Conditions) error {
	body, err := objectstore.Encode(attrs)
	if err != nil {
		return err
	}
	w := c.bucket.Object(c.layout.Key(objectClass, uid)).If(cond).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return classify(err, "failed to write object")
	}
	return classify(w.Close(), "failed to write object")
}

// Create refuses to overwrite an existing object.
func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	uid, err := objectstore.NewUid(attrs)
	if err != nil {
		return "", err
	}
	if err := c.write(ctx, objectClass, uid, attrs, storage.Conditions{DoesNotExist: true}); err != nil {
		return "", err
	}
	return uid, nil
}

// Update writes only if the object is unchanged since it was read.
func (c *Connector) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	current, generation, err := c.read(ctx, objectClass, uid)
	if err != nil {
		return "", err
	}
	merged := objectstore.Merge(current.Attributes, attrs)
	if err := c.write(ctx, objectClass, uid, merged, storage.Conditions{GenerationMatch: generation}); err != nil {
		return "", err
	}
	return uid, nil
}

func (c *Connector) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return classify(c.bucket.Object(c.layout.Key(objectClass, uid)).Delete(ctx), "failed to delete object")
}

var fallback = base.NewErrorHandler()

func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, storage.ErrObjectNotExist) || stderrors.Is(err, storage.ErrBucketNotExist) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, message)
	}
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return errors.Wrap(err, errors.ErrorTypeNotFound, message)
		case http.StatusPreconditionFailed, http.StatusConflict:
			return errors.Wrap(err, errors.ErrorTypeConflict, message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(err, errors.ErrorTypeAuthentication, message)
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return errors.Wrap(err, errors.ErrorTypeTimeout, message)
		}
	}
	return fallback.Classify(err, message)
}
