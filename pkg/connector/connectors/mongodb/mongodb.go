// Package mongodb serves collections through the official MongoDB driver.
// Object classes map to collections and the Uid maps to _id.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Name is the registered connector type.
const Name = "mongodb"

const disconnectTimeout = 5 * time.Second

// Connector is a MongoDB connector. Each instance owns its own client.
type Connector struct {
	*base.BaseConnector

	client   *mongo.Client
	database *mongo.Database
}

var (
	_ core.PoolableConnector = (*Connector)(nil)
	_ core.TestOp            = (*Connector)(nil)
	_ core.SearchOp          = (*Connector)(nil)
	_ core.CreateOp          = (*Connector)(nil)
	_ core.UpdateOp          = (*Connector)(nil)
	_ core.DeleteOp          = (*Connector)(nil)
	_ core.SubscribeOp       = (*Connector)(nil)
)

// New creates an uninitialized MongoDB connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name, "1.0.0")}
}

func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}
	if cfg.Connection.URL == "" {
		return errors.New(errors.ErrorTypeConfig, "connection.url is required")
	}
	if cfg.Connection.Database == "" {
		return errors.New(errors.ErrorTypeConfig, "connection.database is required")
	}

	clientOpts := options.Client().
		ApplyURI(cfg.Connection.URL).
		SetMaxPoolSize(1)
	if cfg.Timeouts.Connection > 0 {
		clientOpts.SetConnectTimeout(cfg.Timeouts.Connection)
		clientOpts.SetServerSelectionTimeout(cfg.Timeouts.Connection)
	}
	if cfg.Connection.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username: cfg.Connection.Username,
			Password: cfg.Connection.Password,
		})
	}

	err := c.ExecuteWithRetry(ctx, func() error {
		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return classify(err, "failed to connect to mongodb")
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return classify(err, "failed to reach mongodb")
		}
		c.client = client
		return nil
	})
	if err != nil {
		return err
	}

	c.database = c.client.Database(cfg.Connection.Database)
	c.SetHealthCheck(func(ctx context.Context) error {
		return c.client.Ping(ctx, readpref.Primary())
	})
	c.Logger().Info("mongodb client connected", zap.String("database", cfg.Connection.Database))
	return nil
}

func (c *Connector) Dispose() error {
	if !c.BeginDispose() || c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return classify(c.client.Ping(ctx, readpref.Primary()), "mongodb ping failed")
}

func (c *Connector) collection(objectClass core.ObjectClass) *mongo.Collection {
	return c.database.Collection(c.Config().Connection.Table(string(objectClass)))
}

func (c *Connector) ExecuteQuery(ctx context.Context, objectClass core.ObjectClass, filter core.Filter, handler core.ResultsHandler, options *core.OperationOptions) (*core.SearchResult, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	query, exact := translate(filter)
	findOpts := findOptions(options, exact)
	if !exact {
		handler = core.SkipMatching(filter, options.Offset(), handler)
	}

	cursor, err := c.collection(objectClass).Find(ctx, query, findOpts)
	if err != nil {
		return nil, classify(err, "find failed")
	}
	defer cursor.Close(context.WithoutCancel(ctx))

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, classify(err, "failed to decode document")
		}
		if !handler(toObject(objectClass, doc)) {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, classify(err, "find failed")
	}
	return &core.SearchResult{RemainingResults: -1}, nil
}

// findOptions pushes sorting down always, and paging only when the server
// evaluates the whole filter.
func findOptions(opts *core.OperationOptions, exact bool) *options.FindOptions {
	find := options.Find()
	if opts == nil {
		return find
	}
	if len(opts.SortBy) > 0 {
		sort := bson.D{}
		for _, key := range opts.SortBy {
			dir := -1
			if key.Ascending {
				dir = 1
			}
			sort = append(sort, bson.E{Key: field(key.Field), Value: dir})
		}
		find.SetSort(sort)
	}
	if exact {
		if opts.PagedResultsOffset > 0 {
			find.SetSkip(int64(opts.PagedResultsOffset))
		}
		if opts.PageSize > 0 {
			find.SetLimit(int64(opts.PageSize))
		}
	}
	return find
}

func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	doc := bson.M{}
	for k, v := range attrs {
		if k == core.UidAttribute {
			doc[idField] = v
			continue
		}
		doc[k] = v
	}
	res, err := c.collection(objectClass).InsertOne(ctx, doc)
	if err != nil {
		return "", classify(err, "insert failed")
	}
	return uidString(res.InsertedID), nil
}

// Update sets the given attributes; nil values are unset.
func (c *Connector) Update(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	res, err := c.collection(objectClass).UpdateOne(ctx, bson.M{idField: idValue(string(uid))}, updateDocument(attrs))
	if err != nil {
		return "", classify(err, "update failed")
	}
	if res.MatchedCount == 0 {
		return "", errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return uid, nil
}

func updateDocument(attrs map[string]interface{}) bson.M {
	set, unset := bson.M{}, bson.M{}
	for k, v := range attrs {
		if k == core.UidAttribute || k == idField {
			continue
		}
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func (c *Connector) Delete(ctx context.Context, objectClass core.ObjectClass, uid core.Uid, options *core.OperationOptions) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	res, err := c.collection(objectClass).DeleteOne(ctx, bson.M{idField: idValue(string(uid))})
	if err != nil {
		return classify(err, "delete failed")
	}
	if res.DeletedCount == 0 {
		return errors.Newf(errors.ErrorTypeNotFound, "%s/%s not found", objectClass, uid)
	}
	return nil
}

var fallback = base.NewErrorHandler()

func classify(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(err, errors.ErrorTypeConflict, message)
	case mongo.IsTimeout(err):
		return errors.Wrap(err, errors.ErrorTypeTimeout, message)
	case mongo.IsNetworkError(err):
		return errors.Wrap(err, errors.ErrorTypeConnection, message)
	}
	return fallback.Classify(err, message)
}
