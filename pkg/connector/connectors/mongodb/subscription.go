package mongodb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// changeDocument is the subset of a change stream event the connector reads.
type changeDocument struct {
	OperationType string              `bson:"operationType"`
	FullDocument  bson.M              `bson:"fullDocument"`
	DocumentKey   bson.M              `bson:"documentKey"`
	ClusterTime   primitive.Timestamp `bson:"clusterTime"`
}

var watchedOperations = bson.A{"insert", "update", "replace", "delete"}

// Subscribe opens a change stream on the collection. Updates carry the
// post-image looked up at delivery time.
func (c *Connector) Subscribe(ctx context.Context, objectClass core.ObjectClass, handler core.ChangeHandler, opts *core.OperationOptions) (core.Subscription, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: watchedOperations}}}}}},
	}
	stream, err := c.collection(objectClass).Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, classify(err, "failed to open change stream")
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{stream: stream, cancel: cancel}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer sub.stopped.Store(true)
		c.consume(streamCtx, stream, objectClass, handler)
	}()
	return sub, nil
}

func (c *Connector) consume(ctx context.Context, stream *mongo.ChangeStream, objectClass core.ObjectClass, handler core.ChangeHandler) {
	for stream.Next(ctx) {
		var change changeDocument
		if err := stream.Decode(&change); err != nil {
			c.Logger().Warn("skipping undecodable change", zap.Error(err))
			continue
		}
		event := toChangeEvent(objectClass, &change)
		if event == nil {
			continue
		}
		event.Position = stream.ResumeToken().String()
		if !handler(event) {
			return
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		c.Logger().Error("change stream failed", zap.Error(err))
	}
}

func toChangeEvent(objectClass core.ObjectClass, change *changeDocument) *core.ChangeEvent {
	var kind core.ChangeType
	switch change.OperationType {
	case "insert":
		kind = core.ChangeTypeCreate
	case "update", "replace":
		kind = core.ChangeTypeUpdate
	case "delete":
		kind = core.ChangeTypeDelete
	default:
		return nil
	}

	var obj *core.ConnectorObject
	if change.FullDocument != nil && kind != core.ChangeTypeDelete {
		obj = toObject(objectClass, change.FullDocument)
	} else {
		obj = &core.ConnectorObject{
			ObjectClass: objectClass,
			Uid:         uidString(change.DocumentKey[idField]),
			Attributes:  map[string]interface{}{},
		}
	}

	ts := time.Now().UTC()
	if change.ClusterTime.T > 0 {
		ts = time.Unix(int64(change.ClusterTime.T), 0).UTC()
	}
	return &core.ChangeEvent{Type: kind, Object: obj, Timestamp: ts}
}

type subscription struct {
	stream  *mongo.ChangeStream
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
	once    sync.Once
	err     error
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		s.err = s.stream.Close(ctx)
	})
	return s.err
}

func (s *subscription) IsUnsubscribed() bool {
	return s.stopped.Load()
}
