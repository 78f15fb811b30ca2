package postgresql

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// notification is the JSON payload triggers are expected to send:
//
//	{"op": "INSERT", "uid": 42, "data": {"id": 42, "name": "alice"}}
type notification struct {
	Op   string                 `json:"op"`
	Uid  interface{}            `json:"uid"`
	Data map[string]interface{} `json:"data"`
}

// Subscribe listens on the channel named by the "notify_channel" property,
// or "<table>_changes". Closing the subscription ends the session; the pool
// discards the connector on its next health check.
func (c *Connector) Subscribe(ctx context.Context, objectClass core.ObjectClass, handler core.ChangeHandler, options *core.OperationOptions) (core.Subscription, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}

	channel := c.Config().Connection.Property("notify_channel", c.Config().Connection.Table(string(objectClass))+"_changes")
	if _, err := c.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return nil, classify(err, "failed to listen")
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{cancel: cancel}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer sub.stopped.Store(true)
		c.listen(streamCtx, objectClass, channel, handler)
	}()

	c.Logger().Info("listening for changes", zap.String("channel", channel))
	return sub, nil
}

func (c *Connector) listen(ctx context.Context, objectClass core.ObjectClass, channel string, handler core.ChangeHandler) {
	for {
		n, err := c.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.Logger().Error("notification stream failed", zap.String("channel", channel), zap.Error(err))
			}
			return
		}
		event, err := decodeNotification(objectClass, c.builder.UidColumn(), n.Payload)
		if err != nil {
			c.Logger().Warn("skipping malformed notification", zap.String("channel", channel), zap.Error(err))
			continue
		}
		if !handler(event) {
			return
		}
	}
}

func decodeNotification(objectClass core.ObjectClass, uidColumn, payload string) (*core.ChangeEvent, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid notification payload")
	}

	var kind core.ChangeType
	switch strings.ToUpper(n.Op) {
	case "INSERT":
		kind = core.ChangeTypeCreate
	case "UPDATE":
		kind = core.ChangeTypeUpdate
	case "DELETE":
		kind = core.ChangeTypeDelete
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown notification op %q", n.Op)
	}

	uid := n.Uid
	if uid == nil {
		uid = n.Data[uidColumn]
	}
	if uid == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "notification carries no uid")
	}

	obj := &core.ConnectorObject{
		ObjectClass: objectClass,
		Uid:         core.Uid(formatUid(uid)),
		Attributes:  n.Data,
	}
	if obj.Attributes == nil {
		obj.Attributes = map[string]interface{}{}
	}
	return &core.ChangeEvent{Type: kind, Object: obj, Timestamp: time.Now().UTC()}, nil
}

// JSON numbers decode as float64; whole numbers are printed without exponent.
func formatUid(v interface{}) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

type subscription struct {
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func (s *subscription) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *subscription) IsUnsubscribed() bool {
	return s.stopped.Load()
}
