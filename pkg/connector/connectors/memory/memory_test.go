package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/operations"
	"github.com/ajitpratap0/opgate/pkg/pool"
)

func newConnector(t *testing.T, store string) *Connector {
	t.Helper()
	t.Cleanup(func() { DropStore(store) })

	c := New().(*Connector)
	cfg := config.NewBaseConfig("mem", Name)
	cfg.Connection.Properties["store"] = store
	require.NoError(t, c.Init(context.Background(), cfg))
	t.Cleanup(func() { _ = c.Dispose() })
	return c
}

func collect(t *testing.T, c *Connector, oc core.ObjectClass, filter core.Filter, options *core.OperationOptions) []*core.ConnectorObject {
	t.Helper()
	var out []*core.ConnectorObject
	_, err := c.ExecuteQuery(context.Background(), oc, filter, func(obj *core.ConnectorObject) bool {
		out = append(out, obj)
		return true
	}, options)
	require.NoError(t, err)
	return out
}

func TestConnector_CRUD(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()

	uid, err := c.Create(ctx, "users", map[string]interface{}{"name": "alice", "team": "core"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	_, err = c.Create(ctx, "users", map[string]interface{}{core.UidAttribute: "bob", "name": "bob"}, nil)
	require.NoError(t, err)
	_, err = c.Create(ctx, "users", map[string]interface{}{core.UidAttribute: "bob"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	objs := collect(t, c, "users", core.Equals("name", "alice"), nil)
	require.Len(t, objs, 1)
	assert.Equal(t, uid, objs[0].Uid)

	_, err = c.Update(ctx, "users", uid, map[string]interface{}{"team": nil, "age": 31}, nil)
	require.NoError(t, err)
	objs = collect(t, c, "users", core.Equals(core.UidAttribute, string(uid)), nil)
	require.Len(t, objs, 1)
	assert.Equal(t, map[string]interface{}{"name": "alice", "age": 31}, objs[0].Attributes)

	_, err = c.Update(ctx, "users", "missing", map[string]interface{}{"a": 1}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, c.Delete(ctx, "users", "bob", nil))
	assert.True(t, errors.IsType(c.Delete(ctx, "users", "bob", nil), errors.ErrorTypeNotFound))
	assert.Len(t, collect(t, c, "users", nil, nil), 1)
}

func TestConnector_QueryOffsetAndRemaining(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4"} {
		_, err := c.Create(ctx, "items", map[string]interface{}{core.UidAttribute: id}, nil)
		require.NoError(t, err)
	}

	objs := collect(t, c, "items", nil, &core.OperationOptions{PagedResultsOffset: 2})
	require.Len(t, objs, 2)
	assert.Equal(t, core.Uid("3"), objs[0].Uid)

	result, err := c.ExecuteQuery(ctx, "items", nil, func(*core.ConnectorObject) bool { return false }, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RemainingResults)
}

func TestConnector_Schema(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()
	_, err := c.Create(ctx, "users", map[string]interface{}{"name": "alice", "age": 31}, nil)
	require.NoError(t, err)
	_, err = c.Create(ctx, "groups", map[string]interface{}{"title": "ops"}, nil)
	require.NoError(t, err)

	schema, err := c.Schema(ctx)
	require.NoError(t, err)
	require.Len(t, schema.ObjectClasses, 2)
	assert.Equal(t, core.ObjectClass("groups"), schema.ObjectClasses[0].Name)

	users, ok := schema.FindObjectClass("users")
	require.True(t, ok)
	assert.Equal(t, []core.AttributeInfo{{Name: "age", Type: "int"}, {Name: "name", Type: "string"}}, users.Attributes)
}

func TestConnector_SharedStore(t *testing.T) {
	a := newConnector(t, t.Name())
	b := newConnector(t, t.Name())

	_, err := a.Create(context.Background(), "users", map[string]interface{}{"name": "alice"}, nil)
	require.NoError(t, err)
	assert.Len(t, collect(t, b, "users", nil, nil), 1)
}

func TestConnector_Subscribe(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []core.ChangeType
	)
	sub, err := c.Subscribe(ctx, "users", func(e *core.ChangeEvent) bool {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
		return true
	}, nil)
	require.NoError(t, err)

	uid, err := c.Create(ctx, "users", map[string]interface{}{"name": "alice"}, nil)
	require.NoError(t, err)
	_, err = c.Create(ctx, "groups", map[string]interface{}{"name": "ops"}, nil)
	require.NoError(t, err)
	_, err = c.Update(ctx, "users", uid, map[string]interface{}{"name": "alicia"}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "users", uid, nil))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, time.Second, 5*time.Millisecond)

	assert.False(t, sub.IsUnsubscribed())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.True(t, sub.IsUnsubscribed())

	mu.Lock()
	assert.Equal(t, []core.ChangeType{core.ChangeTypeCreate, core.ChangeTypeUpdate, core.ChangeTypeDelete}, events)
	mu.Unlock()
}

func TestConnector_SubscribeHandlerStops(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, "users", func(*core.ChangeEvent) bool { return false }, nil)
	require.NoError(t, err)
	defer sub.Close()

	_, err = c.Create(ctx, "users", map[string]interface{}{"name": "alice"}, nil)
	require.NoError(t, err)

	assert.Eventually(t, sub.IsUnsubscribed, time.Second, 5*time.Millisecond)
	_, err = c.Create(ctx, "users", map[string]interface{}{"name": "bob"}, nil)
	require.NoError(t, err)
}

func TestConnector_HandlerClosesSubscription(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()

	subs := make(chan core.Subscription, 1)
	closed := make(chan error, 1)
	sub, err := c.Subscribe(ctx, "users", func(*core.ChangeEvent) bool {
		closed <- (<-subs).Close()
		return true
	}, nil)
	require.NoError(t, err)
	subs <- sub

	_, err = c.Create(ctx, "users", map[string]interface{}{"name": "alice"}, nil)
	require.NoError(t, err)

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close called from the handler did not return")
	}
	assert.True(t, sub.IsUnsubscribed())
}

func TestConnector_UpdateUnknownClass(t *testing.T) {
	c := newConnector(t, t.Name())
	ctx := context.Background()

	_, err := c.Update(ctx, "ghosts", "1", map[string]interface{}{"name": "casper"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	schema, err := c.Schema(ctx)
	require.NoError(t, err)
	assert.Empty(t, schema.ObjectClasses)
}

func TestConnector_RequiresInit(t *testing.T) {
	c := New().(*Connector)
	assert.Error(t, c.Test(context.Background()))

	require.NoError(t, c.Dispose())
	require.NoError(t, c.Dispose())
}

func TestConnector_ThroughFacade(t *testing.T) {
	store := t.Name()
	t.Cleanup(func() { DropStore(store) })

	manager := pool.NewManager(zaptest.NewLogger(t))
	defer manager.Dispose()

	cfg := config.NewBaseConfig("crm", Name)
	cfg.Connection.Properties["store"] = store
	cfg.Pool.Enabled = true
	cfg.Pool.MaxObjects = 1
	cfg.Pool.MinIdle = 0
	cfg.Pool.MaxWait = 50 * time.Millisecond

	facade, err := operations.NewBuilder(manager, zaptest.NewLogger(t)).Build(context.Background(), cfg)
	require.NoError(t, err)
	ctx := context.Background()

	events := make(chan *core.ChangeEvent, 4)
	sub, err := facade.Subscribe(ctx, "users", core.Equals("team", "core"), func(e *core.ChangeEvent) bool {
		events <- e
		return true
	}, &core.OperationOptions{AttributesToGet: []string{"name"}})
	require.NoError(t, err)

	// the only connector is held by the subscription
	_, err = facade.Create(ctx, "users", map[string]interface{}{"name": "alice"}, nil)
	assert.True(t, errors.IsPoolExhausted(err))

	require.NoError(t, sub.Close())

	for i, team := range []string{"core", "ops", "core"} {
		_, err = facade.Create(ctx, "users", map[string]interface{}{core.UidAttribute: string(rune('1' + i)), "name": "u", "team": team}, nil)
		require.NoError(t, err)
	}
	assert.Empty(t, events, "closed subscription receives nothing")

	var page []core.Uid
	result, err := facade.Search(ctx, "users", core.Equals("team", "core"), func(obj *core.ConnectorObject) bool {
		page = append(page, obj.Uid)
		return true
	}, &core.OperationOptions{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []core.Uid{"1"}, page)
	assert.Equal(t, "1", result.PagedResultsCookie)

	obj, err := facade.GetObject(ctx, "users", "2", &core.OperationOptions{AttributesToGet: []string{"team"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"team": "ops"}, obj.Attributes)
}
