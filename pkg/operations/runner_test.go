package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

func newRunner(t *testing.T, conn core.Connector) *ConnectorRunner {
	t.Helper()
	opCtx, err := NewOperationalContext("crm", func() core.Connector { return conn }, config.NewBaseConfig("crm", "fake"), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	r, err := NewConnectorRunner(opCtx, conn)
	require.NoError(t, err)
	return r.(*ConnectorRunner)
}

func collect(t *testing.T, r *ConnectorRunner, filter core.Filter, opts *core.OperationOptions) ([]*core.ConnectorObject, *core.SearchResult) {
	t.Helper()
	var got []*core.ConnectorObject
	res, err := r.Search(context.Background(), "users", filter, func(obj *core.ConnectorObject) bool {
		got = append(got, obj)
		return true
	}, opts)
	require.NoError(t, err)
	return got, res
}

func uids(objs []*core.ConnectorObject) []core.Uid {
	out := make([]core.Uid, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Uid)
	}
	return out
}

func TestConnectorRunner_SearchFiltersInMemory(t *testing.T) {
	r := newRunner(t, &fakeConnector{objects: testObjects()})

	got, res := collect(t, r, core.And(core.Equals("team", "core"), &core.GreaterThanFilter{Attribute: "age", Value: 30}), nil)

	assert.Equal(t, []core.Uid{"1", "4"}, uids(got))
	assert.Empty(t, res.PagedResultsCookie)
}

func TestConnectorRunner_SearchPaging(t *testing.T) {
	r := newRunner(t, &fakeConnector{objects: testObjects()})

	got, res := collect(t, r, nil, &core.OperationOptions{PageSize: 2, PagedResultsOffset: 4})

	assert.Equal(t, []core.Uid{"1", "2"}, uids(got))
	assert.Equal(t, "6", res.PagedResultsCookie)
}

func TestConnectorRunner_SearchProjection(t *testing.T) {
	r := newRunner(t, &fakeConnector{objects: testObjects()})

	got, _ := collect(t, r, core.Equals(core.UidAttribute, "3"), &core.OperationOptions{AttributesToGet: []string{"name"}})

	require.Len(t, got, 1)
	assert.Equal(t, map[string]interface{}{"name": "carol"}, got[0].Attributes)
}

func TestConnectorRunner_SearchHandlerStops(t *testing.T) {
	conn := &fakeConnector{objects: testObjects()}
	r := newRunner(t, conn)

	seen := 0
	_, err := r.Search(context.Background(), "users", nil, func(*core.ConnectorObject) bool {
		seen++
		return false
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestConnectorRunner_Validation(t *testing.T) {
	r := newRunner(t, &fakeConnector{objects: testObjects()})
	ctx := context.Background()
	handler := func(*core.ConnectorObject) bool { return true }

	tests := []struct {
		name string
		call func() error
	}{
		{"search without class", func() error {
			_, err := r.Search(ctx, "", nil, handler, nil)
			return err
		}},
		{"search without handler", func() error {
			_, err := r.Search(ctx, "users", nil, nil, nil)
			return err
		}},
		{"negative page size", func() error {
			_, err := r.Search(ctx, "users", nil, handler, &core.OperationOptions{PageSize: -1})
			return err
		}},
		{"get without uid", func() error {
			_, err := r.GetObject(ctx, "users", "", nil)
			return err
		}},
		{"create without attributes", func() error {
			_, err := r.Create(ctx, "users", nil, nil)
			return err
		}},
		{"update without uid", func() error {
			_, err := r.Update(ctx, "users", "", map[string]interface{}{"a": 1}, nil)
			return err
		}},
		{"delete without class", func() error {
			return r.Delete(ctx, "", "1", nil)
		}},
		{"subscribe without handler", func() error {
			_, err := r.Subscribe(ctx, "users", nil, nil, nil)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), err.Error())
		})
	}
}

func TestConnectorRunner_Unsupported(t *testing.T) {
	r := newRunner(t, &fakeConnector{})

	_, err := r.Update(context.Background(), "users", "1", map[string]interface{}{"a": 1}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))

	err = r.Delete(context.Background(), "users", "1", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestConnectorRunner_GetMissing(t *testing.T) {
	r := newRunner(t, &fakeConnector{objects: testObjects()})

	obj, err := r.GetObject(context.Background(), "users", "99", nil)
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestConnectorRunner_SubscribeFilters(t *testing.T) {
	conn := &fakeConnector{}
	r := newRunner(t, conn)

	var got []*core.ChangeEvent
	sub, err := r.Subscribe(context.Background(), "users", core.Equals("team", "core"), func(ev *core.ChangeEvent) bool {
		got = append(got, ev)
		return true
	}, &core.OperationOptions{AttributesToGet: []string{"name"}})
	require.NoError(t, err)
	defer sub.Close()

	objs := testObjects()
	conn.sub.emit(&core.ChangeEvent{Type: core.ChangeTypeCreate, Object: objs[0]})
	conn.sub.emit(&core.ChangeEvent{Type: core.ChangeTypeUpdate, Object: objs[1]})
	conn.sub.emit(&core.ChangeEvent{Type: core.ChangeTypeDelete, Object: &core.ConnectorObject{ObjectClass: "users", Uid: "2"}})

	require.Len(t, got, 2)
	assert.Equal(t, core.Uid("1"), got[0].Object.Uid)
	assert.Equal(t, map[string]interface{}{"name": "alice"}, got[0].Object.Attributes)
	assert.Equal(t, core.ChangeTypeDelete, got[1].Type)
}
