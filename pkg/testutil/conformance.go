package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/operations"
	"github.com/ajitpratap0/opgate/pkg/pool"
)

// ConnectorSuite runs the same operations against any registered connector
// through a facade, so every connector is held to one behavioural contract.
//
//	suite.Run(t, &testutil.ConnectorSuite{Config: cfg, ObjectClass: "users"})
//
// The object class must accept string "name" and integer "age" attributes.
type ConnectorSuite struct {
	suite.Suite

	Config      *config.BaseConfig
	ObjectClass core.ObjectClass
	// Subscribes enables the change stream test; it needs the connector to
	// publish changes made through the same facade.
	Subscribes bool

	ctx     context.Context
	cancel  context.CancelFunc
	manager *pool.Manager
	facade  *operations.ConnectorFacade
}

// SetupSuite builds the facade under test.
func (s *ConnectorSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)

	log := zaptest.NewLogger(s.T())
	s.manager = pool.NewManager(log)

	facade, err := operations.NewBuilder(s.manager, log).Build(s.ctx, s.Config)
	s.Require().NoError(err)
	s.facade = facade
}

// TearDownSuite disposes pooled connectors.
func (s *ConnectorSuite) TearDownSuite() {
	if s.manager != nil {
		s.manager.Dispose()
	}
	s.cancel()
}

// Facade returns the facade under test.
func (s *ConnectorSuite) Facade() *operations.ConnectorFacade {
	return s.facade
}

func (s *ConnectorSuite) create(name string, age int) core.Uid {
	uid, err := s.facade.Create(s.ctx, s.ObjectClass, map[string]interface{}{"name": name, "age": age}, nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(uid)
	s.T().Cleanup(func() { _ = s.facade.Delete(context.Background(), s.ObjectClass, uid, nil) })
	return uid
}

func (s *ConnectorSuite) search(filter core.Filter, options *core.OperationOptions) ([]*core.ConnectorObject, *core.SearchResult) {
	var objs []*core.ConnectorObject
	result, err := s.facade.Search(s.ctx, s.ObjectClass, filter, func(obj *core.ConnectorObject) bool {
		objs = append(objs, obj)
		return true
	}, options)
	s.Require().NoError(err)
	return objs, result
}

func (s *ConnectorSuite) TestTest() {
	s.Require().NoError(s.facade.Test(s.ctx))
}

func (s *ConnectorSuite) TestLifecycle() {
	name := "conformance-" + uuid.NewString()
	uid := s.create(name, 31)

	objs, _ := s.search(core.Equals("name", name), nil)
	s.Require().Len(objs, 1)
	s.Equal(uid, objs[0].Uid)

	obj, err := s.facade.GetObject(s.ctx, s.ObjectClass, uid, nil)
	s.Require().NoError(err)
	s.Require().NotNil(obj)
	s.EqualValues(31, obj.Attributes["age"])

	_, err = s.facade.Update(s.ctx, s.ObjectClass, uid, map[string]interface{}{"age": 32}, nil)
	s.Require().NoError(err)
	obj, err = s.facade.GetObject(s.ctx, s.ObjectClass, uid, nil)
	s.Require().NoError(err)
	s.Require().NotNil(obj)
	s.EqualValues(32, obj.Attributes["age"])
	s.Equal(name, obj.Attributes["name"])

	s.Require().NoError(s.facade.Delete(s.ctx, s.ObjectClass, uid, nil))
	obj, err = s.facade.GetObject(s.ctx, s.ObjectClass, uid, nil)
	s.Require().NoError(err)
	s.Nil(obj)
}

func (s *ConnectorSuite) TestPaging() {
	name := "paging-" + uuid.NewString()
	created := map[core.Uid]bool{}
	for age := 1; age <= 3; age++ {
		created[s.create(name, age)] = true
	}

	sortByAge := []core.SortKey{{Field: "age", Ascending: true}}
	first, result := s.search(core.Equals("name", name), &core.OperationOptions{PageSize: 2, SortBy: sortByAge})
	s.Require().Len(first, 2)
	s.Equal("2", result.PagedResultsCookie)

	rest, result := s.search(core.Equals("name", name), &core.OperationOptions{PageSize: 2, PagedResultsOffset: 2, SortBy: sortByAge})
	s.Require().Len(rest, 1)
	s.Empty(result.PagedResultsCookie)

	seen := map[core.Uid]bool{}
	for _, obj := range append(first, rest...) {
		seen[obj.Uid] = true
	}
	s.Equal(created, seen)

	projected, _ := s.search(core.Equals("name", name), &core.OperationOptions{AttributesToGet: []string{"age"}})
	s.Require().Len(projected, 3)
	for _, obj := range projected {
		s.NotContains(obj.Attributes, "name")
	}
}

func (s *ConnectorSuite) TestSubscribe() {
	if !s.Subscribes {
		s.T().Skip("connector does not publish its own changes")
	}
	name := "subscribe-" + uuid.NewString()

	var (
		mu     sync.Mutex
		events []*core.ChangeEvent
	)
	sub, err := s.facade.Subscribe(s.ctx, s.ObjectClass, core.Equals("name", name), func(event *core.ChangeEvent) bool {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return true
	}, nil)
	s.Require().NoError(err)

	uid := s.create(name, 40)
	s.Require().Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 10*time.Second, 10*time.Millisecond, "no create event delivered")

	mu.Lock()
	s.Equal(core.ChangeTypeCreate, events[0].Type)
	s.Equal(uid, events[0].Object.Uid)
	mu.Unlock()

	s.Require().NoError(sub.Close())
	s.True(sub.IsUnsubscribed())
	s.NoError(sub.Close())
}
