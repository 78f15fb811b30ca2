package memory

import (
	"sync"
	"time"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// store holds the objects of one named in-memory system. Connector instances
// configured with the same store name share it.
type store struct {
	mu      sync.RWMutex
	classes map[core.ObjectClass]*class
	subs    map[*subscription]struct{}
}

type class struct {
	order   []core.Uid
	objects map[core.Uid]map[string]interface{}
}

var (
	storesMu sync.Mutex
	stores   = make(map[string]*store)
)

func openStore(name string) *store {
	storesMu.Lock()
	defer storesMu.Unlock()

	s, ok := stores[name]
	if !ok {
		s = &store{
			classes: make(map[core.ObjectClass]*class),
			subs:    make(map[*subscription]struct{}),
		}
		stores[name] = s
	}
	return s
}

// DropStore discards a named store. Connectors still holding it keep working
// against the detached copy.
func DropStore(name string) {
	storesMu.Lock()
	delete(stores, name)
	storesMu.Unlock()
}

func (s *store) snapshot(oc core.ObjectClass) []*core.ConnectorObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.classes[oc]
	if !ok {
		return nil
	}
	out := make([]*core.ConnectorObject, 0, len(c.order))
	for _, uid := range c.order {
		out = append(out, toObject(oc, uid, c.objects[uid]))
	}
	return out
}

func (s *store) put(oc core.ObjectClass, uid core.Uid, attrs map[string]interface{}, merge bool) (bool, *core.ConnectorObject) {
	s.mu.Lock()
	c, ok := s.classes[oc]
	if !ok {
		if merge {
			s.mu.Unlock()
			return false, nil
		}
		c = &class{objects: make(map[core.Uid]map[string]interface{})}
		s.classes[oc] = c
	}

	current, exists := c.objects[uid]
	if merge && !exists {
		s.mu.Unlock()
		return false, nil
	}
	if !exists {
		current = make(map[string]interface{}, len(attrs))
		c.order = append(c.order, uid)
	}
	for k, v := range attrs {
		if v == nil {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	c.objects[uid] = current
	obj := toObject(oc, uid, current)
	s.mu.Unlock()

	kind := core.ChangeTypeCreate
	if exists {
		kind = core.ChangeTypeUpdate
	}
	s.publish(&core.ChangeEvent{Type: kind, Object: obj, Timestamp: time.Now().UTC()})
	return true, obj
}

func (s *store) remove(oc core.ObjectClass, uid core.Uid) bool {
	s.mu.Lock()
	c, ok := s.classes[oc]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, ok := c.objects[uid]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(c.objects, uid)
	for i, u := range c.order {
		if u == uid {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.publish(&core.ChangeEvent{
		Type:      core.ChangeTypeDelete,
		Object:    &core.ConnectorObject{ObjectClass: oc, Uid: uid},
		Timestamp: time.Now().UTC(),
	})
	return true
}

func (s *store) classNames() []core.ObjectClass {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]core.ObjectClass, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	return names
}

func (s *store) attach(sub *subscription) {
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
}

func (s *store) detach(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (s *store) publish(event *core.ChangeEvent) {
	s.mu.RLock()
	targets := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		if sub.objectClass == event.Object.ObjectClass {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		sub.offer(event)
	}
}

func toObject(oc core.ObjectClass, uid core.Uid, attrs map[string]interface{}) *core.ConnectorObject {
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &core.ConnectorObject{ObjectClass: oc, Uid: uid, Attributes: copied}
}
