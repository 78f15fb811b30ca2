package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/connector/core"
)

// Subscribe consumes every partition of the topic starting at the configured
// initial offset. Messages are delivered to handler one at a time.
func (c *Connector) Subscribe(ctx context.Context, objectClass core.ObjectClass, handler core.ChangeHandler, options *core.OperationOptions) (core.Subscription, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}
	topic := c.topic(objectClass)

	consumer, err := sarama.NewConsumerFromClient(c.client)
	if err != nil {
		return nil, c.Classify(err, "failed to create consumer")
	}
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		_ = consumer.Close()
		return nil, c.Classify(err, "failed to list partitions")
	}

	sub := &subscription{
		consumer: consumer,
		events:   make(chan *sarama.ConsumerMessage),
		done:     make(chan struct{}),
	}
	initial := c.client.Config().Consumer.Offsets.Initial
	for _, p := range partitions {
		pc, err := consumer.ConsumePartition(topic, p, initial)
		if err != nil {
			_ = sub.Close()
			return nil, c.Classify(err, fmt.Sprintf("failed to consume partition %d", p))
		}
		sub.partitions = append(sub.partitions, pc)
		sub.wg.Add(1)
		go sub.forward(pc)
	}

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for {
			select {
			case <-sub.done:
				return
			case msg := <-sub.events:
				event, err := messageToEvent(objectClass, msg)
				if err != nil {
					c.Logger().Warn("skipping undecodable message",
						zap.String("topic", msg.Topic),
						zap.Int32("partition", msg.Partition),
						zap.Int64("offset", msg.Offset),
						zap.Error(err))
					continue
				}
				if !handler(event) {
					sub.stop()
					return
				}
			}
		}
	}()

	c.Logger().Info("consuming topic", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
	return sub, nil
}

func messageToEvent(objectClass core.ObjectClass, msg *sarama.ConsumerMessage) (*core.ChangeEvent, error) {
	obj := &core.ConnectorObject{
		ObjectClass: objectClass,
		Uid:         messageUid(msg.Topic, msg.Partition, msg.Offset),
		Attributes:  map[string]interface{}{},
	}
	position := fmt.Sprintf("%d:%d", msg.Partition, msg.Offset)

	// a null value is a tombstone for the key
	if msg.Value == nil {
		if len(msg.Key) > 0 {
			obj.Uid = core.Uid(msg.Key)
		}
		return &core.ChangeEvent{Type: core.ChangeTypeDelete, Object: obj, Timestamp: msg.Timestamp, Position: position}, nil
	}

	if err := json.Unmarshal(msg.Value, &obj.Attributes); err != nil {
		return nil, err
	}
	if len(msg.Key) > 0 {
		obj.Attributes["key"] = string(msg.Key)
	}
	return &core.ChangeEvent{Type: core.ChangeTypeCreate, Object: obj, Timestamp: msg.Timestamp, Position: position}, nil
}

type subscription struct {
	consumer   sarama.Consumer
	partitions []sarama.PartitionConsumer
	events     chan *sarama.ConsumerMessage
	done       chan struct{}

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
	closed   sync.Once
	err      error
}

func (s *subscription) forward(pc sarama.PartitionConsumer) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			select {
			case s.events <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.done)
	})
}

// Close stops delivery, then shuts down the partition consumers and the
// consumer.
func (s *subscription) Close() error {
	s.closed.Do(func() {
		s.stop()
		s.wg.Wait()
		for _, pc := range s.partitions {
			if err := pc.Close(); err != nil && s.err == nil {
				s.err = err
			}
		}
		if err := s.consumer.Close(); err != nil && s.err == nil {
			s.err = err
		}
	})
	return s.err
}

func (s *subscription) IsUnsubscribed() bool {
	return s.stopped.Load()
}
