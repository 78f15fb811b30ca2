// Package kafka treats topics as object classes. Creating an object produces
// a JSON message; subscribing consumes every partition of the topic.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"strings"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/base"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

// Name is the registered connector type.
const Name = "kafka"

// Connector is a Kafka connector holding one client and one sync producer.
type Connector struct {
	*base.BaseConnector

	client   sarama.Client
	producer sarama.SyncProducer
}

var (
	_ core.PoolableConnector = (*Connector)(nil)
	_ core.TestOp            = (*Connector)(nil)
	_ core.SchemaOp          = (*Connector)(nil)
	_ core.CreateOp          = (*Connector)(nil)
	_ core.SubscribeOp       = (*Connector)(nil)
)

// New creates an uninitialized Kafka connector.
func New() core.Connector {
	return &Connector{BaseConnector: base.NewBaseConnector(Name, "1.0.0")}
}

func (c *Connector) Init(ctx context.Context, cfg *config.BaseConfig) error {
	if err := c.Initialize(ctx, cfg); err != nil {
		return err
	}
	if len(cfg.Connection.Brokers) == 0 {
		return errors.New(errors.ErrorTypeConfig, "connection.brokers is required")
	}
	saramaCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka settings")
	}

	err = c.ExecuteWithRetry(ctx, func() error {
		client, err := sarama.NewClient(cfg.Connection.Brokers, saramaCfg)
		if err != nil {
			return c.Classify(err, "failed to connect to kafka")
		}
		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			_ = client.Close()
			return c.Classify(err, "failed to create producer")
		}
		c.client, c.producer = client, producer
		return nil
	})
	if err != nil {
		return err
	}

	c.SetHealthCheck(func(context.Context) error {
		if c.client.Closed() {
			return errors.New(errors.ErrorTypeConnection, "kafka client closed")
		}
		if len(c.client.Brokers()) == 0 {
			return errors.New(errors.ErrorTypeConnection, "no kafka brokers reachable")
		}
		return nil
	})
	c.Logger().Info("kafka client connected", zap.Strings("brokers", cfg.Connection.Brokers))
	return nil
}

func buildSaramaConfig(cfg *config.BaseConfig) (*sarama.Config, error) {
	conn := &cfg.Connection
	sc := sarama.NewConfig()
	sc.ClientID = "opgate-" + cfg.Name
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Consumer.Return.Errors = false
	sc.Metadata.Full = false

	if v := conn.Property("version", ""); v != "" {
		version, err := sarama.ParseKafkaVersion(v)
		if err != nil {
			return nil, err
		}
		sc.Version = version
	}

	switch strings.ToLower(conn.Property("compression", "none")) {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	case "none":
		sc.Producer.Compression = sarama.CompressionNone
	default:
		return nil, fmt.Errorf("unsupported compression %q", conn.Property("compression", ""))
	}

	switch strings.ToLower(conn.Property("initial_offset", "newest")) {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if cfg.Timeouts.Connection > 0 {
		sc.Net.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Request > 0 {
		sc.Net.ReadTimeout = cfg.Timeouts.Request
		sc.Net.WriteTimeout = cfg.Timeouts.Request
	}
	if conn.Property("tls", "false") == "true" {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if conn.Username != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = conn.Username
		sc.Net.SASL.Password = conn.Password
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Dispose closes the producer, then the client.
func (c *Connector) Dispose() error {
	if !c.BeginDispose() {
		return nil
	}
	var first error
	if c.producer != nil {
		first = c.producer.Close()
	}
	if c.client != nil && !c.client.Closed() {
		if err := c.client.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Test refreshes cluster metadata.
func (c *Connector) Test(ctx context.Context) error {
	if err := c.RequireInitialized(); err != nil {
		return err
	}
	return c.Classify(c.client.RefreshMetadata(), "failed to refresh kafka metadata")
}

// Schema lists topics. Messages are schemaless so no attributes are reported.
func (c *Connector) Schema(ctx context.Context) (*core.Schema, error) {
	if err := c.RequireInitialized(); err != nil {
		return nil, err
	}
	topics, err := c.client.Topics()
	if err != nil {
		return nil, c.Classify(err, "failed to list topics")
	}
	sort.Strings(topics)

	schema := &core.Schema{}
	for _, topic := range topics {
		if strings.HasPrefix(topic, "__") {
			continue
		}
		schema.ObjectClasses = append(schema.ObjectClasses, core.ObjectClassInfo{Name: core.ObjectClass(topic)})
	}
	return schema, nil
}

// Create produces attrs as a JSON message to the topic. A __UID__ attribute
// becomes the message key. The returned Uid is topic/partition/offset.
func (c *Connector) Create(ctx context.Context, objectClass core.ObjectClass, attrs map[string]interface{}, options *core.OperationOptions) (core.Uid, error) {
	if err := c.RequireInitialized(); err != nil {
		return "", err
	}
	msg, err := buildMessage(c.topic(objectClass), attrs)
	if err != nil {
		return "", err
	}
	partition, offset, err := c.producer.SendMessage(msg)
	if err != nil {
		return "", c.Classify(err, "failed to produce message")
	}
	return messageUid(msg.Topic, partition, offset), nil
}

func (c *Connector) topic(objectClass core.ObjectClass) string {
	return c.Config().Connection.Table(string(objectClass))
}

func buildMessage(topic string, attrs map[string]interface{}) (*sarama.ProducerMessage, error) {
	body := make(map[string]interface{}, len(attrs))
	var key sarama.Encoder
	for k, v := range attrs {
		if k == core.UidAttribute {
			key = sarama.StringEncoder(fmt.Sprint(v))
			continue
		}
		body[k] = v
	}
	value, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "attributes are not JSON encodable")
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   key,
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}, nil
}

func messageUid(topic string, partition int32, offset int64) core.Uid {
	return core.Uid(fmt.Sprintf("%s/%d/%d", topic, partition, offset))
}
