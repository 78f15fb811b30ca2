package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/core"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

func TestBuildSaramaConfig(t *testing.T) {
	cfg := config.NewBaseConfig("events", Name)
	cfg.Connection.Brokers = []string{"localhost:9092"}
	cfg.Connection.Username = "svc"
	cfg.Connection.Password = "secret"
	cfg.Connection.Properties["compression"] = "zstd"
	cfg.Connection.Properties["version"] = "3.6.0"
	cfg.Connection.Properties["initial_offset"] = "oldest"

	sc, err := buildSaramaConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "opgate-events", sc.ClientID)
	assert.Equal(t, sarama.CompressionZSTD, sc.Producer.Compression)
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.True(t, sc.Producer.Return.Successes)
	assert.True(t, sc.Net.SASL.Enable)
	assert.Equal(t, cfg.Timeouts.Connection, sc.Net.DialTimeout)

	cfg.Connection.Properties["compression"] = "brotli"
	_, err = buildSaramaConfig(cfg)
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("users", map[string]interface{}{core.UidAttribute: 7, "name": "alice"})
	require.NoError(t, err)

	assert.Equal(t, "users", msg.Topic)
	assert.Equal(t, sarama.StringEncoder("7"), msg.Key)

	value, err := msg.Value.Encode()
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(value, &body))
	assert.Equal(t, map[string]interface{}{"name": "alice"}, body)

	_, err = buildMessage("users", map[string]interface{}{"bad": make(chan int)})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestMessageToEvent(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	event, err := messageToEvent("users", &sarama.ConsumerMessage{
		Topic: "users", Partition: 2, Offset: 41, Key: []byte("k1"), Value: []byte(`{"name":"alice"}`), Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, core.ChangeTypeCreate, event.Type)
	assert.Equal(t, core.Uid("users/2/41"), event.Object.Uid)
	assert.Equal(t, "alice", event.Object.Attributes["name"])
	assert.Equal(t, "k1", event.Object.Attributes["key"])
	assert.Equal(t, "2:41", event.Position)
	assert.Equal(t, ts, event.Timestamp)

	event, err = messageToEvent("users", &sarama.ConsumerMessage{Topic: "users", Key: []byte("k1")})
	require.NoError(t, err)
	assert.Equal(t, core.ChangeTypeDelete, event.Type)
	assert.Equal(t, core.Uid("k1"), event.Object.Uid)

	_, err = messageToEvent("users", &sarama.ConsumerMessage{Topic: "users", Value: []byte("{")})
	assert.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	caps := core.Capabilities(New())
	assert.Contains(t, caps, "create")
	assert.Contains(t, caps, "subscribe")
	assert.NotContains(t, caps, "search")
}
