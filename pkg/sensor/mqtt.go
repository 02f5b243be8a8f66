package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/xid"
)

// MQTTSource caches the last temperature published on an MQTT topic
type MQTTSource struct {
	topic  string
	client mqtt.Client
	log    *slog.Logger

	mu       sync.RWMutex
	value    float64
	ok       bool
	received time.Time
}

// NewMQTTSource connects to broker and subscribes to topic
func NewMQTTSource(broker, topic string, timeout time.Duration, log *slog.Logger) (*MQTTSource, error) {
	s := &MQTTSource{topic: topic, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("thermotrack-" + xid.New().String()).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// resubscribe after every reconnect
		tok := c.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
			s.handle(m.Payload())
		})
		if tok.WaitTimeout(timeout) && tok.Error() != nil {
			s.log.Error("mqtt subscribe failed", "topic", topic, "err", tok.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("mqtt connection lost", "broker", broker, "err", err)
	})

	s.client = mqtt.NewClient(opts)
	tok := s.client.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connecting to %s: timed out after %s", broker, timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", broker, err)
	}

	s.log.Info("mqtt sensor subscribed", "broker", broker, "topic", topic)
	return s, nil
}

// handle accepts either a JSON payload or a bare number
func (s *MQTTSource) handle(payload []byte) {
	v, ok, err := parsePayload(payload)
	if err != nil {
		s.log.Warn("ignoring mqtt payload", "topic", s.topic, "err", err)
		return
	}

	s.mu.Lock()
	s.value, s.ok, s.received = v, ok, time.Now()
	s.mu.Unlock()
}

// Current implements Source
func (s *MQTTSource) Current(ctx context.Context) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.ok, nil
}

// Close disconnects from the broker
func (s *MQTTSource) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}

func parsePayload(payload []byte) (float64, bool, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, false, fmt.Errorf("empty payload")
	}

	if strings.HasPrefix(text, "{") {
		var p Payload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return 0, false, fmt.Errorf("decoding payload: %w", err)
		}
		if p.Temperature == nil {
			return 0, false, nil
		}
		return *p.Temperature, true, nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parsing payload: %w", err)
	}
	return v, true, nil
}
