// Package publish forwards controller updates to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vjranagit/thermotrack/pkg/controller"
)

// messageKey keys every set-point message so they land on one partition
const messageKey = "setpoint"

// Message is the JSON document written for every update
type Message struct {
	Time      float64   `json:"currentTime"`
	Playing   bool      `json:"isPlaying"`
	SetPoint  *float64  `json:"setPoint"`
	Display   string    `json:"display"`
	Actual    *float64  `json:"actual,omitempty"`
	Published time.Time `json:"publishedAt"`
}

// NewMessage builds the message for u. The latest trace sample, if any,
// is carried as the actual temperature.
func NewMessage(u controller.Update, now time.Time) Message {
	m := Message{
		Time:      u.Time,
		Playing:   u.Playing,
		SetPoint:  u.SetPoint,
		Display:   u.Display,
		Published: now,
	}
	if n := len(u.Trace); n > 0 {
		actual := u.Trace[n-1].Temperature
		m.Actual = &actual
	}
	return m
}

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes updates to a Kafka topic from a background goroutine.
// Updates that arrive while the queue is full are dropped.
type Publisher struct {
	w       messageWriter
	log     *slog.Logger
	timeout time.Duration

	queue chan controller.Update
	done  chan struct{}
	once  sync.Once
}

// NewKafkaWriter creates a writer for topic on brokers
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

// New creates a publisher and starts its writer goroutine
func New(w messageWriter, log *slog.Logger) *Publisher {
	p := &Publisher{
		w:       w,
		log:     log,
		timeout: 5 * time.Second,
		queue:   make(chan controller.Update, 64),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish queues u without blocking; it is meant to be a controller listener
func (p *Publisher) Publish(u controller.Update) {
	select {
	case p.queue <- u:
	default:
		p.log.Warn("kafka queue full, dropping update", "time", u.Time)
	}
}

// Close drains the queue and closes the writer
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.queue) })
	<-p.done
	return p.w.Close()
}

func (p *Publisher) loop() {
	defer close(p.done)
	for u := range p.queue {
		p.write(u)
	}
}

func (p *Publisher) write(u controller.Update) {
	msg := NewMessage(u, time.Now().UTC())
	b, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal failed", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.w.WriteMessages(ctx, kafka.Message{Key: []byte(messageKey), Value: b, Time: msg.Published})
	if err != nil {
		p.log.Error("kafka write failed", "err", err)
		return
	}
	p.log.Debug("published", "time", msg.Time, "setPoint", msg.Display)
}
