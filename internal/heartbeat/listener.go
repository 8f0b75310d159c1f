// Package heartbeat records device heartbeats received over MQTT as the
// devices' last activity.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultTopic matches devicepulse/{tenantId}/{deviceId}/heartbeat.
const DefaultTopic = "devicepulse/+/+/heartbeat"

const (
	topicSuffix      = "heartbeat"
	subscribeTimeout = 10 * time.Second
	recordTimeout    = 5 * time.Second
)

// ErrBadTopic is returned for topics that do not name a tenant and device.
var ErrBadTopic = errors.New("heartbeat topic must end in {tenantId}/{deviceId}/heartbeat")

// Recorder stores the latest activity of a device.
type Recorder interface {
	Touch(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID, at time.Time) error
}

// Subscriber is the part of mqtt.Client the listener uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

var _ Subscriber = (mqtt.Client)(nil)

// Heartbeat is one decoded heartbeat message.
type Heartbeat struct {
	TenantID models.TenantID
	DeviceID models.DeviceID
	At       time.Time
}

type payload struct {
	TS *int64 `json:"ts"`
}

// Parse decodes a heartbeat from its topic and payload. The payload may be
// anything; a JSON object with a positive "ts" (epoch millis) sets the
// heartbeat time, otherwise received is used. Times after received are
// clamped to received.
func Parse(topic string, body []byte, received time.Time) (Heartbeat, error) {
	parts := strings.Split(topic, "/")
	n := len(parts)
	if n < 3 || parts[n-1] != topicSuffix {
		return Heartbeat{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	tenantID, err := models.ParseTenantID(parts[n-3])
	if err != nil {
		return Heartbeat{}, err
	}
	deviceID, err := models.ParseDeviceID(parts[n-2])
	if err != nil {
		return Heartbeat{}, err
	}

	at := received
	var p payload
	if len(body) > 0 && json.Unmarshal(body, &p) == nil && p.TS != nil && *p.TS > 0 {
		at = time.UnixMilli(*p.TS)
		if at.After(received) {
			at = received
		}
	}
	return Heartbeat{TenantID: tenantID, DeviceID: deviceID, At: at}, nil
}

// Listener subscribes to heartbeat topics and records each heartbeat.
type Listener struct {
	client   Subscriber
	topic    string
	recorder Recorder
	now      func() time.Time
	logger   *zap.Logger
	received *prometheus.CounterVec

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Listener.
type Option func(*Listener)

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option {
	return func(l *Listener) {
		if topic != "" {
			l.topic = topic
		}
	}
}

// WithClock sets the time source for receipt times.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

// WithRegisterer registers the heartbeat counter with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Listener) { reg.MustRegister(l.received) }
}

// NewListener creates a Listener that records heartbeats into recorder.
func NewListener(client Subscriber, recorder Recorder, logger *zap.Logger, opts ...Option) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Listener{
		client:   client,
		topic:    DefaultTopic,
		recorder: recorder,
		now:      time.Now,
		logger:   logger,
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "devicepulse",
				Name:      "heartbeats_total",
				Help:      "Heartbeat messages received, by result.",
			},
			[]string{"result"},
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start subscribes to the heartbeat topic. Recording uses contexts derived
// from ctx.
func (l *Listener) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	l.ctx = runCtx

	tok := l.client.Subscribe(l.topic, 1, l.HandleMessage)
	if !tok.WaitTimeout(subscribeTimeout) {
		cancel()
		return fmt.Errorf("subscribe %s: timed out", l.topic)
	}
	if err := tok.Error(); err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", l.topic, err)
	}
	l.cancel = cancel
	l.logger.Info("listening for heartbeats", zap.String("topic", l.topic))
	return nil
}

// Stop unsubscribes and cancels in-flight recordings.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	tok := l.client.Unsubscribe(l.topic)
	if tok.WaitTimeout(subscribeTimeout) && tok.Error() != nil {
		l.logger.Warn("unsubscribe failed", zap.String("topic", l.topic), zap.Error(tok.Error()))
	}
	l.cancel()
}

// HandleMessage is the mqtt.MessageHandler for heartbeat messages.
func (l *Listener) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := l.Record(ctx, msg.Topic(), msg.Payload()); err != nil {
		l.logger.Warn("heartbeat dropped", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Record parses one heartbeat and stores it.
func (l *Listener) Record(ctx context.Context, topic string, body []byte) error {
	hb, err := Parse(topic, body, l.now())
	if err != nil {
		l.received.WithLabelValues("rejected").Inc()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if err := l.recorder.Touch(ctx, hb.TenantID, hb.DeviceID, hb.At); err != nil {
		l.received.WithLabelValues("failed").Inc()
		return fmt.Errorf("record heartbeat for %s: %w", hb.DeviceID, err)
	}

	l.received.WithLabelValues("recorded").Inc()
	l.logger.Debug("heartbeat recorded",
		zap.String("tenant_id", hb.TenantID.String()),
		zap.String("device_id", hb.DeviceID.String()),
		zap.Time("at", hb.At),
	)
	return nil
}
