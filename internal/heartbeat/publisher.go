// Package heartbeat publishes a liveness beacon over MQTT. The
// publisher runs as a managed task so it shares the pause/stop
// lifecycle of the polling tasks.
package heartbeat

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/ipmon/internal/taskmgr"
)

const (
	DefaultTopic    = "ipmon/heartbeat"
	defaultPayload  = "ipmon_heartbeat"
	connectTimeout  = 10 * time.Second
	publishTimeout  = 5 * time.Second
	DefaultInterval = time.Second
)

// client is the slice of mqtt.Client the publisher needs; narrowed so
// tests can fake it.
type client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

type Publisher struct {
	logger   *zap.Logger
	tasks    *taskmgr.Manager
	client   client
	raw      mqtt.Client // nil when constructed with a fake
	topic    string
	interval time.Duration
}

// Connect dials the broker and returns a publisher ready to run.
func Connect(logger *zap.Logger, tasks *taskmgr.Manager, broker, topic string, interval time.Duration) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("ipmon-" + uuid.NewString()[:8]).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, errors.New("heartbeat: broker connect timeout")
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("heartbeat: connect %s: %w", broker, err)
	}
	p := New(logger, tasks, c, topic, interval)
	p.raw = c
	return p, nil
}

func New(logger *zap.Logger, tasks *taskmgr.Manager, c client, topic string, interval time.Duration) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Publisher{
		logger:   logger,
		tasks:    tasks,
		client:   c,
		topic:    topic,
		interval: interval,
	}
}

// Run is a task manager entry point: publish, checkpoint, sleep, until
// the task is stopped.
func (p *Publisher) Run(id taskmgr.ID, _ any) {
	for {
		if p.tasks.Checkpoint(id) == taskmgr.StateStopped {
			return
		}
		tok := p.client.Publish(p.topic, 0, false, defaultPayload)
		if tok.WaitTimeout(publishTimeout) {
			if err := tok.Error(); err != nil {
				p.logger.Warn("heartbeat_publish_failed", zap.Error(err))
			}
		}
		if !p.tasks.Wait(id, p.interval) {
			return
		}
	}
}

// Close disconnects from the broker. Call only after the Run task has
// been stopped.
func (p *Publisher) Close() {
	if p.raw != nil {
		p.raw.Disconnect(250)
	}
}
