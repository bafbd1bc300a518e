package heartbeat

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/hamed0406/ipmon/internal/taskmgr"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Error() error                   { return nil }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeClient struct {
	mu     sync.Mutex
	topics []string
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return fakeToken{}
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics)
}

func TestRun_PublishesUntilStopped(t *testing.T) {
	mgr := taskmgr.New()
	defer mgr.Destroy()
	fc := &fakeClient{}
	pub := New(zap.NewNop(), mgr, fc, "ipmon/test", 2*time.Millisecond)

	id, err := mgr.Create(pub.Run, "heartbeat")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for fc.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if fc.count() < 2 {
		t.Fatalf("published %d times, want at least 2", fc.count())
	}

	if err := mgr.Stop(id); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !mgr.WaitExit(id, time.Second) {
		t.Fatal("publisher task did not exit after Stop")
	}

	n := fc.count()
	time.Sleep(20 * time.Millisecond)
	if fc.count() != n {
		t.Fatal("publisher kept publishing after Stop")
	}

	fc.mu.Lock()
	topic := fc.topics[0]
	fc.mu.Unlock()
	if topic != "ipmon/test" {
		t.Fatalf("topic = %q", topic)
	}
}

func TestNew_Defaults(t *testing.T) {
	mgr := taskmgr.New()
	defer mgr.Destroy()
	pub := New(zap.NewNop(), mgr, &fakeClient{}, "", 0)
	if pub.topic != DefaultTopic {
		t.Fatalf("topic = %q, want %q", pub.topic, DefaultTopic)
	}
	if pub.interval != DefaultInterval {
		t.Fatalf("interval = %v, want %v", pub.interval, DefaultInterval)
	}
}
