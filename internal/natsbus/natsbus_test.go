package natsbus

import (
	"testing"
	"time"

	"github.com/herbert256/swarmgen/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    -1, // Random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)
	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPublishJSONDelivers(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe(TopicEventsReports, func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := client.PublishJSON(TopicEventsReport("r1"), map[string]string{"type": "report_created"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != `{"type":"report_created"}` {
			t.Errorf("unexpected payload: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestWildcardCoversReportAndScheduledEvents(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()

	received := make(chan *nats.Msg, 2)
	_, err = client.Subscribe(TopicEventsAll, func(msg *nats.Msg) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := client.PublishJSON(TopicEventsReport("r1"), map[string]int{"n": 1}); err != nil {
		t.Fatalf("publish report event: %v", err)
	}
	if err := client.PublishJSON(TopicEventsScheduled("s1"), map[string]int{"n": 2}); err != nil {
		t.Fatalf("publish scheduled event: %v", err)
	}
	client.Flush()

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicEventsReport("r1"); got != "events.report.r1" {
		t.Errorf("expected events.report.r1, got %s", got)
	}
	if got := TopicEventsScheduled("s1"); got != "events.scheduled.s1" {
		t.Errorf("expected events.scheduled.s1, got %s", got)
	}
}
