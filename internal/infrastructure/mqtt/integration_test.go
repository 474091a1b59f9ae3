//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "pjlink-int-connect"

	client, err := Connect(cfg, Will{Topic: Topics{}.Health("int"), Payload: []byte(`{"status":"offline"}`)})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_RetainedSlotRoundtrip(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "pjlink-int-pub"
	pub, err := Connect(cfg, Will{})
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	topic := Topics{}.SlotState("int", "powerStatus")
	payload := `{"val":1,"ack":true}`
	if err := pub.Publish(topic, []byte(payload), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	cfg.Broker.ClientID = "pjlink-int-sub"
	sub, err := Connect(cfg, Will{})
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	received := make(chan string, 1)
	var once sync.Once
	err = sub.Subscribe(Topics{}.AllSlotStates(), 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !sub.HasSubscription(Topics{}.AllSlotStates()) {
		t.Error("subscription not tracked")
	}

	select {
	case got := <-received:
		if got != payload {
			t.Errorf("received %q, want %q", got, payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for retained message")
	}

	// Clear the retained message.
	_ = pub.Publish(topic, nil, 1, true)
}
