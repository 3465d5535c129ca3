//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// These tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_StateRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-int-state"

	c, err := Connect(cfg)
	if err != nil {
		t.Skipf("no broker: %v", err)
	}
	defer c.Close()

	got := make(chan []byte, 1)
	topic := Topics{}.State("it_domain", "it_entry")
	if err := c.Subscribe(topic, 1, func(_ string, payload []byte) error {
		select {
		case got <- payload:
		default:
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	err = c.PublishState(StateMessage{
		Domain:    "it_domain",
		EntryID:   "it_entry",
		State:     map[string]any{"value": 1},
		Available: true,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-got:
		if len(payload) == 0 {
			t.Error("empty state payload")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("state message not received")
	}

	if err := c.ClearState("it_domain", "it_entry"); err != nil {
		t.Error(err)
	}
}
