package trader

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/message"
)

func TestMachineTransitions(t *testing.T) {
	m := NewMachine()
	if m.State() != AwaitingWakeup {
		t.Fatalf("initial state %s", m.State())
	}
	steps := []State{AwaitingSpread, AwaitingWakeup, AwaitingMarketData, AwaitingMarketData, AwaitingWakeup, Inactive}
	for _, s := range steps {
		if err := m.To(s); err != nil {
			t.Fatalf("to %s: %v", s, err)
		}
	}
	for _, s := range []State{AwaitingWakeup, AwaitingSpread, AwaitingMarketData} {
		if err := m.To(s); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("inactive -> %s: got %v", s, err)
		}
	}
}

func TestMachineSpreadToMarketDataIsIllegal(t *testing.T) {
	m := NewMachine()
	_ = m.To(AwaitingSpread)
	if err := m.To(AwaitingMarketData); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("got %v", err)
	}
	if m.State() != AwaitingSpread {
		t.Fatalf("state changed to %s", m.State())
	}
}

func TestMachineAccepts(t *testing.T) {
	m := NewMachine()
	if err := m.Accept(message.KindSpreadResponse); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("spread response while awaiting wakeup: %v", err)
	}
	if err := m.Accept(message.KindOrderExecuted); err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(message.KindL1Update); err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(message.KindLimitOrder); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("requests are never accepted by traders: %v", err)
	}

	_ = m.To(AwaitingSpread)
	if err := m.Accept(message.KindSpreadResponse); err != nil {
		t.Fatal(err)
	}

	_ = m.To(Inactive)
	if err := m.Accept(message.KindOrderExecuted); !errors.Is(err, ErrUnexpectedMessage) {
		t.Fatalf("inactive agents accept nothing: %v", err)
	}
}
