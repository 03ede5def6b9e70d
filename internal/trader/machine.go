package trader

import (
	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/message"
)

var (
	// ErrUnexpectedMessage is returned for a message the current state does not accept
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrIllegalTransition is returned for a transition missing from the table
	ErrIllegalTransition = errors.New("illegal state transition")
)

// State is where an agent is in its wakeup / query cycle
type State uint8

const (
	AwaitingWakeup State = iota
	AwaitingSpread
	AwaitingMarketData
	Inactive
)

func (s State) String() string {
	switch s {
	case AwaitingWakeup:
		return "AWAITING_WAKEUP"
	case AwaitingSpread:
		return "AWAITING_SPREAD"
	case AwaitingMarketData:
		return "AWAITING_MARKET_DATA"
	case Inactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

var transitions = map[State][]State{
	AwaitingWakeup:     {AwaitingSpread, AwaitingMarketData, Inactive},
	AwaitingSpread:     {AwaitingWakeup, Inactive},
	AwaitingMarketData: {AwaitingWakeup, Inactive},
	Inactive:           nil,
}

// Order traffic is accepted in every live state.
var orderKinds = []message.Kind{
	message.KindOrderAccepted,
	message.KindOrderRejected,
	message.KindOrderExecuted,
	message.KindOrderCancelled,
	message.KindCancelRejected,
	message.KindMarketHoursResponse,
	message.KindMarketClosed,
}

var marketDataKinds = []message.Kind{
	message.KindL1Update,
	message.KindL2Update,
	message.KindImbalanceUpdate,
}

var accepts = func() map[State]map[message.Kind]bool {
	set := func(groups ...[]message.Kind) map[message.Kind]bool {
		out := make(map[message.Kind]bool)
		for _, g := range groups {
			for _, k := range g {
				out[k] = true
			}
		}
		return out
	}
	return map[State]map[message.Kind]bool{
		AwaitingWakeup:     set(orderKinds, marketDataKinds),
		AwaitingSpread:     set(orderKinds, marketDataKinds, []message.Kind{message.KindSpreadResponse}),
		AwaitingMarketData: set(orderKinds, marketDataKinds),
		Inactive:           set(),
	}
}()

// Machine is an agent's explicit state with a fixed transition table
type Machine struct {
	state State
}

// NewMachine starts in AwaitingWakeup
func NewMachine() *Machine {
	return &Machine{state: AwaitingWakeup}
}

func (m *Machine) State() State {
	return m.state
}

// To moves to next if the table allows it. Staying put is always allowed
func (m *Machine) To(next State) error {
	if next == m.state {
		return nil
	}
	for _, s := range transitions[m.state] {
		if s == next {
			m.state = next
			return nil
		}
	}
	return errors.Wrapf(ErrIllegalTransition, "%s -> %s", m.state, next)
}

// Accept checks that the current state expects a message of kind k
func (m *Machine) Accept(k message.Kind) error {
	if accepts[m.state][k] {
		return nil
	}
	return errors.Wrapf(ErrUnexpectedMessage, "%s in %s", k, m.state)
}
