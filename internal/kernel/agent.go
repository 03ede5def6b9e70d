package kernel

import (
	"math/rand"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/engine"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/message"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/agent_mock.go -package mocks github.com/akshitanchan/marketsim/internal/kernel Agent

// Agent is the capability set the kernel drives. Callbacks run to completion,
// one at a time, and may call back into the kernel only through env.
// A returned error (or a panic) faults the agent: it is marked inert and
// receives nothing further, including OnStop.
type Agent interface {
	ID() domain.AgentID
	OnStart(env Env, start domain.SimTime) error
	OnWakeup(env Env, now domain.SimTime) error
	OnMessage(env Env, now domain.SimTime, from domain.AgentID, msg message.Message) error
	OnStop(env Env) error
}

// Env is an agent's handle on the kernel. It is only valid inside a callback.
type Env interface {
	// Now is the due time of the event being dispatched, or the stop time
	// during OnStop.
	Now() domain.SimTime
	// ID is the calling agent.
	ID() domain.AgentID

	// ScheduleWakeup asks for OnWakeup at the given time. Scheduling in the
	// past is a fatal SchedulingError.
	ScheduleWakeup(at domain.SimTime) (engine.Handle, error)
	// CancelWakeup cancels one of the caller's own pending wakeups.
	CancelWakeup(h engine.Handle) bool
	// Send delivers msg to another agent after the computation delay plus
	// link latency. An unknown target is a fatal SchedulingError.
	Send(to domain.AgentID, msg message.Message) error
	// SetComputationDelay changes how long the caller's outbound messages
	// wait before leaving.
	SetComputationDelay(d domain.SimTime)

	// NextOrderID allocates a run-unique, monotonic order id.
	NextOrderID() domain.OrderID
	// Rand is the caller's private random source, derived from the run seed.
	Rand() *rand.Rand
	// Logger is scoped to the caller.
	Logger() *logging.Logger
	// Record appends to the run log. Seq, Time and Agent are stamped here.
	Record(r *eventlog.Record)
}
