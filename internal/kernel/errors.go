package kernel

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/engine"
)

var (
	ErrDuplicateAgent  = errors.New("duplicate agent id")
	ErrAgentIDMismatch = errors.New("agent id does not match roster position")
	ErrNilAgent        = errors.New("nil agent")
	ErrNoLatencyModel  = errors.New("no latency model")
	ErrStopBeforeStart = errors.New("stop time before start time")
	ErrUnknownTarget   = errors.New("unknown target agent")
	ErrInvalidTime     = engine.ErrInvalidTime
	ErrAlreadyRun      = errors.New("kernel has already run")
)

// ConfigurationError is fatal and raised before the run starts.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// SchedulingError aborts a running simulation: an event for an agent that
// does not exist, or a wakeup in the past.
type SchedulingError struct {
	Agent  domain.AgentID // the caller
	Target domain.AgentID
	Time   domain.SimTime
	Err    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling error at %s: agent %d -> %d: %v", e.Time, e.Agent, e.Target, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// AgentFault records a failed callback. The run continues without the agent.
type AgentFault struct {
	Agent    domain.AgentID
	Time     domain.SimTime
	Callback string
	Panicked bool
	Err      error
}

func (e *AgentFault) Error() string {
	return fmt.Sprintf("agent %d faulted in %s at %s: %v", e.Agent, e.Callback, e.Time, e.Err)
}

func (e *AgentFault) Unwrap() error { return e.Err }
