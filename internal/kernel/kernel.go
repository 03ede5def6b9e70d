// Package kernel runs the discrete-event simulation: it owns the clock and
// event queue, routes messages between agents with latency applied, and
// isolates agent failures.
package kernel

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/engine"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/latency"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/message"
	"github.com/akshitanchan/marketsim/internal/metrics"
)

// State is the run lifecycle
type State uint8

const (
	NotStarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	default:
		return "STOPPED"
	}
}

// Config is the validated input of one run.
type Config struct {
	Start domain.SimTime
	Stop  domain.SimTime
	Seed  int64

	Latency latency.Model
	// DefaultComputationDelay is how long each agent's messages wait before
	// leaving, until the agent changes it.
	DefaultComputationDelay domain.SimTime

	Sink    eventlog.Sink
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Kernel drives one simulation run. It is single-threaded: agents are called
// one at a time in (due time, sequence) order.
type Kernel struct {
	cfg    Config
	log    *logging.Logger
	sink   eventlog.Sink
	agents []Agent
	envs   []*env
	inert  []bool

	queue *engine.Queue
	state State
	now   domain.SimTime

	nextOrderID uint64
	recordSeq   uint64
	faults      []*AgentFault
	fatal       error

	trace    hash.Hash
	traceBuf [33]byte

	// Stats
	Dispatched uint64
	Skipped    uint64
}

// New validates the roster and configuration. Agent ids must be dense from 0
// and equal to their roster position.
func New(cfg Config, agents []Agent) (*Kernel, error) {
	if cfg.Latency == nil {
		return nil, &ConfigurationError{Field: "latency", Err: ErrNoLatencyModel}
	}
	if cfg.Stop < cfg.Start {
		return nil, &ConfigurationError{Field: "stop", Err: errors.Wrapf(ErrStopBeforeStart, "%s < %s", cfg.Stop, cfg.Start)}
	}
	if cfg.DefaultComputationDelay < 0 {
		return nil, &ConfigurationError{Field: "computation_delay", Err: errors.New("negative computation delay")}
	}
	seen := make(map[domain.AgentID]int, len(agents))
	for i, a := range agents {
		if a == nil {
			return nil, &ConfigurationError{Field: "agents", Err: errors.Wrapf(ErrNilAgent, "position %d", i)}
		}
		id := a.ID()
		if prev, dup := seen[id]; dup {
			return nil, &ConfigurationError{Field: "agents", Err: errors.Wrapf(ErrDuplicateAgent, "id %d at positions %d and %d", id, prev, i)}
		}
		seen[id] = i
		if id != domain.AgentID(i) {
			return nil, &ConfigurationError{Field: "agents", Err: errors.Wrapf(ErrAgentIDMismatch, "id %d at position %d", id, i)}
		}
	}

	if cfg.Sink == nil {
		cfg.Sink = eventlog.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	k := &Kernel{
		cfg:    cfg,
		log:    cfg.Logger.Named("kernel"),
		sink:   cfg.Sink,
		agents: agents,
		envs:   make([]*env, len(agents)),
		inert:  make([]bool, len(agents)),
		queue:  engine.NewQueue(cfg.Start),
		now:    cfg.Start,
		trace:  sha256.New(),
	}

	// Each agent gets its own source, drawn in id order from the run seed.
	master := rand.New(rand.NewSource(cfg.Seed))
	for i := range agents {
		id := domain.AgentID(i)
		k.envs[i] = &env{
			k:       k,
			id:      id,
			rng:     rand.New(rand.NewSource(master.Int63())),
			log:     cfg.Logger.Named("agent").With(logging.AgentID(id)),
			delay:   cfg.DefaultComputationDelay,
			wakeups: make(map[engine.Handle]struct{}),
		}
	}
	return k, nil
}

// Run starts every agent, dispatches events until the queue is empty or the
// next event is due after the stop time, then stops every live agent.
// It returns a *SchedulingError if an agent addresses an unknown target or
// schedules into the past, and ctx.Err() if ctx is cancelled between events.
func (k *Kernel) Run(ctx context.Context) error {
	if k.state != NotStarted {
		return ErrAlreadyRun
	}
	k.state = Running
	k.log.Info("run starting",
		logging.SimTime("start", k.cfg.Start),
		logging.SimTime("stop", k.cfg.Stop),
		logging.Int("agents", len(k.agents)),
		logging.Int64("seed", k.cfg.Seed))
	k.record(domain.NoAgent, &eventlog.Record{Type: eventlog.TypeRunStart})

	for i, a := range k.agents {
		a, e := a, k.envs[i]
		k.invoke(e, "OnStart", func() error { return a.OnStart(e, k.cfg.Start) })
		if k.fatal != nil {
			return k.abort()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			k.state = Stopped
			k.log.Warn("run cancelled", logging.SimTime("now", k.now), logging.Error(err))
			return err
		}
		next, ok := k.queue.Peek()
		if !ok || next.Due > k.cfg.Stop {
			break
		}
		ev, _ := k.queue.PopNext()
		k.now = ev.Due
		k.dispatch(ev)
		if k.fatal != nil {
			return k.abort()
		}
	}

	k.state = Stopped
	k.now = k.cfg.Stop
	for i, a := range k.agents {
		if k.inert[i] {
			continue
		}
		a, e := a, k.envs[i]
		k.invoke(e, "OnStop", func() error { return a.OnStop(e) })
		if k.fatal != nil {
			return k.fatal
		}
	}
	k.record(domain.NoAgent, &eventlog.Record{
		Type: eventlog.TypeRunStop,
		Values: map[string]int64{
			"dispatched": int64(k.Dispatched),
			"skipped":    int64(k.Skipped),
			"faults":     int64(len(k.faults)),
			"pending":    int64(k.queue.Len()),
		},
	})
	k.log.Info("run stopped",
		logging.Uint64("dispatched", k.Dispatched),
		logging.Uint64("skipped", k.Skipped),
		logging.Int("faults", len(k.faults)),
		logging.String("trace", k.TraceDigest()))
	return k.fatal
}

func (k *Kernel) abort() error {
	k.state = Stopped
	k.log.Error("run aborted", logging.SimTime("now", k.now), logging.Error(k.fatal))
	return k.fatal
}

func (k *Kernel) dispatch(ev *engine.Event) {
	target := int(ev.Target)
	if target < 0 || target >= len(k.agents) {
		// Send validates targets, so this only happens if the queue was fed
		// from outside the kernel.
		k.fatal = &SchedulingError{Agent: ev.From, Target: ev.Target, Time: ev.Due, Err: ErrUnknownTarget}
		return
	}
	if k.inert[target] {
		k.Skipped++
		k.cfg.Metrics.EventSkipped()
		return
	}

	k.hashEvent(ev)
	k.Dispatched++
	k.cfg.Metrics.EventDispatched(int64(ev.Due), k.queue.Len())

	a, e := k.agents[target], k.envs[target]
	if ev.Payload.Kind() == message.KindWakeup {
		delete(e.wakeups, engine.Handle(ev.Seq))
		k.invoke(e, "OnWakeup", func() error { return a.OnWakeup(e, ev.Due) })
		return
	}
	k.invoke(e, "OnMessage", func() error { return a.OnMessage(e, ev.Due, ev.From, ev.Payload) })
}

// invoke runs one callback, converting an error or panic into a fault.
// A fatal scheduling error raised during the callback takes precedence.
func (k *Kernel) invoke(e *env, callback string, fn func() error) {
	var panicked bool
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = errors.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err == nil || k.fatal != nil {
		return
	}
	k.fault(&AgentFault{Agent: e.id, Time: k.now, Callback: callback, Panicked: panicked, Err: err})
}

func (k *Kernel) fault(f *AgentFault) {
	k.faults = append(k.faults, f)
	k.inert[f.Agent] = true
	k.cfg.Metrics.AgentFault()
	k.log.Warn("agent fault, agent is now inert",
		logging.AgentID(f.Agent),
		logging.String("callback", f.Callback),
		logging.Bool("panicked", f.Panicked),
		logging.SimTime("now", f.Time),
		logging.Error(f.Err))
	k.record(f.Agent, &eventlog.Record{Type: eventlog.TypeAgentFault, Reason: f.Callback + ": " + f.Err.Error()})
}

func (k *Kernel) record(agent domain.AgentID, r *eventlog.Record) {
	k.recordSeq++
	r.Seq = k.recordSeq
	r.Time = k.now
	r.Agent = agent
	if err := k.sink.Write(r); err != nil && k.fatal == nil {
		k.fatal = errors.Wrap(err, "write record")
	}
}

// hashEvent folds the dispatched event into the trace digest.
func (k *Kernel) hashEvent(ev *engine.Event) {
	b := k.traceBuf[:]
	binary.BigEndian.PutUint64(b[0:], uint64(ev.Due))
	binary.BigEndian.PutUint64(b[8:], ev.Seq)
	binary.BigEndian.PutUint64(b[16:], uint64(ev.Target))
	binary.BigEndian.PutUint64(b[24:], uint64(ev.From))
	b[32] = byte(ev.Payload.Kind())
	k.trace.Write(b)
}

// State returns the lifecycle state.
func (k *Kernel) State() State {
	return k.state
}

// Now returns the current simulated time.
func (k *Kernel) Now() domain.SimTime {
	return k.now
}

// Faults returns the agent faults recorded so far, in order.
func (k *Kernel) Faults() []*AgentFault {
	return k.faults
}

// Inert reports whether an agent has faulted.
func (k *Kernel) Inert(id domain.AgentID) bool {
	return id >= 0 && int(id) < len(k.inert) && k.inert[id]
}

// Pending returns the number of undelivered events.
func (k *Kernel) Pending() int {
	return k.queue.Len()
}

// TraceDigest is the hex SHA-256 over every dispatched (due, seq, target,
// from, kind). Two runs with equal digests dispatched identical traces.
func (k *Kernel) TraceDigest() string {
	return hex.EncodeToString(k.trace.Sum(nil))
}
