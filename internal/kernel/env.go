package kernel

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/engine"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/message"
)

type env struct {
	k       *Kernel
	id      domain.AgentID
	rng     *rand.Rand
	log     *logging.Logger
	delay   domain.SimTime
	wakeups map[engine.Handle]struct{}
}

func (e *env) Now() domain.SimTime     { return e.k.now }
func (e *env) ID() domain.AgentID      { return e.id }
func (e *env) Rand() *rand.Rand        { return e.rng }
func (e *env) Logger() *logging.Logger { return e.log }

func (e *env) ScheduleWakeup(at domain.SimTime) (engine.Handle, error) {
	if at < e.k.now {
		return 0, e.k.schedulingError(e.id, e.id, errors.Wrapf(ErrInvalidTime, "wakeup at %s", at))
	}
	h, err := e.k.queue.Schedule(at, e.id, e.id, message.Wakeup{})
	if err != nil {
		return 0, e.k.schedulingError(e.id, e.id, err)
	}
	e.wakeups[h] = struct{}{}
	return h, nil
}

func (e *env) CancelWakeup(h engine.Handle) bool {
	if _, ok := e.wakeups[h]; !ok {
		return false
	}
	delete(e.wakeups, h)
	return e.k.queue.Cancel(h)
}

func (e *env) Send(to domain.AgentID, msg message.Message) error {
	if to < 0 || int(to) >= len(e.k.agents) {
		return e.k.schedulingError(e.id, to, ErrUnknownTarget)
	}
	if msg == nil || msg.Kind() == message.KindWakeup {
		return e.k.schedulingError(e.id, to, errors.New("wakeups cannot be sent as messages"))
	}
	due := e.k.now + e.delay + e.k.cfg.Latency.Delay(e.id, to)
	if _, err := e.k.queue.Schedule(due, to, e.id, msg); err != nil {
		return e.k.schedulingError(e.id, to, err)
	}
	return nil
}

func (e *env) SetComputationDelay(d domain.SimTime) {
	if d < 0 {
		d = 0
	}
	e.delay = d
}

func (e *env) NextOrderID() domain.OrderID {
	e.k.nextOrderID++
	return domain.OrderID(e.k.nextOrderID)
}

func (e *env) Record(r *eventlog.Record) {
	e.k.record(e.id, r)
}

// schedulingError marks the run as failed and returns the error so the
// caller can also see it.
func (k *Kernel) schedulingError(from, to domain.AgentID, err error) error {
	se := &SchedulingError{Agent: from, Target: to, Time: k.now, Err: err}
	if k.fatal == nil {
		k.fatal = se
	}
	return se
}
