package trader

import (
	"math/rand"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/engine"
	"github.com/akshitanchan/marketsim/internal/eventlog"
	"github.com/akshitanchan/marketsim/internal/logging"
	"github.com/akshitanchan/marketsim/internal/message"
)

type sent struct {
	to  domain.AgentID
	msg message.Message
}

// fakeEnv captures what an agent asks of the kernel
type fakeEnv struct {
	id      domain.AgentID
	now     domain.SimTime
	rng     *rand.Rand
	nextID  domain.OrderID
	sent    []sent
	wakeups []domain.SimTime
	records []*eventlog.Record
}

func newFakeEnv(id domain.AgentID, seed int64) *fakeEnv {
	return &fakeEnv{id: id, rng: rand.New(rand.NewSource(seed))}
}

func (e *fakeEnv) Now() domain.SimTime     { return e.now }
func (e *fakeEnv) ID() domain.AgentID      { return e.id }
func (e *fakeEnv) Rand() *rand.Rand        { return e.rng }
func (e *fakeEnv) Logger() *logging.Logger { return logging.NewNopLogger() }

func (e *fakeEnv) ScheduleWakeup(at domain.SimTime) (engine.Handle, error) {
	e.wakeups = append(e.wakeups, at)
	return engine.Handle(len(e.wakeups)), nil
}

func (e *fakeEnv) CancelWakeup(engine.Handle) bool { return false }

func (e *fakeEnv) Send(to domain.AgentID, msg message.Message) error {
	e.sent = append(e.sent, sent{to: to, msg: msg})
	return nil
}

func (e *fakeEnv) SetComputationDelay(domain.SimTime) {}

func (e *fakeEnv) NextOrderID() domain.OrderID {
	e.nextID++
	return e.nextID
}

func (e *fakeEnv) Record(r *eventlog.Record) {
	e.records = append(e.records, r)
}

func (e *fakeEnv) take() []sent {
	out := e.sent
	e.sent = nil
	return out
}
