package engine

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/message"
)

func drain(q *Queue) []*Event {
	var out []*Event
	for {
		e, ok := q.PopNext()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestQueueOrdering(t *testing.T) {
	q := NewQueue(0)

	// Schedule events out of order.
	_, _ = q.Schedule(300, 0, 0, message.Wakeup{})
	_, _ = q.Schedule(100, 0, 0, message.Wakeup{})
	_, _ = q.Schedule(200, 0, 0, message.Wakeup{})

	events := drain(q)
	require.Len(t, events, 3)

	// Seqs are assigned 1,2,3. Dues are 300,100,200.
	// Order should be: due=100(seq=2), due=200(seq=3), due=300(seq=1).
	expectedSeqs := []uint64{2, 3, 1}
	for i, seq := range expectedSeqs {
		assert.Equal(t, seq, events[i].Seq, "event %d", i)
	}
	assert.Equal(t, domain.SimTime(300), q.Now())
}

func TestQueueSameDueFIFO(t *testing.T) {
	q := NewQueue(0)

	for target := domain.AgentID(10); target <= 30; target += 10 {
		_, err := q.Schedule(100, target, 0, message.Wakeup{})
		require.NoError(t, err)
	}

	events := drain(q)
	expected := []domain.AgentID{10, 20, 30}
	for i, id := range expected {
		assert.Equal(t, id, events[i].Target, "event %d", i)
	}
}

func TestQueueRejectsTimeTravel(t *testing.T) {
	q := NewQueue(50)

	_, err := q.Schedule(49, 0, 0, message.Wakeup{})
	assert.True(t, errors.Is(err, ErrInvalidTime))

	// Same-tick scheduling is allowed.
	_, err = q.Schedule(50, 0, 0, message.Wakeup{})
	assert.NoError(t, err)

	_, _ = q.Schedule(80, 0, 0, message.Wakeup{})
	q.PopNext()
	q.PopNext()
	_, err = q.Schedule(60, 0, 0, message.Wakeup{})
	assert.True(t, errors.Is(err, ErrInvalidTime))
}

func TestQueueCancel(t *testing.T) {
	q := NewQueue(0)
	h1, _ := q.Schedule(10, 1, 1, message.Wakeup{})
	h2, _ := q.Schedule(20, 2, 2, message.Wakeup{})
	_, _ = q.Schedule(30, 3, 3, message.Wakeup{})

	assert.True(t, q.Cancel(h2))
	assert.False(t, q.Cancel(h2), "second cancel is a no-op")
	assert.Equal(t, 2, q.Len())

	e, ok := q.PopNext()
	require.True(t, ok)
	assert.Equal(t, domain.AgentID(1), e.Target)
	assert.False(t, q.Cancel(h1), "cancel after dispatch is a no-op")

	e, ok = q.PopNext()
	require.True(t, ok)
	assert.Equal(t, domain.AgentID(3), e.Target)

	_, ok = q.PopNext()
	assert.False(t, ok)
	assert.False(t, q.Cancel(0))
}

func TestQueuePeek(t *testing.T) {
	q := NewQueue(0)
	_, ok := q.Peek()
	assert.False(t, ok)

	_, _ = q.Schedule(5, 0, 0, message.Wakeup{})
	e, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, domain.SimTime(5), e.Due)
	assert.Equal(t, domain.SimTime(0), q.Now(), "peek does not advance time")
}

// TestQueueCausality pops a randomized workload, with events scheduled while
// draining, and checks (Due, Seq) never goes backwards.
func TestQueueCausality(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := NewQueue(0)
	var handles []Handle
	for i := 0; i < 500; i++ {
		h, err := q.Schedule(domain.SimTime(rng.Int63n(1000)), 0, 0, message.Wakeup{})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for i := 0; i < 100; i++ {
		q.Cancel(handles[rng.Intn(len(handles))])
	}

	var lastDue domain.SimTime
	var lastSeq uint64
	for {
		e, ok := q.PopNext()
		if !ok {
			break
		}
		require.GreaterOrEqual(t, e.Due, lastDue)
		if e.Due == lastDue {
			require.Greater(t, e.Seq, lastSeq)
		}
		lastDue, lastSeq = e.Due, e.Seq
		if rng.Intn(4) == 0 {
			_, err := q.Schedule(q.Now()+domain.SimTime(rng.Int63n(50)), 0, 0, message.Wakeup{})
			require.NoError(t, err)
		}
	}
}
