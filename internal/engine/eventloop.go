// Package engine provides the deterministic event queue that owns simulated time
package engine

import (
	"container/heap"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/message"
)

// ErrInvalidTime is returned when scheduling before the current simulated time
var ErrInvalidTime = errors.New("event scheduled in the past")

// Event is a pending delivery of Payload to Target
type Event struct {
	Due     domain.SimTime
	Seq     uint64
	Target  domain.AgentID
	From    domain.AgentID
	Payload message.Message

	index int // position in the heap, -1 once popped or cancelled
}

// Handle refers to a scheduled event for cancellation. The zero Handle refers to nothing
type Handle uint64

// eventHeap is a min-heap of events ordered by (Due, Seq)
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h eventHeap) Less(i, j int) bool {
	if h[i].Due != h[j].Due {
		return h[i].Due < h[j].Due
	}
	return h[i].Seq < h[j].Seq
}

func (h *eventHeap) Push(x interface{}) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[:n-1]
	return item
}

// Queue is the simulation clock and pending-event set
type Queue struct {
	queue eventHeap
	bySeq map[uint64]*Event
	seqNo uint64
	now   domain.SimTime

	// Stats
	Popped uint64
}

// NewQueue creates an empty queue whose clock reads start
func NewQueue(start domain.SimTime) *Queue {
	q := &Queue{
		bySeq: make(map[uint64]*Event),
		now:   start,
	}
	heap.Init(&q.queue)
	return q
}

// Now returns the current simulated time
func (q *Queue) Now() domain.SimTime {
	return q.now
}

// Schedule adds an event. Seq is assigned here for deterministic tie-breaking.
// Fails with ErrInvalidTime if due is before Now
func (q *Queue) Schedule(due domain.SimTime, target, from domain.AgentID, payload message.Message) (Handle, error) {
	if due < q.now {
		return 0, errors.Wrapf(ErrInvalidTime, "due %d before now %d", due, q.now)
	}
	q.seqNo++
	e := &Event{
		Due:     due,
		Seq:     q.seqNo,
		Target:  target,
		From:    from,
		Payload: payload,
	}
	heap.Push(&q.queue, e)
	q.bySeq[e.Seq] = e
	return Handle(e.Seq), nil
}

// PopNext removes the earliest event and advances Now to its due time.
// This is the only place simulated time moves forward
func (q *Queue) PopNext() (*Event, bool) {
	if q.queue.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.queue).(*Event)
	delete(q.bySeq, e.Seq)
	q.now = e.Due
	q.Popped++
	return e, true
}

// Peek returns the earliest event without removing it
func (q *Queue) Peek() (*Event, bool) {
	if q.queue.Len() == 0 {
		return nil, false
	}
	return q.queue[0], true
}

// Cancel removes a pending event. Returns false if it was already popped or cancelled
func (q *Queue) Cancel(h Handle) bool {
	e, ok := q.bySeq[uint64(h)]
	if !ok {
		return false
	}
	heap.Remove(&q.queue, e.index)
	delete(q.bySeq, e.Seq)
	return true
}

// Len returns the number of events still in the queue
func (q *Queue) Len() int {
	return q.queue.Len()
}

// LastSeq returns the most recently assigned sequence number
func (q *Queue) LastSeq() uint64 {
	return q.seqNo
}
