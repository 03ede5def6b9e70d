package eventlog

import (
	"github.com/akshitanchan/marketsim/internal/domain"
)

// Type names a record kind
type Type string

const (
	TypeOrderSubmitted Type = "order_submitted"
	TypeOrderAccepted  Type = "order_accepted"
	TypeOrderRejected  Type = "order_rejected"
	TypeOrderExecuted  Type = "order_executed"
	TypeOrderCancelled Type = "order_cancelled"
	TypeCancelRejected Type = "cancel_rejected"
	TypeBookSnapshot   Type = "book_snapshot"
	TypeAgentFault     Type = "agent_fault"
	TypeVenueSummary   Type = "venue_summary"
	TypeAgentSummary   Type = "agent_summary"
	TypeOracleSample   Type = "oracle_sample"
	TypeRunStart       Type = "run_start"
	TypeRunStop        Type = "run_stop"
)

// Record is one append-only log entry. Seq and Time are stamped by the kernel
// in event order; the remaining fields depend on Type.
type Record struct {
	Seq   uint64         `json:"seq"`
	Time  domain.SimTime `json:"time"`
	Type  Type           `json:"type"`
	Agent domain.AgentID `json:"agent"`

	Symbol    string            `json:"symbol,omitempty"`
	Order     *domain.Order     `json:"order,omitempty"`
	Execution *domain.Execution `json:"execution,omitempty"`
	Book      *domain.L2        `json:"book,omitempty"`
	Reason    string            `json:"reason,omitempty"`

	// Values carries summary figures (cash, holdings, fees). JSON encodes map
	// keys in sorted order so the log stays byte-stable.
	Values map[string]int64 `json:"values,omitempty"`
}

// Sink receives records in event order
type Sink interface {
	Write(r *Record) error
}

//go:generate go run github.com/golang/mock/mockgen -destination mocks/sink_mock.go -package mocks github.com/akshitanchan/marketsim/internal/eventlog Sink

// Discard drops every record
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(*Record) error { return nil }

// MemorySink keeps records in memory, for tests and in-process analysis
type MemorySink struct {
	Records []*Record
}

// Write implements Sink
func (m *MemorySink) Write(r *Record) error {
	m.Records = append(m.Records, r)
	return nil
}

// OfType returns the records with the given type, in order
func (m *MemorySink) OfType(t Type) []*Record {
	var out []*Record
	for _, r := range m.Records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

type multi []Sink

// Multi fans every record out to all sinks, stopping at the first error
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(r *Record) error {
	for _, s := range m {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}
