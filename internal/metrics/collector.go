// Package metrics holds run instrumentation: prometheus instruments for a
// live run and a record collector that tallies per-agent figures from a log.
package metrics

import (
	"io"
	"sort"
	"strconv"

	"github.com/akshitanchan/marketsim/internal/domain"
	"github.com/akshitanchan/marketsim/internal/eventlog"
)

// AgentMetrics holds tallies for a single agent.
type AgentMetrics struct {
	Agent domain.AgentID `json:"agent"`

	// Order counts.
	OrdersSent   int `json:"orders_sent"`
	LimitOrders  int `json:"limit_orders"`
	MarketOrders int `json:"market_orders"`
	Rejected     int `json:"rejected"`
	Cancelled    int `json:"cancelled"`

	// Fill metrics.
	Fills      int    `json:"fills"`
	MakerFills int    `json:"maker_fills"`
	TakerFills int    `json:"taker_fills"`
	QtyBought  uint64 `json:"qty_bought"`
	QtySold    uint64 `json:"qty_sold"`
	FeesPaid   int64  `json:"fees_paid"` // net of rebates
	Notional   int64  `json:"notional"`

	// Queue position of this agent's resting orders when filled.
	AvgMakerQueuePos float64 `json:"avg_maker_queue_pos"`

	Faulted bool `json:"faulted,omitempty"`
}

// Summary is the aggregate of one run's log.
type Summary struct {
	Records    int                              `json:"records"`
	ByType     map[eventlog.Type]int            `json:"by_type"`
	Executions int                              `json:"executions"`
	Volume     uint64                           `json:"volume"`
	VenueFees  map[domain.AgentID]int64         `json:"venue_fees"`
	Agents     map[domain.AgentID]*AgentMetrics `json:"agents"`
}

// SortedAgents returns the agent tallies in id order.
func (s *Summary) SortedAgents() []*AgentMetrics {
	out := make([]*AgentMetrics, 0, len(s.Agents))
	for _, a := range s.Agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Collector accumulates tallies from records. It is an eventlog.Sink and can
// optionally mirror fills into live prometheus instruments.
type Collector struct {
	summary  Summary
	queueSum map[domain.AgentID]int
	live     *Metrics
}

// NewCollector creates a new collector. live may be nil.
func NewCollector(live *Metrics) *Collector {
	return &Collector{
		summary: Summary{
			ByType:    make(map[eventlog.Type]int),
			VenueFees: make(map[domain.AgentID]int64),
			Agents:    make(map[domain.AgentID]*AgentMetrics),
		},
		queueSum: make(map[domain.AgentID]int),
		live:     live,
	}
}

func (c *Collector) getAccum(id domain.AgentID) *AgentMetrics {
	if a, ok := c.summary.Agents[id]; ok {
		return a
	}
	a := &AgentMetrics{Agent: id}
	c.summary.Agents[id] = a
	return a
}

// Write implements eventlog.Sink.
func (c *Collector) Write(r *eventlog.Record) error {
	c.ProcessRecord(r)
	return nil
}

// ProcessRecord ingests a single record.
func (c *Collector) ProcessRecord(r *eventlog.Record) {
	c.summary.Records++
	c.summary.ByType[r.Type]++

	switch r.Type {
	case eventlog.TypeOrderSubmitted:
		if r.Order == nil {
			return
		}
		a := c.getAccum(r.Order.Owner)
		a.OrdersSent++
		if r.Order.IsMarket {
			a.MarketOrders++
		} else {
			a.LimitOrders++
		}
	case eventlog.TypeOrderRejected:
		if r.Order != nil {
			c.getAccum(r.Order.Owner).Rejected++
		}
		c.live.Order(venueLabel(r.Agent), "rejected")
	case eventlog.TypeOrderAccepted:
		c.live.Order(venueLabel(r.Agent), "accepted")
	case eventlog.TypeOrderCancelled:
		if r.Order != nil {
			c.getAccum(r.Order.Owner).Cancelled++
		}
	case eventlog.TypeOrderExecuted:
		if r.Execution != nil {
			c.processExecution(r.Agent, r.Execution)
		}
	case eventlog.TypeAgentFault:
		c.getAccum(r.Agent).Faulted = true
	}
}

func (c *Collector) processExecution(venue domain.AgentID, e *domain.Execution) {
	c.summary.Executions++
	c.summary.Volume += e.Quantity
	c.summary.VenueFees[venue] += e.Maker.Fee + e.Taker.Fee

	for _, leg := range []domain.Leg{e.Maker, e.Taker} {
		a := c.getAccum(leg.Agent)
		a.Fills++
		a.FeesPaid += leg.Fee
		a.Notional += e.Notional()
		if leg.Side == domain.Bid {
			a.QtyBought += e.Quantity
		} else {
			a.QtySold += e.Quantity
		}
		if leg.Liquidity == domain.Maker {
			a.MakerFills++
			c.queueSum[leg.Agent] += e.MakerQueuePos
		} else {
			a.TakerFills++
		}
	}

	c.live.Execution(venueLabel(venue), e.Symbol, e.Quantity)
	c.live.FeeRevenue(venueLabel(venue), c.summary.VenueFees[venue])
}

// Compute finalises averages and returns the summary.
func (c *Collector) Compute() *Summary {
	for id, a := range c.summary.Agents {
		if a.MakerFills > 0 {
			a.AvgMakerQueuePos = float64(c.queueSum[id]) / float64(a.MakerFills)
		}
	}
	return &c.summary
}

// ComputeFromLog reads a record log and computes the summary.
func ComputeFromLog(logPath string) (*Summary, error) {
	reader, err := eventlog.NewReader(logPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	c := NewCollector(nil)
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		c.ProcessRecord(rec)
	}
	return c.Compute(), nil
}

// ComputeFromRecords computes the summary directly from an in-memory stream.
func ComputeFromRecords(records []*eventlog.Record) *Summary {
	c := NewCollector(nil)
	for _, rec := range records {
		if rec == nil {
			continue
		}
		c.ProcessRecord(rec)
	}
	return c.Compute()
}

func venueLabel(id domain.AgentID) string {
	return "venue_" + strconv.Itoa(int(id))
}
