// Package oracle supplies reference prices to agents. Implementations are
// deterministic functions of time plus the caller's random source.
package oracle

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
)

// ErrEmptySeries is returned when a series has no points
var ErrEmptySeries = errors.New("price series has no points")

// Oracle observes a symbol's reference price at time t. The rng belongs to
// the observing agent, so noisy implementations stay reproducible per seed.
type Oracle interface {
	ObservePrice(symbol string, t domain.SimTime, rng *rand.Rand) int64
}

// Constant returns the same price for every symbol and time
type Constant int64

func (c Constant) ObservePrice(string, domain.SimTime, *rand.Rand) int64 {
	return int64(c)
}

// Point is one step of a Series
type Point struct {
	Time  domain.SimTime `toml:"time" json:"time"`
	Price int64          `toml:"price" json:"price"`
}

// Series is a step function: the price of the latest point at or before t.
// Times before the first point observe the first price.
type Series struct {
	points []Point
	// Noise, if positive, adds a uniform draw in [-Noise, Noise] ticks
	Noise int64
}

// NewSeries sorts points by time. Points sharing a time keep their order,
// so the last one wins.
func NewSeries(points []Point, noise int64) (*Series, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}
	ps := append([]Point(nil), points...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Time < ps[j].Time })
	return &Series{points: ps, Noise: max(noise, 0)}, nil
}

func (s *Series) ObservePrice(_ string, t domain.SimTime, rng *rand.Rand) int64 {
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Time > t })
	p := s.points[max(i-1, 0)].Price
	if s.Noise > 0 && rng != nil {
		p += rng.Int63n(2*s.Noise+1) - s.Noise
	}
	return p
}
