// Package latency implements the per-link message delay models.
package latency

import (
	"encoding/binary"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/akshitanchan/marketsim/internal/domain"
)

// ErrInvalidDelay is returned for negative delays or an empty delay range
var ErrInvalidDelay = errors.New("invalid delay")

// Model returns the delay for a message travelling from one agent to another.
// Implementations must be deterministic for a given construction and call order.
type Model interface {
	Delay(from, to domain.AgentID) domain.SimTime
}

// Fixed applies the same delay to every link. Zero means same-tick delivery.
type Fixed domain.SimTime

// Delay implements Model.
func (f Fixed) Delay(_, _ domain.AgentID) domain.SimTime {
	return domain.SimTime(f)
}

// Matrix holds an explicit delay per ordered pair. Asymmetric links are allowed.
type Matrix struct {
	delays  [][]domain.SimTime
	Default domain.SimTime // used for pairs outside the matrix
}

// NewMatrix validates and copies the given square matrix.
func NewMatrix(delays [][]domain.SimTime, def domain.SimTime) (*Matrix, error) {
	if def < 0 {
		return nil, errors.Wrapf(ErrInvalidDelay, "negative default delay %d", def)
	}
	m := &Matrix{delays: make([][]domain.SimTime, len(delays)), Default: def}
	for i, row := range delays {
		if len(row) != len(delays) {
			return nil, errors.Errorf("row %d has %d entries, want %d", i, len(row), len(delays))
		}
		for j, d := range row {
			if d < 0 {
				return nil, errors.Wrapf(ErrInvalidDelay, "negative delay %d at [%d][%d]", d, i, j)
			}
		}
		m.delays[i] = append([]domain.SimTime(nil), row...)
	}
	return m, nil
}

// NewRandomMatrix draws every pairwise delay once, uniformly in [min, max],
// from the seed. Self-links get zero delay.
func NewRandomMatrix(n int, min, max domain.SimTime, seed int64) (*Matrix, error) {
	if min < 0 || max < min {
		return nil, errors.Wrapf(ErrInvalidDelay, "range [%d, %d]", min, max)
	}
	rng := rand.New(rand.NewSource(seed))
	delays := make([][]domain.SimTime, n)
	for i := range delays {
		delays[i] = make([]domain.SimTime, n)
		for j := range delays[i] {
			if i == j {
				continue
			}
			delays[i][j] = min
			if max > min {
				delays[i][j] += domain.SimTime(rng.Int63n(int64(max-min) + 1))
			}
		}
	}
	return &Matrix{delays: delays, Default: max}, nil
}

// Delay implements Model.
func (m *Matrix) Delay(from, to domain.AgentID) domain.SimTime {
	if from < 0 || to < 0 || int(from) >= len(m.delays) || int(to) >= len(m.delays) {
		return m.Default
	}
	return m.delays[from][to]
}

// Size returns the matrix dimension.
func (m *Matrix) Size() int {
	return len(m.delays)
}

// Jitter applies base latency plus uniform jitter in [0, Jitter). The n-th
// delay on a link is a hash of (seed, from, to, n), so a link's delays do
// not depend on traffic on any other link.
type Jitter struct {
	Base   domain.SimTime
	Jitter domain.SimTime
	seed   uint64
	sent   map[link]uint64
}

type link struct {
	from, to domain.AgentID
}

// NewJitter creates a jitter model with the given parameters and seed.
func NewJitter(base, jitter domain.SimTime, seed int64) *Jitter {
	return &Jitter{
		Base:   base,
		Jitter: jitter,
		seed:   uint64(seed),
		sent:   make(map[link]uint64),
	}
}

// Delay implements Model. Self-addressed messages are not jittered.
func (m *Jitter) Delay(from, to domain.AgentID) domain.SimTime {
	if from == to {
		return 0
	}
	if m.Jitter <= 0 {
		return m.Base
	}
	l := link{from, to}
	n := m.sent[l]
	m.sent[l] = n + 1
	return m.Base + domain.SimTime(m.draw(l, n)%uint64(m.Jitter))
}

func (m *Jitter) draw(l link, n uint64) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], m.seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(l.from))
	binary.LittleEndian.PutUint64(buf[16:], uint64(l.to))
	binary.LittleEndian.PutUint64(buf[24:], n)
	return xxhash.Sum64(buf[:])
}
