package fee

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshitanchan/marketsim/internal/domain"
)

func TestClassify(t *testing.T) {
	top := domain.L1{BidPrice: 100, AskPrice: 102, HasBid: true, HasAsk: true}

	assert.Equal(t, domain.Taker, Classify(100, top, domain.Bid))
	assert.Equal(t, domain.Taker, Classify(105, top, domain.Bid))
	assert.Equal(t, domain.Maker, Classify(99, top, domain.Bid))

	assert.Equal(t, domain.Taker, Classify(102, top, domain.Ask))
	assert.Equal(t, domain.Taker, Classify(90, top, domain.Ask))
	assert.Equal(t, domain.Maker, Classify(103, top, domain.Ask))

	// A one-sided or empty book classifies as Maker.
	assert.Equal(t, domain.Maker, Classify(500, domain.L1{}, domain.Bid))
	assert.Equal(t, domain.Maker, Classify(1, domain.L1{}, domain.Ask))
	assert.Equal(t, domain.Maker, Classify(100, domain.L1{BidPrice: 100, HasBid: true}, domain.Bid))
}

// A resting bid at 100 hit by an incoming ask at 100: the incoming order
// takes, the resting order makes, and the fees have opposite signs.
func TestMakerTakerOppositeSigns(t *testing.T) {
	s := NewMakerTaker(decimal.RequireFromString("0.2"), decimal.RequireFromString("0.3"))
	require.NoError(t, s.Validate())

	maker := s.Fee(10, 100, domain.Maker)
	taker := s.Fee(10, 100, domain.Taker)
	assert.Equal(t, int64(-2), maker)
	assert.Equal(t, int64(3), taker)
	assert.Less(t, maker*taker, int64(0))
}

func TestTieredFee(t *testing.T) {
	s := DefaultTiered()
	require.NoError(t, s.Validate())

	assert.Equal(t, int64(0), s.Fee(1, 110_000, domain.Taker), "below threshold")
	assert.Equal(t, int64(1045), s.Fee(1, 110_001, domain.Taker), "at threshold")
	assert.Equal(t, int64(1190), s.Fee(2, 100_000, domain.Taker), "capped")
	assert.Equal(t, s.Fee(2, 100_000, domain.Maker), s.Fee(2, 100_000, domain.Taker))
}

func TestTieredFeeHugeQuantity(t *testing.T) {
	s := DefaultTiered()
	assert.Equal(t, int64(1190), s.Fee(1<<61, 100, domain.Taker))
	assert.Equal(t, int64(1190), s.Fee(1<<63, 1<<40, domain.Maker))
}

func TestChooseVenueHugeQuantity(t *testing.T) {
	quotes := []VenueQuote{
		{Venue: 0, Price: 101, Quantity: 1 << 62, Quoted: true},
		{Venue: 1, Price: 100, Quantity: 1 << 62, Quoted: true},
	}
	rng := rand.New(rand.NewSource(1))
	v, err := ChooseVenue(quotes, domain.Bid, rng)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentID(1), v)
	v, err = ChooseVenue(quotes, domain.Ask, rng)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentID(0), v)
}

func TestPerContractRounding(t *testing.T) {
	s := NewPerContract(decimal.RequireFromString("0.5"))
	assert.Equal(t, int64(2), s.Fee(3, 10_000, domain.Maker), "1.5 rounds away from zero")
	assert.Equal(t, int64(1), s.Fee(2, 10_000, domain.Taker))

	rebate := NewMakerTaker(decimal.RequireFromString("0.25"), decimal.NewFromInt(1))
	assert.Equal(t, int64(-1), rebate.Fee(2, 100, domain.Maker), "-0.5 rounds away from zero")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		s    Schedule
		ok   bool
	}{
		{"zero rebate allowed", NewMakerTaker(decimal.Zero, decimal.NewFromInt(1)), true},
		{"zero taker fee", NewMakerTaker(decimal.NewFromInt(1), decimal.Zero), false},
		{"negative rebate", NewMakerTaker(decimal.NewFromInt(-1), decimal.NewFromInt(1)), false},
		{"no tiers", NewTiered(nil, 0), false},
		{"all zero tiers", NewTiered([]Tier{{Threshold: 0, Rate: decimal.Zero}}, 0), false},
		{"descending tiers", NewTiered([]Tier{
			{Threshold: 10, Rate: decimal.NewFromFloat(0.01)},
			{Threshold: 5, Rate: decimal.NewFromFloat(0.02)},
		}, 0), false},
		{"negative cap", Schedule{Policy: PolicyTiered, Tiers: DefaultTiered().Tiers, Cap: -1}, false},
		{"zero per contract", NewPerContract(decimal.Zero), false},
		{"unknown policy", Schedule{Policy: "flat"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidSchedule), "got %v", err)
		})
	}
}

func TestChooseVenueBestNet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	quotes := []VenueQuote{
		{Venue: 0, Price: 100, Quantity: 10, Fee: 15, Quoted: true}, // 1015
		{Venue: 1, Price: 101, Quantity: 10, Fee: 0, Quoted: true},  // 1010
	}
	v, err := ChooseVenue(quotes, domain.Bid, rng)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentID(1), v, "buyer pays less at venue 1 despite the worse price")

	quotes = []VenueQuote{
		{Venue: 0, Price: 100, Quantity: 10, Fee: 15, Quoted: true}, // 985
		{Venue: 1, Price: 99, Quantity: 10, Fee: 0, Quoted: true},   // 990
	}
	v, err = ChooseVenue(quotes, domain.Ask, rng)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentID(1), v, "seller keeps more at venue 1")

	_, err = ChooseVenue(nil, domain.Bid, rng)
	assert.Equal(t, ErrNoVenues, err)
}

func chiSquare(counts map[domain.AgentID]int, n, k int) float64 {
	expected := float64(n) / float64(k)
	var stat float64
	for _, c := range counts {
		d := float64(c) - expected
		stat += d * d / expected
	}
	return stat
}

// Equal net prices: the pick must be a uniform coin flip, not a fixed default.
func TestChooseVenueTieIsUniform(t *testing.T) {
	const trials = 10000
	rng := rand.New(rand.NewSource(20240611))
	quotes := []VenueQuote{
		{Venue: 3, Price: 100, Quantity: 5, Fee: 2, Quoted: true},
		{Venue: 7, Price: 100, Quantity: 5, Fee: 2, Quoted: true},
	}

	counts := map[domain.AgentID]int{}
	for i := 0; i < trials; i++ {
		v, err := ChooseVenue(quotes, domain.Bid, rng)
		require.NoError(t, err)
		counts[v]++
	}
	require.Len(t, counts, 2)
	// df=1, p=0.001
	assert.Less(t, chiSquare(counts, trials, 2), 10.83, "counts %v", counts)
}

func TestChooseVenueUnquotedFallsBackToUniform(t *testing.T) {
	const trials = 10000
	rng := rand.New(rand.NewSource(99))
	quotes := []VenueQuote{
		{Venue: 0, Price: 1, Quantity: 1, Quoted: true},
		{Venue: 1, Quoted: false},
		{Venue: 2, Price: 1000, Quantity: 1, Quoted: true},
	}

	counts := map[domain.AgentID]int{}
	for i := 0; i < trials; i++ {
		v, err := ChooseVenue(quotes, domain.Bid, rng)
		require.NoError(t, err)
		counts[v]++
	}
	require.Len(t, counts, 3)
	// df=2, p=0.001
	assert.Less(t, chiSquare(counts, trials, 3), 13.82, "counts %v", counts)
}

func TestChooseVenueReproducible(t *testing.T) {
	quotes := []VenueQuote{
		{Venue: 0, Price: 100, Quantity: 1, Quoted: true},
		{Venue: 1, Price: 100, Quantity: 1, Quoted: true},
	}
	pick := func(seed int64) []domain.AgentID {
		rng := rand.New(rand.NewSource(seed))
		var out []domain.AgentID
		for i := 0; i < 50; i++ {
			v, _ := ChooseVenue(quotes, domain.Ask, rng)
			out = append(out, v)
		}
		return out
	}
	assert.Equal(t, pick(5), pick(5))
}
