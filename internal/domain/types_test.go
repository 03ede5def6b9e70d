package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimTimeString(t *testing.T) {
	assert.Equal(t, "00:00:00.000000000", SimTime(0).String())
	assert.Equal(t, "09:30:00.000000050", (9*Hour + 30*Minute + 50).String())
	assert.Equal(t, "-00:00:01.000000000", (-Second).String())
}

func TestMsToNs(t *testing.T) {
	assert.Equal(t, SimTime(1_000_000), MsToNs(1))
	assert.Equal(t, SimTime(50_000_000), MsToNs(50))
}

func TestSideJSON(t *testing.T) {
	data, err := json.Marshal(Bid)
	require.NoError(t, err)
	assert.Equal(t, `"BID"`, string(data))

	var s Side
	require.NoError(t, json.Unmarshal([]byte(`"SELL"`), &s))
	assert.Equal(t, Ask, s)
	assert.Equal(t, Bid, s.Opposite())
	assert.Error(t, json.Unmarshal([]byte(`"SIDEWAYS"`), &s))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "100.05", FormatPrice(10005))
	assert.Equal(t, "-0.07", FormatPrice(-7))
}

func TestL1MidAndSpread(t *testing.T) {
	q := L1{BidPrice: 99, AskPrice: 101, HasBid: true, HasAsk: true}
	mid, ok := q.Mid()
	assert.True(t, ok)
	assert.Equal(t, int64(100), mid)
	spread, ok := q.Spread()
	assert.True(t, ok)
	assert.Equal(t, int64(2), spread)

	_, ok = L1{HasBid: true}.Mid()
	assert.False(t, ok)
}

func TestL2Top(t *testing.T) {
	s := L2{Symbol: "ABM", Bids: []Level{{Price: 99, Quantity: 3}}}
	top := s.Top()
	assert.True(t, top.HasBid)
	assert.False(t, top.HasAsk)
	assert.Equal(t, uint64(3), top.BidQty)
}

func TestNotionalFits(t *testing.T) {
	assert.True(t, NotionalFits(100, 10))
	assert.True(t, NotionalFits(1, 1<<63-1))
	assert.False(t, NotionalFits(1, 1<<63))
	assert.False(t, NotionalFits(4, 1<<62))
	assert.True(t, NotionalFits(2, 1<<62-1))
	assert.False(t, NotionalFits(0, 1<<63), "market orders still need an int64 quantity")
}
