// Package fee implements venue fee schedules, maker/taker classification
// and fee-aware venue selection.
package fee

import (
	"math/big"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/akshitanchan/marketsim/internal/domain"
)

var (
	// ErrInvalidSchedule is wrapped by every schedule validation failure
	ErrInvalidSchedule = errors.New("invalid fee schedule")
	// ErrNoVenues is returned by ChooseVenue when given nothing to choose from
	ErrNoVenues = errors.New("no venues to choose from")
)

// Policy selects how a venue charges for fills. Exactly one is active per venue.
type Policy string

const (
	PolicyMakerTaker  Policy = "maker_taker"
	PolicyTiered      Policy = "tiered"
	PolicyPerContract Policy = "per_contract"
)

// Tier charges Rate of notional once notional reaches Threshold ticks
type Tier struct {
	Threshold int64           `toml:"threshold" json:"threshold"`
	Rate      decimal.Decimal `toml:"rate" json:"rate"`
}

// Schedule is an immutable venue fee configuration. Amounts are in price ticks.
type Schedule struct {
	Policy Policy `toml:"policy" json:"policy"`

	// maker_taker: per-share amounts
	MakerRebate decimal.Decimal `toml:"maker_rebate" json:"maker_rebate"`
	TakerFee    decimal.Decimal `toml:"taker_fee" json:"taker_fee"`

	// tiered: ad-valorem rates by notional, Cap of 0 means uncapped
	Tiers []Tier `toml:"tiers" json:"tiers,omitempty"`
	Cap   int64  `toml:"cap" json:"cap"`

	// per_contract: flat amount per unit
	PerContract decimal.Decimal `toml:"per_contract" json:"per_contract"`
}

// Default tier table: nothing below 110001 ticks of notional, 0.95% above,
// capped at 1190 ticks.
var (
	DefaultTierThreshold int64 = 110_001
	DefaultTierRate            = decimal.RequireFromString("0.0095")
	DefaultTierCap       int64 = 1190
)

// NewMakerTaker returns a per-share maker rebate / taker fee schedule
func NewMakerTaker(makerRebate, takerFee decimal.Decimal) Schedule {
	return Schedule{Policy: PolicyMakerTaker, MakerRebate: makerRebate, TakerFee: takerFee}
}

// NewTiered returns an ad-valorem schedule
func NewTiered(tiers []Tier, cap int64) Schedule {
	return Schedule{Policy: PolicyTiered, Tiers: append([]Tier(nil), tiers...), Cap: cap}
}

// NewPerContract returns a flat per-contract schedule
func NewPerContract(amount decimal.Decimal) Schedule {
	return Schedule{Policy: PolicyPerContract, PerContract: amount}
}

// DefaultTiered returns the default ad-valorem schedule
func DefaultTiered() Schedule {
	return NewTiered([]Tier{
		{Threshold: 0, Rate: decimal.Zero},
		{Threshold: DefaultTierThreshold, Rate: DefaultTierRate},
	}, DefaultTierCap)
}

// Validate rejects negative parameters and schedules whose primary charge is not positive
func (s Schedule) Validate() error {
	switch s.Policy {
	case PolicyMakerTaker:
		if s.MakerRebate.IsNegative() {
			return errors.Wrap(ErrInvalidSchedule, "maker_rebate must not be negative")
		}
		if !s.TakerFee.IsPositive() {
			return errors.Wrap(ErrInvalidSchedule, "taker_fee must be positive")
		}
	case PolicyTiered:
		if len(s.Tiers) == 0 {
			return errors.Wrap(ErrInvalidSchedule, "tiered policy needs at least one tier")
		}
		if s.Cap < 0 {
			return errors.Wrap(ErrInvalidSchedule, "cap must not be negative")
		}
		anyPositive := false
		for i, t := range s.Tiers {
			if t.Threshold < 0 || t.Rate.IsNegative() {
				return errors.Wrapf(ErrInvalidSchedule, "tier %d has negative threshold or rate", i)
			}
			if i > 0 && t.Threshold <= s.Tiers[i-1].Threshold {
				return errors.Wrapf(ErrInvalidSchedule, "tier %d threshold not ascending", i)
			}
			anyPositive = anyPositive || t.Rate.IsPositive()
		}
		if !anyPositive {
			return errors.Wrap(ErrInvalidSchedule, "tiered policy needs a positive rate")
		}
	case PolicyPerContract:
		if !s.PerContract.IsPositive() {
			return errors.Wrap(ErrInvalidSchedule, "per_contract must be positive")
		}
	default:
		return errors.Wrapf(ErrInvalidSchedule, "unknown policy %q", s.Policy)
	}
	return nil
}

// Fee returns the signed fee for one leg of a fill: positive is a charge,
// negative a rebate. Amounts are rounded half away from zero to whole ticks.
func (s Schedule) Fee(quantity uint64, price int64, liq domain.Liquidity) int64 {
	qty := quantityDecimal(quantity)
	var amount decimal.Decimal
	switch s.Policy {
	case PolicyMakerTaker:
		if liq == domain.Maker {
			amount = s.MakerRebate.Mul(qty).Neg()
		} else {
			amount = s.TakerFee.Mul(qty)
		}
	case PolicyTiered:
		notional := decimal.NewFromInt(price).Mul(qty)
		amount = s.tierRate(notional).Mul(notional)
		if s.Cap > 0 && amount.GreaterThan(decimal.NewFromInt(s.Cap)) {
			amount = decimal.NewFromInt(s.Cap)
		}
	case PolicyPerContract:
		amount = s.PerContract.Mul(qty)
	default:
		return 0
	}
	return amount.Round(0).IntPart()
}

// tierRate picks the rate of the highest tier whose threshold is <= notional
func (s Schedule) tierRate(notional decimal.Decimal) decimal.Decimal {
	i := sort.Search(len(s.Tiers), func(i int) bool { return decimal.NewFromInt(s.Tiers[i].Threshold).GreaterThan(notional) })
	if i == 0 {
		return decimal.Zero
	}
	return s.Tiers[i-1].Rate
}

// Classify reports whether an order at price on side would take liquidity
// given the current top of book. A bid at or above the best bid, or an ask
// at or below the best ask, is a Taker. A book missing either side classifies as Maker.
func Classify(price int64, top domain.L1, side domain.Side) domain.Liquidity {
	if !top.HasBid || !top.HasAsk {
		return domain.Maker
	}
	switch side {
	case domain.Bid:
		if price >= top.BidPrice {
			return domain.Taker
		}
	case domain.Ask:
		if price <= top.AskPrice {
			return domain.Taker
		}
	}
	return domain.Maker
}

// VenueQuote is one venue's executable price and fee for a prospective order
type VenueQuote struct {
	Venue    domain.AgentID
	Price    int64
	Quantity uint64
	Fee      int64
	Quoted   bool
}

func quantityDecimal(q uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q), 0)
}

// NetCost returns what a buyer pays, or what a seller receives, net of fees.
// It is exact for any quantity.
func NetCost(q VenueQuote, side domain.Side) decimal.Decimal {
	gross := decimal.NewFromInt(q.Price).Mul(quantityDecimal(q.Quantity))
	if side == domain.Bid {
		return gross.Add(decimal.NewFromInt(q.Fee))
	}
	return gross.Sub(decimal.NewFromInt(q.Fee))
}

// ChooseVenue picks the venue with the best net price for side. Ties are
// broken uniformly with rng. If any venue has no quote the pick is uniform
// over all venues. There is no deterministic default: reproducibility comes
// from the seed behind rng.
func ChooseVenue(quotes []VenueQuote, side domain.Side, rng *rand.Rand) (domain.AgentID, error) {
	if len(quotes) == 0 {
		return domain.NoAgent, ErrNoVenues
	}
	for _, q := range quotes {
		if !q.Quoted {
			return quotes[rng.Intn(len(quotes))].Venue, nil
		}
	}

	best := []VenueQuote{quotes[0]}
	bestCost := NetCost(quotes[0], side)
	for _, q := range quotes[1:] {
		cost := NetCost(q, side)
		better := cost.LessThan(bestCost)
		if side == domain.Ask {
			better = cost.GreaterThan(bestCost)
		}
		switch {
		case better:
			best = []VenueQuote{q}
			bestCost = cost
		case cost.Equal(bestCost):
			best = append(best, q)
		}
	}
	if len(best) == 1 {
		return best[0].Venue, nil
	}
	return best[rng.Intn(len(best))].Venue, nil
}
