package analyzer

import (
	"math/big"

	"github.com/buidlcat/friendrekt/models"
)

// MaxAcquisition is the top tier limit.
const MaxAcquisition uint64 = 100

type tier struct {
	above uint64
	limit uint64
}

// tiers are evaluated top-down; the first strictly-greater match wins.
var tiers = []tier{
	{above: 1_000_000, limit: MaxAcquisition},
	{above: 500_000, limit: 60},
	{above: 250_000, limit: 60},
	{above: 100_000, limit: 40},
	{above: 20_000, limit: 30},
}

// Decide maps a follower count to the maximum share supply the sniper contract may
// buy at. Zero means take no action.
func Decide(followers uint64) uint64 {
	for _, t := range tiers {
		if followers > t.above {
			return t.limit
		}
	}
	return 0
}

// Pricer is the bonding-curve collaborator.
type Pricer interface {
	Price(supply, amount uint64) *big.Int
}

// Decision is the outcome for one reputation record.
type Decision struct {
	Limit          uint64
	Amount         uint64
	ReferencePrice *big.Int // informational; never gates the snipe
}

// Act reports whether the decision calls for a submission.
func (d Decision) Act() bool {
	return d.Limit > 0
}

// Engine combines the tier table with the configured snipe amount and the pricer.
type Engine struct {
	pricer Pricer
	amount uint64
}

// NewEngine creates a decision engine buying amount shares per snipe.
func NewEngine(pricer Pricer, amount uint64) *Engine {
	return &Engine{pricer: pricer, amount: amount}
}

// Amount returns the configured snipe quantity.
func (e *Engine) Amount() uint64 {
	return e.amount
}

// Evaluate decides on a record. The reference price is the cost of amount shares at
// the record's limit, the highest supply at which the sniper contract still buys.
func (e *Engine) Evaluate(rec models.ReputationRecord) Decision {
	d := Decision{Limit: rec.AcquisitionLimit, Amount: e.amount}
	if d.Limit == 0 || e.pricer == nil {
		return d
	}
	d.ReferencePrice = e.pricer.Price(d.Limit, e.amount)
	return d
}
