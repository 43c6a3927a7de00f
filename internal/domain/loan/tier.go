package loan

import "github.com/shopspring/decimal"

// Tier is a reputation-score bracket with its lending limits.
type Tier struct {
	Name      string
	MinScore  int
	MaxAmount decimal.Decimal
	Rate      decimal.Decimal
}

// Tiers is ordered from the highest bracket down.
var Tiers = []Tier{
	{Name: "Trusted", MinScore: 700, MaxAmount: decimal.NewFromInt(500), Rate: decimal.RequireFromString("0.05")},
	{Name: "Established", MinScore: 500, MaxAmount: decimal.NewFromInt(200), Rate: decimal.RequireFromString("0.10")},
	{Name: "Growing", MinScore: 300, MaxAmount: decimal.NewFromInt(50), Rate: decimal.RequireFromString("0.15")},
}

var seedling = Tier{Name: "Seedling", MinScore: 0, MaxAmount: decimal.Zero, Rate: decimal.Zero}

// TierFor maps a reputation score onto its lending tier. Scores below 300
// are ineligible and get a zero limit.
func TierFor(score int) Tier {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return seedling
}

// Eligible reports whether the tier lends at all.
func (t Tier) Eligible() bool { return t.MaxAmount.IsPositive() }
