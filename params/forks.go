package params

import "fmt"

// Ruleset selects the crossing and rounding rules used by the matching engine.
// Every ruleset stays selectable forever: historical blocks must replay under
// the rules that were active at their height.
type Ruleset uint8

const (
	// RulesetLegacy rounds both conversions down and never culls dust orders.
	RulesetLegacy Ruleset = iota
	// RulesetMetalExchange rounds the taker's payment up, culls resting orders
	// worth less than one unit of the counter-asset and refunds dust residuals.
	RulesetMetalExchange
)

func (r Ruleset) String() string {
	switch r {
	case RulesetLegacy:
		return "legacy"
	case RulesetMetalExchange:
		return "metal_exchange"
	default:
		return fmt.Sprintf("ruleset(%d)", uint8(r))
	}
}

// DefaultMetalExchangeHeight is the mainnet activation height.
const DefaultMetalExchangeHeight uint64 = 5_550_000

// Forks is the hardfork schedule, keyed by chain height.
type Forks struct {
	MetalExchangeHeight uint64
}

func DefaultForks() Forks {
	return Forks{MetalExchangeHeight: DefaultMetalExchangeHeight}
}

// IsMetalExchange reports whether the metal-exchange rules are active at height.
func (f Forks) IsMetalExchange(height uint64) bool {
	return height >= f.MetalExchangeHeight
}

// ActiveRuleset is a pure function of the schedule and the chain height.
func (f Forks) ActiveRuleset(height uint64) Ruleset {
	if f.IsMetalExchange(height) {
		return RulesetMetalExchange
	}
	return RulesetLegacy
}
