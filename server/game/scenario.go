package game

import (
	"fmt"
	"strings"
)

// Scenario is one fixed experimental condition. Order is set for the
// ordering variant; ModelChoice/HumanChoice for the trust variant.
type Scenario struct {
	Variant     Variant
	Order       [3]Choice
	ModelChoice Choice
	HumanChoice Choice
}

// Key is a stable identity used for grouping and report ordering.
func (s Scenario) Key() string {
	if s.Variant == Trust {
		return fmt.Sprintf("%s vs %s", s.ModelChoice, s.HumanChoice)
	}
	parts := make([]string, len(s.Order))
	for i, c := range s.Order {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

func (s Scenario) String() string { return s.Key() }

// Orderings returns every permutation of the vocabulary, in the same
// order itertools.permutations would produce.
func Orderings() []Scenario {
	var out []Scenario
	all := All()
	var perm func(prefix []Choice, rest []Choice)
	perm = func(prefix []Choice, rest []Choice) {
		if len(rest) == 0 {
			out = append(out, Scenario{Variant: Order, Order: [3]Choice{prefix[0], prefix[1], prefix[2]}})
			return
		}
		for i := range rest {
			next := make([]Choice, 0, len(rest)-1)
			next = append(next, rest[:i]...)
			next = append(next, rest[i+1:]...)
			perm(append(prefix, rest[i]), next)
		}
	}
	perm(make([]Choice, 0, len(all)), all)
	return out
}

// TrustPairs returns the full model x human cross product, model-major.
func TrustPairs() []Scenario {
	all := All()
	out := make([]Scenario, 0, len(all)*len(all))
	for _, mc := range all {
		for _, hc := range all {
			out = append(out, Scenario{Variant: Trust, ModelChoice: mc, HumanChoice: hc})
		}
	}
	return out
}

// Scenarios lists every scenario of v in generation order.
func Scenarios(v Variant) []Scenario {
	if v == Trust {
		return TrustPairs()
	}
	return Orderings()
}
