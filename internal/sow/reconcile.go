package sow

import (
	"fmt"
	"math"
	"strings"
)

// DefaultRate is the hourly rate used when a role has no usable rate and the
// rate card has no entry for its name.
const DefaultRate = 100

// Reconcile returns a copy of doc whose roles all carry a usable rate and a
// total, and whose scope subtotals equal the sum of their role totals.
//
// For each role: a missing or non-positive rate is looked up in rateCard by
// exact role name, falling back to DefaultRate; missing hours become zero; a
// missing or zero total becomes hours * rate. Scopes without an id are given
// one. Reconcile never fails and Reconcile(Reconcile(d)) equals Reconcile(d).
func Reconcile(doc SOWData, rateCard []RateCardItem) SOWData {
	out := doc.Clone()
	index := make(map[string]float64, len(rateCard))
	for _, item := range rateCard {
		if _, dup := index[item.Name]; !dup {
			index[item.Name] = item.Rate
		}
	}
	for i := range out.Scopes {
		s := &out.Scopes[i]
		for j := range s.Roles {
			reconcileRole(&s.Roles[j], index)
		}
		s.Subtotal = Num(finite(s.SumRoles()))
	}
	assignScopeIDs(out.Scopes)
	return out
}

func reconcileRole(r *Role, index map[string]float64) {
	rate, ok := r.Rate.Resolved()
	if !ok {
		if v, found := index[r.Name]; found && v > 0 && !math.IsInf(v, 0) {
			rate, ok = v, true
		}
	}
	if !ok {
		rate = DefaultRate
	}
	if r.Rate.Value.Value != rate || !r.Rate.Value.Valid {
		r.Rate = r.Rate.With(rate)
	}
	if !r.Hours.Valid {
		r.Hours = Num(0)
	}
	if !r.Total.Valid || r.Total.Value == 0 {
		r.Total = Num(finite(r.Hours.Value * rate))
	}
}

// finite maps overflowed arithmetic to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func assignScopeIDs(scopes []Scope) {
	taken := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		if s.ID != "" {
			taken[s.ID] = true
		}
	}
	n := 0
	for i := range scopes {
		if scopes[i].ID != "" {
			continue
		}
		for {
			n++
			id := fmt.Sprintf("scope-%d", n)
			if !taken[id] {
				taken[id] = true
				scopes[i].ID = id
				break
			}
		}
	}
}

// RenderRateCard renders the rate card as one "name: $rate" line per item,
// the form the system prompt embeds.
func RenderRateCard(items []RateCardItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s: $%s", item.Name, formatFloat(item.Rate)))
	}
	return strings.Join(lines, "\n")
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
