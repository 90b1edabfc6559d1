package model

import "strings"

// PlanTier is the subscription level that determines the credit allotment.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanCreator  PlanTier = "creator"
	PlanPro      PlanTier = "pro"
	PlanBusiness PlanTier = "business"
)

// UnlimitedCredits is the business tier sentinel.
const UnlimitedCredits = 999999

// FreeCredits is granted at signup and restored on cancellation.
const FreeCredits = 5

var tierCredits = map[PlanTier]int{
	PlanFree:     FreeCredits,
	PlanCreator:  50,
	PlanPro:      200,
	PlanBusiness: UnlimitedCredits,
}

// Credits returns the per-cycle allotment of the tier. Unknown tiers get the free allotment.
func (t PlanTier) Credits() int {
	if n, ok := tierCredits[t]; ok {
		return n
	}
	return FreeCredits
}

func (t PlanTier) Valid() bool {
	_, ok := tierCredits[t]
	return ok
}

func (t PlanTier) Paid() bool { return t.Valid() && t != PlanFree }

// ParsePlanTier falls back to free for anything unrecognized.
func ParsePlanTier(s string) PlanTier {
	t := PlanTier(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return PlanFree
}

// PriceTable maps processor price identifiers to plan tiers.
type PriceTable map[string]PlanTier

// NewPriceTable builds the lookup from the three configured paid price ids.
// Empty ids are skipped.
func NewPriceTable(creator, pro, business string) PriceTable {
	pt := PriceTable{}
	for id, tier := range map[string]PlanTier{creator: PlanCreator, pro: PlanPro, business: PlanBusiness} {
		if id = strings.TrimSpace(id); id != "" {
			pt[id] = tier
		}
	}
	return pt
}

// Tier is total: unrecognized or empty price ids resolve to free.
func (pt PriceTable) Tier(priceID string) PlanTier {
	if t, ok := pt[strings.TrimSpace(priceID)]; ok {
		return t
	}
	return PlanFree
}
