package reputation

// Reputation tiers, lowest to highest.
const (
	TierNewcomer    = "newcomer"
	TierContributor = "contributor"
	TierTrusted     = "trusted"
	TierExpert      = "expert"
	TierLegend      = "legend"
)

// TierFor maps a reputation score onto its tier. Pure and monotonic with
// non-overlapping bands.
func TierFor(score int) string {
	switch {
	case score >= 2500:
		return TierLegend
	case score >= 1000:
		return TierExpert
	case score >= 500:
		return TierTrusted
	case score >= 100:
		return TierContributor
	default:
		return TierNewcomer
	}
}
