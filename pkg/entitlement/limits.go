package entitlement

// Unlimited indicates no limit for a countable feature (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Limits is the feature configuration attached to an entitlement. The feature
// set itself is a product concern; the kit ships exactly two named
// configurations keyed off the premium flag.
type Limits struct {
	HistoryRetentionDays int64 // workout-history retention window; Unlimited keeps everything
	ExportEnabled        bool  // data export capability
}

var (
	// FreeLimits applies to users without a premium grant.
	FreeLimits = Limits{
		HistoryRetentionDays: 90,
		ExportEnabled:        false,
	}

	// PremiumLimits applies to premium users.
	PremiumLimits = Limits{
		HistoryRetentionDays: Unlimited,
		ExportEnabled:        true,
	}
)

// LimitsFor returns the limits configuration for the given premium flag.
func LimitsFor(isPremium bool) Limits {
	if isPremium {
		return PremiumLimits
	}
	return FreeLimits
}
