package access

// Action is the outcome of a content access check.
type Action string

const (
	// Allow grants access to the content.
	Allow Action = "allow"
	// RequireAuth means the visitor must authenticate before any content decision is made.
	RequireAuth Action = "require_auth"
	// RequirePremium means the authenticated user lacks the premium grant the content needs.
	RequirePremium Action = "require_premium"
)

// Decide gates a single piece of content. It takes the already-resolved premium
// flag (see the entitlement package), so billing-mode overrides never leak into
// gate logic. Rules are evaluated in order: authentication first, then the
// content's premium requirement.
func Decide(isAuthenticated, isPremiumUser, isContentPremium bool) Action {
	if !isAuthenticated {
		return RequireAuth
	}
	if !isContentPremium {
		return Allow
	}
	if !isPremiumUser {
		return RequirePremium
	}
	return Allow
}
