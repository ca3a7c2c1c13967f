package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingkit/pkg/access"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	// Full truth table: 2x2x2 combinations.
	tests := []struct {
		name             string
		isAuthenticated  bool
		isPremiumUser    bool
		isContentPremium bool
		want             access.Action
	}{
		{"anonymous, free user, free content", false, false, false, access.RequireAuth},
		{"anonymous, free user, premium content", false, false, true, access.RequireAuth},
		{"anonymous, premium user, free content", false, true, false, access.RequireAuth},
		{"anonymous, premium user, premium content", false, true, true, access.RequireAuth},
		{"authenticated, free user, free content", true, false, false, access.Allow},
		{"authenticated, free user, premium content", true, false, true, access.RequirePremium},
		{"authenticated, premium user, free content", true, true, false, access.Allow},
		{"authenticated, premium user, premium content", true, true, true, access.Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := access.Decide(tt.isAuthenticated, tt.isPremiumUser, tt.isContentPremium)
			assert.Equal(t, tt.want, got)
		})
	}
}
