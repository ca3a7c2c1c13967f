// Package access implements the content gate: a pure decision function that
// maps (authenticated, premium user, premium content) to the action the host
// application should take.
//
// The function is side-effect free and safe for any number of concurrent
// callers. It deliberately knows nothing about billing modes or subscription
// state; callers resolve the user's premium flag first via the entitlement
// package and pass the result in.
//
// Usage:
//
//	switch access.Decide(sessionOK, ent.IsPremium, post.Premium) {
//	case access.Allow:
//		// render content
//	case access.RequireAuth:
//		// redirect to login
//	case access.RequirePremium:
//		// render upgrade prompt
//	}
package access
