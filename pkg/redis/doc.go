// Package redis connects the kit to Redis, which backs the derived premium
// flag cache and the retry coordinator's cross-instance sweep lease.
package redis
