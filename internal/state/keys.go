// Package state holds the per-tenant bookkeeping for the ingestion engine:
// typed composite keys, durable file offsets and in-memory player sessions.
package state

// TenantServerKey identifies one game server belonging to one tenant.
// Every piece of engine state is partitioned by this key; cross-tenant
// lookups only happen in explicit cleanup paths.
type TenantServerKey struct {
	TenantID string
	ServerID string
}

// TenantPlayerKey identifies one player within a tenant. Player ids are
// only unique per game backend, so the tenant component is mandatory.
type TenantPlayerKey struct {
	TenantID string
	PlayerID string
}
