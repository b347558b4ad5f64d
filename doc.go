// Package wsoauth is an authentication broker that mediates OAuth login
// against an existing user-management host. It maps external identity
// provider accounts onto local user records and reconciles pre-existing
// local accounts with newly authenticated external identities (usurpation).
//
// Two-phase handshake:
//   - Authenticate decides per request whether it is starting or completing
//     a login. Initiation asks the configured AuthProvider for an
//     authorization URL and parks the handshake key/secret in the caller's
//     session. Completion consumes those session values exactly once, asks
//     the provider for the user info, and resolves the resulting username
//     against the host's account store.
//
// Migration:
//   - A row in the migration store is the durable proof that a local account
//     has been linked to OAuth. Migrator exposes the same idempotent
//     insert-if-absent operation to interactive usurpation, to the host's
//     SaveExtraAttributes callback, and to batch maintenance runs.
//
// Providers:
//   - AuthProvider implementations are resolved by name through a Registry
//     seeded with built-in factories and extended at runtime. Providers
//     convert their own wire failures to plain errors; the broker only wraps
//     them in its typed errors and never branches on provider internals.
package wsoauth
