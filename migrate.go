package wsoauth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// ProviderResolver produces the provider whose SaveExtraAttributes hook
// runs when an account is migrated.
type ProviderResolver func() (AuthProvider, error)

// ProgressFunc reports batch progress. It is called once with current=0
// before work starts and once after each processed account.
type ProgressFunc func(current, total int)

// Migrator links local accounts to OAuth at most once each. Safe to share;
// the per-id uniqueness guarantee lives in the MigrationStore insert.
type Migrator struct {
	store   MigrationStore
	users   UserStore
	resolve ProviderResolver
	sink    ActivitySink
	logger  Logger
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// WithMigratorActivitySink sets the audit sink for migration events.
func WithMigratorActivitySink(sink ActivitySink) MigratorOption {
	return func(m *Migrator) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithMigratorLogger overrides the default logger.
func WithMigratorLogger(logger Logger) MigratorOption {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMigrator creates a migration engine over the given stores.
func NewMigrator(store MigrationStore, users UserStore, resolve ProviderResolver, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		store:   store,
		users:   users,
		resolve: resolve,
		sink:    noopActivitySink{},
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// IsMigrated reports whether the account already has a migration record.
func (m *Migrator) IsMigrated(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, ErrInvalidUserID.Clone().WithMetadata(map[string]any{"user_id": userID})
	}

	migrated, err := m.store.IsMigrated(ctx, userID)
	if err != nil {
		return false, wrapStoreError(err, "failed to check migration record")
	}
	return migrated, nil
}

// MigrateOne inserts the migration record for userID and invokes the
// provider's SaveExtraAttributes hook. It returns false without touching
// anything when the account is already migrated.
func (m *Migrator) MigrateOne(ctx context.Context, userID int64) (bool, error) {
	provider, err := m.resolve()
	if err != nil {
		return false, err
	}
	return m.migrateWith(ctx, provider, userID)
}

// MigrateByUsername resolves a username to a local account and migrates
// it. Unknown or empty usernames fail with ErrInvalidUsername.
func (m *Migrator) MigrateByUsername(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, ErrInvalidUsername
	}

	id, err := m.users.IDByUsername(ctx, username)
	if err != nil {
		return false, wrapStoreError(err, "failed to look up user")
	}
	if id == 0 {
		return false, ErrInvalidUsername.Clone().WithMetadata(map[string]any{
			"username": username,
			"reason":   "no such user",
		})
	}

	return m.MigrateOne(ctx, id)
}

// MigrateAll migrates every local account that has no migration record yet
// and returns how many accounts were migrated. The pending set is computed
// once up front; the batch is sequential and not transactional, so a
// failure leaves earlier migrations committed.
func (m *Migrator) MigrateAll(ctx context.Context, progress ProgressFunc) (int, error) {
	pending, err := m.pendingIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := len(pending)
	if progress != nil {
		progress(0, total)
	}

	provider, err := m.resolve()
	if err != nil {
		return 0, err
	}

	count := 0
	for i, id := range pending {
		select {
		case <-ctx.Done():
			return count, errors.Wrap(ctx.Err(), errors.CategoryOperation, "migration batch cancelled")
		default:
		}

		migrated, err := m.migrateWith(ctx, provider, id)
		if err != nil {
			return count, err
		}
		if migrated {
			count++
		}

		if progress != nil {
			progress(i+1, total)
		}
	}

	return count, nil
}

// migrateWith performs the at-most-once link with an already resolved
// provider. The authenticator uses it during usurpation so one request
// resolves the provider exactly once.
func (m *Migrator) migrateWith(ctx context.Context, provider AuthProvider, userID int64) (bool, error) {
	migrated, err := m.IsMigrated(ctx, userID)
	if err != nil {
		return false, err
	}
	if migrated {
		return false, nil
	}

	if err := m.store.Insert(ctx, userID); err != nil {
		return false, wrapStoreError(err, "failed to insert migration record")
	}

	if err := provider.SaveExtraAttributes(ctx, userID); err != nil {
		m.logger.Warn("provider SaveExtraAttributes failed for user %d: %v", userID, err)
	}

	m.record(ctx, ActivityEvent{
		EventType: ActivityEventUserMigrated,
		UserID:    userID,
	})

	return true, nil
}

func (m *Migrator) pendingIDs(ctx context.Context) ([]int64, error) {
	all, err := m.users.AllIDs(ctx)
	if err != nil {
		return nil, wrapStoreError(err, "failed to list accounts")
	}

	migratedIDs, err := m.store.MigratedIDs(ctx)
	if err != nil {
		return nil, wrapStoreError(err, "failed to list migrated accounts")
	}

	migrated := make(map[int64]struct{}, len(migratedIDs))
	for _, id := range migratedIDs {
		migrated[id] = struct{}{}
	}

	pending := make([]int64, 0, len(all))
	for _, id := range all {
		if _, ok := migrated[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

func (m *Migrator) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := m.sink.Record(ctx, event); err != nil {
		m.logger.Warn("migration activity sink error: %v", err)
	}
}
