package repository

import (
	"context"

	"github.com/uptrace/bun"
)

// MigratedUserModel is the Bun model for the migration marker table. One
// row per migrated account, keyed by the local user id.
type MigratedUserModel struct {
	bun.BaseModel `bun:"table:wsoauth_users,alias:wso"`

	UserID int64 `bun:"wsoauth_user,pk"`
}

// MigrationRepository implements wsoauth.MigrationStore using Bun.
type MigrationRepository struct {
	db *bun.DB
}

// NewMigrationRepository creates a new repository.
func NewMigrationRepository(db *bun.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// IsMigrated implements wsoauth.MigrationStore.
func (r *MigrationRepository) IsMigrated(ctx context.Context, userID int64) (bool, error) {
	return r.db.NewSelect().
		Model((*MigratedUserModel)(nil)).
		Where("wsoauth_user = ?", userID).
		Exists(ctx)
}

// Insert implements wsoauth.MigrationStore. Inserting an id that already
// has a record is a no-op, which keeps MigrateOne safe under concurrent
// invocation for the same account.
func (r *MigrationRepository) Insert(ctx context.Context, userID int64) error {
	_, err := r.db.NewInsert().
		Model(&MigratedUserModel{UserID: userID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

// MigratedIDs implements wsoauth.MigrationStore.
func (r *MigrationRepository) MigratedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*MigratedUserModel)(nil)).
		Column("wsoauth_user").
		Order("wsoauth_user ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
