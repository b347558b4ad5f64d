package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// UserModel is a read-only Bun view of the host's account table. The
// broker never writes it; account materialization stays host-owned.
type UserModel struct {
	bun.BaseModel `bun:"table:user,alias:usr"`

	ID       int64  `bun:"user_id,pk,autoincrement"`
	Name     string `bun:"user_name,notnull,unique"`
	RealName string `bun:"user_real_name"`
	Email    string `bun:"user_email"`
}

// UserRepository implements wsoauth.UserStore using Bun.
type UserRepository struct {
	db *bun.DB
}

// NewUserRepository creates a new repository.
func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

// IDByUsername implements wsoauth.UserStore. It returns 0 when no account
// exists for the username.
func (r *UserRepository) IDByUsername(ctx context.Context, username string) (int64, error) {
	var model UserModel
	err := r.db.NewSelect().
		Model(&model).
		Column("user_id").
		Where("user_name = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return model.ID, nil
}

// AllIDs implements wsoauth.UserStore.
func (r *UserRepository) AllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*UserModel)(nil)).
		Column("user_id").
		Order("user_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
