package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, first_name, last_name, email, phone_number, role, locale, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.Role, &u.Locale,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// Save upserts by id. A second user with the same phone number fails with ErrAlreadyExists.
func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, first_name, last_name, email, phone_number, role, locale, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  first_name=$2, last_name=$3, email=$4, phone_number=$5, role=$6, locale=$7, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.FirstName, u.LastName, u.Email, u.PhoneNumber, string(u.Role), u.Locale,
		u.CreatedAt, u.UpdatedAt)
	return mapErr("save user", err)
}

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, mapErr("find user", err)
	}
	return u, nil
}

func (r *UserRepo) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	phone = model.NormalizePhone(phone)
	if phone == "" {
		return nil, domain.ErrNotFound
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE phone_number=$1;`, phone)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, mapErr("find user by phone", err)
	}
	return u, nil
}
