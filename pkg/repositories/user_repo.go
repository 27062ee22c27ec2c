package repositories

import (
	"context"

	"github.com/coinbox-app/coinbox-api/pkg/database"
	"github.com/coinbox-app/coinbox-api/pkg/models"
	"github.com/jackc/pgx/v5"
)

// UserFilter narrows the administrative user listing.
type UserFilter struct {
	Search string // case-insensitive substring match on email
	Limit  int
	Offset int
}

// UserRepository defines the interface for user repository.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user models.User) (int64, error)
	FindById(ctx context.Context, userID int64) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, error)
	// Delete removes the account row; the FK cascade takes the ledger with it.
	Delete(ctx context.Context, tx pgx.Tx, userID int64) (int64, error)
}

type UserRepositoryImpl struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, user models.User) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id`,
		user.Email, user.PasswordHash,
	).Scan(&id)
	return id, err
}

func (r *UserRepositoryImpl) FindById(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	return user, err
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	return user, err
}

func (r *UserRepositoryImpl) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	search := f.Search
	var searchArg *string
	if search != "" {
		pattern := "%" + search + "%"
		searchArg = &pattern
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE ($1::text IS NULL OR email ILIKE $1)
		ORDER BY id ASC
		LIMIT $2 OFFSET $3`,
		searchArg, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err = rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepositoryImpl) Delete(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
