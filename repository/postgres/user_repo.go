package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

const userColumns = `id, email, COALESCE(google_sub, ''), COALESCE(name, ''), COALESCE(picture_url, ''), role, is_active,
	preferences, created_at, updated_at, last_login`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) FindBySubject(ctx context.Context, sub string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_sub = $1`
	return scanUser(r.pool.QueryRow(ctx, query, sub))
}

// Insert relies on ON CONFLICT DO NOTHING so concurrent first logins for the
// same email or subject resolve to one row without surfacing an error.
func (r *userRepository) Insert(ctx context.Context, user *domain.User) (repository.InsertResult, error) {
	if user == nil || user.Email == "" {
		return 0, domain.ErrInvalidPayload
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	const query = `
	INSERT INTO users (email, google_sub, name, picture_url, role, is_active, preferences, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	ON CONFLICT DO NOTHING
	RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.Email,
		nullString(user.GoogleSub),
		nullString(user.Name),
		nullString(user.PictureURL),
		string(user.Role),
		user.IsActive,
		marshalMap(user.Preferences),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	switch {
	case err == nil:
		return repository.Inserted, nil
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return repository.AlreadyExists, nil
	default:
		return 0, err
	}
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	if user == nil || user.Email == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE users
	SET name = $2,
		picture_url = $3,
		role = $4,
		is_active = $5,
		preferences = $6,
		last_login = COALESCE($7, last_login),
		updated_at = NOW()
	WHERE email = $1
	RETURNING id, COALESCE(google_sub, ''), created_at, updated_at
	`

	var lastLogin interface{}
	if user.LastLogin != nil {
		lastLogin = *user.LastLogin
	}

	if err := r.pool.QueryRow(ctx, query,
		user.Email,
		nullString(user.Name),
		nullString(user.PictureURL),
		string(user.Role),
		user.IsActive,
		marshalMap(user.Preferences),
		lastLogin,
	).Scan(&user.ID, &user.GoogleSub, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrCodeConflict, "user update conflicts with an existing row", err)
		}
		return err
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + `
	FROM users
	WHERE ($1 = '' OR role = $1)
	  AND ($2 = '' OR email ILIKE '%' || $2 || '%' OR name ILIKE '%' || $2 || '%')
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, filter.Role, filter.Search, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*domain.User, error) {
	var (
		user        domain.User
		role        string
		preferences []byte
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.GoogleSub,
		&user.Name,
		&user.PictureURL,
		&role,
		&user.IsActive,
		&preferences,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	user.Role = domain.Role(role)
	user.Preferences = unmarshalMap(preferences)
	return &user, nil
}
