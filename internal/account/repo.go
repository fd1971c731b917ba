package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists teacher profiles in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateTeacher inserts a profile; a taken email reports ErrEmailInUse.
func (r *Repository) CreateTeacher(ctx context.Context, t Teacher, cred Credentials) (Teacher, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teachers (id, name, email, photo_url, password_hash, google_sub)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING created_at
	`, t.ID, t.Name, t.Email, t.PhotoURL, cred.PasswordHash, cred.GoogleSub)
	if err := row.Scan(&t.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Teacher{}, ErrEmailInUse
		}
		return Teacher{}, err
	}
	return t, nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (Teacher, Credentials, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, photo_url, COALESCE(password_hash, ''), COALESCE(google_sub, ''), created_at
		FROM teachers WHERE `+where, arg)
	var (
		t    Teacher
		cred Credentials
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.PhotoURL, &cred.PasswordHash, &cred.GoogleSub, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Teacher{}, Credentials{}, ErrNotFound
		}
		return Teacher{}, Credentials{}, err
	}
	return t, cred, nil
}

func (r *Repository) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	t, _, err := r.getOne(ctx, "id = $1", id)
	return t, err
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (Teacher, Credentials, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *Repository) FindByGoogleSub(ctx context.Context, sub string) (Teacher, error) {
	t, _, err := r.getOne(ctx, "google_sub = $1", sub)
	return t, err
}

// LinkGoogle attaches a Google account to an existing profile.
func (r *Repository) LinkGoogle(ctx context.Context, id, sub string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE teachers SET google_sub = $2, updated_at = NOW() WHERE id = $1`, id, sub)
	return expectOne(res, err)
}

// UpdateTeacher overwrites name, email and photo.
func (r *Repository) UpdateTeacher(ctx context.Context, t Teacher) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE teachers SET name = $2, email = $3, photo_url = $4, updated_at = NOW()
		WHERE id = $1
	`, t.ID, t.Name, t.Email, t.PhotoURL)
	if isUniqueViolation(err) {
		return ErrEmailInUse
	}
	return expectOne(res, err)
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (teacher_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, teacherID, token, expiresAt)
	return err
}

// ConsumeRefreshToken revokes the token if it is still live and returns its teacher.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, token string, now time.Time) (string, error) {
	var teacherID string
	err := r.db.QueryRowContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND NOT revoked AND expires_at > $2
		RETURNING teacher_id
	`, token, now).Scan(&teacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionExpired
	}
	return teacherID, err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
