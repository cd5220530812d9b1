package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/model"
)

// ErrEmailTaken is returned when registering with an email that
// already has an account.
var ErrEmailTaken = errors.New("email already registered")

// UserRepo manages customer accounts.
type UserRepo struct {
    db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user and returns its generated ID.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, fullName string) (uint64, error) {
    const q = `INSERT INTO users (email, password_hash, full_name) VALUES (?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, email, passwordHash, fullName)
    if isDuplicate(err) {
        return 0, ErrEmailTaken
    }
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    return uint64(id), err
}

// GetByEmail loads a user for login.  Returns ErrNotFound when no
// account exists for the email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
    const q = `SELECT id, email, password_hash, full_name, created_at FROM users WHERE email = ?`
    var u model.User
    err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &u, nil
}
