// Package users stores the accounts allowed into the dashboard, along with
// the audit trail of who created and last touched each of them.
package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/mbolis/survey-intake/database"
	"github.com/mbolis/survey-intake/model"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrUserExists = errors.New("username or email already in use")
)

type NewUser struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db}
}

const userColumns = `id, username, email, password, is_admin, is_new`

func scanUser(row interface{ Scan(...any) error }) (u model.User, err error) {
	err = row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.IsAdmin, &u.IsNew)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

func (s *Store) ByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = ?`,
		username,
	))
}

func (s *Store) ByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	))
}

func (s *Store) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer rows.Close()

	list := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		list = append(list, u)
	}
	return list, errors.Wrap(rows.Err(), "query users")
}

func (s *Store) Count(ctx context.Context) (n int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, errors.Wrap(err, "count users")
}

// Create adds an account on behalf of actor, who is recorded in the activity
// trail. Accounts always start flagged as new, so the first login asks for a
// password change. An empty password is allowed.
func (s *Store) Create(ctx context.Context, actor int64, nu NewUser) (model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	u, err := insertUser(ctx, tx, nu)
	if err != nil {
		return model.User{}, err
	}
	if actor == 0 {
		actor = u.ID
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_activity (username, email, create_uid, write_uid, create_date, write_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, actor, actor, now, now,
	)
	if err != nil {
		return model.User{}, errors.Wrap(err, "insert user activity")
	}

	err = tx.Commit()
	return u, errors.Wrap(err, "commit")
}

func insertUser(ctx context.Context, tx *sql.Tx, nu NewUser) (model.User, error) {
	hash, err := hashPassword(nu.Password)
	if err != nil {
		return model.User{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password, is_admin, is_new)
		VALUES (?, ?, ?, ?, ?)`,
		nu.Username, nu.Email, hash, nu.IsAdmin, true,
	)
	if err != nil {
		if database.IsIntegrityError(err) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, errors.Wrap(err, "insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, errors.Wrap(err, "insert user")
	}

	return model.User{
		ID:       id,
		Username: nu.Username,
		Email:    nu.Email,
		Password: hash,
		IsAdmin:  nu.IsAdmin,
		IsNew:    true,
	}, nil
}

// Bootstrap creates the first administrator when no account exists yet. It
// reports whether the account was created.
func (s *Store) Bootstrap(ctx context.Context, nu NewUser) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil || n > 0 {
		return false, err
	}
	nu.IsAdmin = true
	_, err = s.Create(ctx, 0, nu)
	return err == nil, err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}

// ChangePassword sets a new password, clears the new-account flag and stamps
// the user's activity rows.
func (s *Store) ChangePassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		return errors.New("password must not be empty")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var username string
	err = tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, id).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "find user")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET password = ?, is_new = ? WHERE id = ?`,
		hash, false, id,
	)
	if err != nil {
		return errors.Wrap(err, "update password")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_activity SET write_uid = ?, write_date = ? WHERE username = ?`,
		id, time.Now().UTC(), username,
	)
	if err != nil {
		return errors.Wrap(err, "update user activity")
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// Activity returns the audit row of an account.
func (s *Store) Activity(ctx context.Context, username string) (a model.UserActivity, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT id, username, email, create_uid, write_uid, create_date, write_date
		FROM user_activity WHERE username = ?
		ORDER BY id DESC LIMIT 1`,
		username,
	).Scan(&a.ID, &a.Username, &a.Email, &a.CreateUID, &a.WriteUID, &a.CreateDate, &a.WriteDate)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// Authenticate checks a password against the stored hash. New accounts
// without a password accept any password: they must change it right away.
func Authenticate(u model.User, password string) error {
	if u.Password == "" {
		if u.IsNew {
			return nil
		}
		return errors.New("account has no password")
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}
