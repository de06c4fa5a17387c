package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/driver"
)

type UserSQL struct {
	Conn driver.ITransactionalDB
}

var _ UserRepository = &UserSQL{}

func NewUserRepository(Conn driver.ITransactionalDB) *UserSQL {
	return &UserSQL{Conn}
}

// SaveUser relies on the unique username index so that concurrent sign-ups cannot both succeed.
// The insert and the read back of the generated id share one transaction.
func (repo *UserSQL) SaveUser(ctx context.Context, post *UserModel) (err error) {
	progress, err := encodeProgress(post.Progress)
	if err != nil {
		return err
	}

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO users(username, password_hash, progress)
	VALUES(?,?,?)`, post.Username, driver.Secret(post.PasswordHash), progress)
	if errors.Is(err, driver.ErrUniqueViolation) {
		return ErrDuplicatedUser
	}
	if err != nil {
		return err
	}

	saved, err := findOne(ctx, tx, `SELECT id, username, password_hash, progress
	FROM users WHERE username=?`, post.Username)
	if err != nil {
		return err
	}
	if saved == nil {
		return fmt.Errorf("user %q vanished after insert", post.Username)
	}
	post.ID = saved.ID
	post.storedProgress = saved.storedProgress
	return nil
}

// BeginTx start a transaction on the underlying connection
func (repo *UserSQL) BeginTx(ctx context.Context) (driver.ITransactionalDB, error) {
	return repo.Conn.BeginTx(ctx, &driver.TxOptions{
		Isolation: sql.LevelRepeatableRead,
	})
}

// FindByUsername query user by username, nil if absent
func (repo *UserSQL) FindByUsername(ctx context.Context, username string) (*UserModel, error) {
	return findOne(ctx, repo.Conn, `SELECT id, username, password_hash, progress
	FROM users WHERE username=?`, username)
}

// FindByID query user by id, nil if absent
func (repo *UserSQL) FindByID(ctx context.Context, id int64) (*UserModel, error) {
	return findOne(ctx, repo.Conn, `SELECT id, username, password_hash, progress
	FROM users WHERE id=?`, id)
}

func findOne(ctx context.Context, conn driver.ITransactionalDB, query string, args ...interface{}) (*UserModel, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var (
		user     = new(UserModel)
		progress string
	)
	if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &progress); err != nil {
		return nil, err
	}
	user.storedProgress = progress
	if user.Progress, err = decodeProgress(progress); err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	return user, nil
}

func (repo *UserSQL) UpdateProgress(ctx context.Context, user *UserModel, progress []string) (bool, error) {
	encoded, err := encodeProgress(progress)
	if err != nil {
		return false, err
	}

	res, err := repo.Conn.ExecContext(ctx, `UPDATE users
	SET progress=?
	WHERE id=? AND progress=?`, encoded, user.ID, user.storedProgress)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}
	user.Progress = progress
	user.storedProgress = encoded
	return true, nil
}

func encodeProgress(progress []string) (string, error) {
	if len(progress) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(progress)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeProgress(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var progress []string
	if err := json.Unmarshal([]byte(s), &progress); err != nil {
		return nil, fmt.Errorf("malformed progress %q: %w", s, err)
	}
	if progress == nil {
		progress = []string{}
	}
	return progress, nil
}
