package user

import (
	"context"
	"errors"
)

// UserModel a registered learner
type UserModel struct {
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	Progress     []string `json:"progress"` // completed lesson IDs in completion order

	storedProgress string // progress column as last read, used for compare-and-swap
}

// HasCompleted reports whether lesson is already in the progress list
func (u *UserModel) HasCompleted(lesson string) bool {
	for _, l := range u.Progress {
		if l == lesson {
			return true
		}
	}
	return false
}

// ErrDuplicatedUser unique key constraint violation
var ErrDuplicatedUser = errors.New("User already exists!")

// ErrNoSuchUser failed to validate the credential
var ErrNoSuchUser = errors.New("Invalid username or password!")

// ErrPasswordTooLong bcrypt only hashes the first 72 bytes and refuses longer input
var ErrPasswordTooLong = errors.New("Password must be at most 72 bytes long")

// ErrUserNotFound the user behind a session no longer exists
var ErrUserNotFound = errors.New("User not found")

// UserUseCase credential store operations
type UserUseCase interface {
	SignUp(ctx context.Context, username, password string) (*UserModel, error)
	SignIn(ctx context.Context, username, password string) (*UserModel, error)
	Get(ctx context.Context, id int64) (*UserModel, error)
	RecordCompletion(ctx context.Context, user *UserModel, lesson string) ([]string, error)
}

// UserRepository persistence of UserModel
type UserRepository interface {
	// SaveUser inserts the user unless the username is taken, in which case ErrDuplicatedUser is returned
	SaveUser(ctx context.Context, post *UserModel) error
	FindByUsername(ctx context.Context, username string) (*UserModel, error)
	FindByID(ctx context.Context, id int64) (*UserModel, error)
	// UpdateProgress replaces the stored progress of user, reporting false if the row changed since user was read
	UpdateProgress(ctx context.Context, user *UserModel, progress []string) (bool, error)
}
