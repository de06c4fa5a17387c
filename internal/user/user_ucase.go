package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/pot-code/lesson-tutor/internal/catalog"
	"go.elastic.co/apm"
	"golang.org/x/crypto/bcrypt"
)

// maxProgressAttempts bounds the compare-and-swap loop of RecordCompletion
const maxProgressAttempts = 5

// maxPasswordBytes longest input bcrypt accepts
const maxPasswordBytes = 72

// UserUseCaseImpl credential store backed by a UserRepository
type UserUseCaseImpl struct {
	UserRepository UserRepository
	Catalog        *catalog.Catalog
	BcryptCost     int

	// compared against when the username is unknown so both failure paths cost the same
	dummyHash []byte
}

var _ UserUseCase = &UserUseCaseImpl{}

// NewUserUseCase ...
func NewUserUseCase(
	UserRepository UserRepository,
	Catalog *catalog.Catalog,
	BcryptCost int,
) *UserUseCaseImpl {
	if BcryptCost < bcrypt.MinCost {
		BcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not a password"), BcryptCost)
	if err != nil {
		panic(err)
	}
	return &UserUseCaseImpl{
		UserRepository: UserRepository,
		Catalog:        Catalog,
		BcryptCost:     BcryptCost,
		dummyHash:      dummy,
	}
}

// SignUp create a user with empty progress
func (uu *UserUseCaseImpl) SignUp(ctx context.Context, username, password string) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignUp", "service")
	defer apmSpan.End()

	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), uu.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	post := &UserModel{
		Username:     username,
		PasswordHash: string(hash),
		Progress:     []string{},
	}
	if err := uu.UserRepository.SaveUser(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// SignIn verify credential, unknown users and wrong passwords both yield ErrNoSuchUser
func (uu *UserUseCaseImpl) SignIn(ctx context.Context, username, password string) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignIn", "service")
	defer apmSpan.End()

	user, err := uu.UserRepository.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	// no stored hash can match an over-long password
	if user == nil || len(password) > maxPasswordBytes {
		bcrypt.CompareHashAndPassword(uu.dummyHash, []byte(password))
		return nil, ErrNoSuchUser
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return nil, ErrNoSuchUser
		}
		return nil, err
	}
	return user, nil
}

// Get load user by id
func (uu *UserUseCaseImpl) Get(ctx context.Context, id int64) (*UserModel, error) {
	user, err := uu.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RecordCompletion append lesson to the user's progress.
//
// Lessons outside the catalog and lessons already completed leave progress untouched.
func (uu *UserUseCaseImpl) RecordCompletion(ctx context.Context, user *UserModel, lesson string) ([]string, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.RecordCompletion", "service")
	defer apmSpan.End()

	if !uu.Catalog.Contains(lesson) {
		return user.Progress, nil
	}
	for attempt := 0; attempt < maxProgressAttempts; attempt++ {
		if user.HasCompleted(lesson) {
			return user.Progress, nil
		}
		progress := make([]string, len(user.Progress), len(user.Progress)+1)
		copy(progress, user.Progress)
		progress = append(progress, lesson)

		ok, err := uu.UserRepository.UpdateProgress(ctx, user, progress)
		if err != nil {
			return nil, err
		}
		if ok {
			return user.Progress, nil
		}

		// lost a race with another request, reload and retry
		fresh, err := uu.Get(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		*user = *fresh
	}
	return nil, fmt.Errorf("progress of user %d kept changing, gave up after %d attempts", user.ID, maxProgressAttempts)
}
