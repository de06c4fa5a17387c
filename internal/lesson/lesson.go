package lesson

import (
	"context"
	"errors"

	"github.com/pot-code/lesson-tutor/internal/user"
)

// ErrInvalidLesson lesson is not part of the catalog
var ErrInvalidLesson = errors.New("Invalid lesson")

// LessonStatus catalog entry as seen by one user
type LessonStatus struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

type LessonUseCase interface {
	// CompleteLesson records lesson as completed by u and returns the updated progress
	CompleteLesson(ctx context.Context, u *user.UserModel, lesson string) ([]string, error)
	// Recommendations next lessons for u, at most three
	Recommendations(ctx context.Context, u *user.UserModel) []string
	// Overview every catalog lesson with its completion state for u
	Overview(u *user.UserModel) []*LessonStatus
}
