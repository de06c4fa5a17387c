package lesson

import (
	"context"

	"github.com/pot-code/lesson-tutor/internal/catalog"
	"github.com/pot-code/lesson-tutor/internal/recommend"
	"github.com/pot-code/lesson-tutor/internal/user"
	"go.elastic.co/apm"
)

// LessonUseCaseImpl ...
type LessonUseCaseImpl struct {
	Catalog     *catalog.Catalog
	Engine      *recommend.Engine
	UserUseCase user.UserUseCase
}

var _ LessonUseCase = &LessonUseCaseImpl{}

// NewLessonUseCase ...
func NewLessonUseCase(
	Catalog *catalog.Catalog,
	UserUseCase user.UserUseCase,
) *LessonUseCaseImpl {
	return &LessonUseCaseImpl{
		Catalog:     Catalog,
		Engine:      recommend.NewEngine(Catalog),
		UserUseCase: UserUseCase,
	}
}

func (lu *LessonUseCaseImpl) CompleteLesson(ctx context.Context, u *user.UserModel, lesson string) ([]string, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonUseCaseImpl.CompleteLesson", "service")
	defer apmSpan.End()

	if !lu.Catalog.Contains(lesson) {
		return nil, ErrInvalidLesson
	}
	return lu.UserUseCase.RecordCompletion(ctx, u, lesson)
}

func (lu *LessonUseCaseImpl) Recommendations(ctx context.Context, u *user.UserModel) []string {
	apmSpan, _ := apm.StartSpan(ctx, "LessonUseCaseImpl.Recommendations", "service")
	defer apmSpan.End()

	return lu.Engine.Recommend(u.Progress)
}

func (lu *LessonUseCaseImpl) Overview(u *user.UserModel) []*LessonStatus {
	lessons := lu.Catalog.Lessons()
	res := make([]*LessonStatus, len(lessons))
	for i, l := range lessons {
		res[i] = &LessonStatus{
			ID:          l.ID,
			Description: l.Description,
			Completed:   u.HasCompleted(l.ID),
		}
	}
	return res
}
