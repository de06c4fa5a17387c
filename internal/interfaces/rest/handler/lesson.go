package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest/middleware"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest/view"
	"github.com/pot-code/lesson-tutor/internal/lesson"
)

type completeLessonBody struct {
	Lesson string `json:"lesson"`
}

type completeLessonReply struct {
	Message  string   `json:"message"`
	Progress []string `json:"progress"`
}

type recommendationsReply struct {
	Recommendations []string `json:"recommendations"`
}

type dashboardData struct {
	Username        string
	Progress        []string
	Lessons         []*lesson.LessonStatus
	Recommendations []string
}

type LessonHandler struct {
	lessonUseCase lesson.LessonUseCase
}

func NewLessonHandler(LessonUseCase lesson.LessonUseCase) *LessonHandler {
	return &LessonHandler{LessonUseCase}
}

// HandleDashboard ...
func (lh *LessonHandler) HandleDashboard(c echo.Context) error {
	u := middleware.CurrentUser(c)
	return c.Render(http.StatusOK, view.PageDashboard, &dashboardData{
		Username:        u.Username,
		Progress:        u.Progress,
		Lessons:         lh.lessonUseCase.Overview(u),
		Recommendations: lh.lessonUseCase.Recommendations(c.Request().Context(), u),
	})
}

// HandleCompleteLesson ...
func (lh *LessonHandler) HandleCompleteLesson(c echo.Context) error {
	u := middleware.CurrentUser(c)
	body := new(completeLessonBody)
	if err := c.Bind(body); err != nil || body.Lesson == "" {
		return c.JSON(http.StatusBadRequest, &ErrorBody{lesson.ErrInvalidLesson.Error()})
	}

	progress, err := lh.lessonUseCase.CompleteLesson(c.Request().Context(), u, body.Lesson)
	if errors.Is(err, lesson.ErrInvalidLesson) {
		return c.JSON(http.StatusBadRequest, &ErrorBody{err.Error()})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &completeLessonReply{
		Message:  fmt.Sprintf("Lesson '%s' marked as completed!", body.Lesson),
		Progress: progress,
	})
}

// HandleGetRecommendations ...
func (lh *LessonHandler) HandleGetRecommendations(c echo.Context) error {
	u := middleware.CurrentUser(c)
	return c.JSON(http.StatusOK, &recommendationsReply{
		Recommendations: lh.lessonUseCase.Recommendations(c.Request().Context(), u),
	})
}
