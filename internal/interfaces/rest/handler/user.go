package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/auth"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/driver"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/logging"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/validate"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest/view"
	"github.com/pot-code/lesson-tutor/internal/user"
	"go.uber.org/zap"
)

// credentialForm login and register form
type credentialForm struct {
	Username string `form:"username" validate:"required,max=50"`
	Password string `form:"password" validate:"required"`
}

// UserHandler user related operations
type UserHandler struct {
	JWTUtil     *auth.JWTUtil
	KVStore     driver.KeyValueDB
	UserUseCase user.UserUseCase
	Validator   validate.Validator
}

// NewUserHandler create an user controller instance
func NewUserHandler(
	JWTUtil *auth.JWTUtil,
	KVStore driver.KeyValueDB,
	UserUseCase user.UserUseCase,
	Validator validate.Validator,
) *UserHandler {
	return &UserHandler{
		JWTUtil:     JWTUtil,
		KVStore:     KVStore,
		UserUseCase: UserUseCase,
		Validator:   Validator,
	}
}

// HandleIndex landing page, signed-in users go straight to the dashboard
func (uh *UserHandler) HandleIndex(c echo.Context) error {
	if uh.JWTUtil.GetContextToken(c) != nil {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return c.Render(http.StatusOK, view.PageIndex, nil)
}

// HandleLoginPage ...
func (uh *UserHandler) HandleLoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, view.PageLogin, nil)
}

// HandleRegisterPage ...
func (uh *UserHandler) HandleRegisterPage(c echo.Context) error {
	return c.Render(http.StatusOK, view.PageRegister, nil)
}

// HandleSignIn verify the credential and start a session
func (uh *UserHandler) HandleSignIn(c echo.Context) error {
	form, ok := uh.bindCredential(c)
	if !ok {
		return c.Render(http.StatusBadRequest, view.PageLogin, nil)
	}

	ctx := c.Request().Context()
	u, err := uh.UserUseCase.SignIn(ctx, form.Username, form.Password)
	if errors.Is(err, user.ErrNoSuchUser) {
		view.SetFlash(c, view.FlashDanger, err.Error())
		return c.Render(http.StatusOK, view.PageLogin, nil)
	}
	if err != nil {
		return err
	}

	tokenStr, err := uh.JWTUtil.GenerateTokenStr(u.ID, u.Username)
	if err != nil {
		return err
	}
	uh.JWTUtil.SetClientToken(c, tokenStr)
	logging.ExtractLoggerFromContext(ctx).Debug("user signed in", zap.Int64("user.id", u.ID))
	view.SetFlash(c, view.FlashSuccess, "Login successful!")
	return c.Redirect(http.StatusFound, "/dashboard")
}

// HandleSignUp create an account
func (uh *UserHandler) HandleSignUp(c echo.Context) error {
	form, ok := uh.bindCredential(c)
	if !ok {
		return c.Render(http.StatusBadRequest, view.PageRegister, nil)
	}

	_, err := uh.UserUseCase.SignUp(c.Request().Context(), form.Username, form.Password)
	if errors.Is(err, user.ErrDuplicatedUser) {
		view.SetFlash(c, view.FlashWarning, err.Error())
		return c.Redirect(http.StatusFound, "/register")
	}
	if errors.Is(err, user.ErrPasswordTooLong) {
		view.SetFlash(c, view.FlashDanger, err.Error())
		return c.Render(http.StatusBadRequest, view.PageRegister, nil)
	}
	if err != nil {
		return err
	}
	view.SetFlash(c, view.FlashSuccess, "Registration successful! Please login.")
	return c.Redirect(http.StatusFound, "/login")
}

// HandleSignOut end the session, the token is revoked for the rest of its lifetime
func (uh *UserHandler) HandleSignOut(c echo.Context) error {
	if claims := uh.JWTUtil.GetContextToken(c); claims != nil {
		if ttl := claims.TimeRemaining(); ttl > 0 {
			if err := uh.KVStore.SetEX(c.Request().Context(), auth.RevocationKey(claims), "1", ttl); err != nil {
				return err
			}
		}
	}
	uh.JWTUtil.ClearClientToken(c)
	view.SetFlash(c, view.FlashInfo, "You have been logged out.")
	return c.Redirect(http.StatusFound, "/")
}

// bindCredential parse and validate the posted form, failures are flashed
func (uh *UserHandler) bindCredential(c echo.Context) (*credentialForm, bool) {
	form := new(credentialForm)
	if err := c.Bind(form); err != nil {
		view.SetFlash(c, view.FlashDanger, "Failed to read the submitted form")
		return nil, false
	}
	if errs := uh.Validator.Struct(form); errs != nil {
		view.SetFlash(c, view.FlashDanger, validate.First(errs))
		return nil, false
	}
	return form, true
}
