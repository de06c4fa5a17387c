package rest

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/lesson-tutor/internal/chat"
	infra "github.com/pot-code/lesson-tutor/internal/infrastructure"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/auth"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/driver"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/uuid"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/validate"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest/handler"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest/middleware"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest/view"
	"github.com/pot-code/lesson-tutor/internal/lesson"
	"github.com/pot-code/lesson-tutor/internal/user"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// AppContext everything the HTTP transport needs, built once at startup
type AppContext struct {
	Option        *infra.AppConfig
	Conn          driver.ITransactionalDB
	KVStore       driver.KeyValueDB
	UserUseCase   user.UserUseCase
	LessonUseCase lesson.LessonUseCase
	Hub           *chat.Hub
	Logger        *zap.Logger
}

// NewApp create the echo application with every route registered
func NewApp(ac *AppContext) (*echo.Echo, error) {
	option := ac.Option
	logger := ac.Logger

	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}

	var (
		app       = echo.New()
		idGen     = uuid.NewNanoIDGenerator(option.Security.IDLength)
		validator = validate.NewValidator()
		websocket = infra.NewWebsocket()
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName,
			option.SessionTimeout,
			idGen)
		refreshMiddleware = middleware.RefreshToken(jwtUtil, &middleware.RefreshTokenOption{
			Threshold: option.SessionRefresh,
		})
		toLogin = func(c echo.Context) error {
			return c.Redirect(http.StatusFound, "/login")
		}
		unauthorized = func(msg string) echo.HandlerFunc {
			return func(c echo.Context) error {
				return c.JSON(http.StatusUnauthorized, &handler.ErrorBody{Error: msg})
			}
		}
	)
	app.HideBanner = true
	app.HidePort = true
	app.Renderer = renderer
	app.JSONSerializer = GoccyJSONSerializer{}

	registerLivenessProbe(app, ac.Conn, ac.KVStore)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}
	app.Use(echo_middleware.RequestIDWithConfig(echo_middleware.RequestIDConfig{
		Generator: idGen.MustGenerate,
	}))
	app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().RequestURI, "/healthz")
		},
	}))
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				c.JSON(http.StatusInternalServerError,
					handler.NewRESTStandardError(http.StatusInternalServerError, err.Error()).SetTraceID(traceID),
				)
				logger.Error(err.Error(), zap.String("trace.id", traceID))
			},
			HTTPError: func(c echo.Context, he *echo.HTTPError) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				c.JSON(he.Code,
					handler.NewRESTStandardError(he.Code, fmt.Sprint(he.Message)).SetTraceID(traceID),
				)
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().RequestURI, "/ws/")
		},
	}))
	app.StaticFS("/static", view.StaticFS())

	var (
		UserHandler   = handler.NewUserHandler(jwtUtil, ac.KVStore, ac.UserUseCase, validator)
		LessonHandler = handler.NewLessonHandler(ac.LessonUseCase)
	)

	createEndpoint(app,
		&endpoint{
			middlewares: []echo.MiddlewareFunc{middleware.SetTraceLogger(logger)},
			groups: []*apiGroup{
				{
					middlewares: []echo.MiddlewareFunc{
						middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{KVStore: ac.KVStore, Optional: true}),
					},
					routes: []*route{
						{"GET", "/", UserHandler.HandleIndex, nil},
						{"GET", "/login", UserHandler.HandleLoginPage, nil},
						{"POST", "/login", UserHandler.HandleSignIn, nil},
						{"GET", "/register", UserHandler.HandleRegisterPage, nil},
						{"POST", "/register", UserHandler.HandleSignUp, nil},
						{"GET", "/logout", UserHandler.HandleSignOut, nil},
					},
				},
				{
					middlewares: []echo.MiddlewareFunc{
						middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{KVStore: ac.KVStore, Unauthorized: toLogin}),
						refreshMiddleware,
						middleware.LoadUser(jwtUtil, ac.UserUseCase, &middleware.LoadUserOption{Missing: toLogin}),
					},
					routes: []*route{
						{"GET", "/dashboard", LessonHandler.HandleDashboard, nil},
					},
				},
				{
					middlewares: []echo.MiddlewareFunc{
						middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
							KVStore:      ac.KVStore,
							Unauthorized: unauthorized(auth.ErrUnauthorized.Error()),
						}),
						refreshMiddleware,
						middleware.LoadUser(jwtUtil, ac.UserUseCase, &middleware.LoadUserOption{
							Missing: unauthorized(user.ErrUserNotFound.Error()),
						}),
					},
					routes: []*route{
						{"POST", "/complete_lesson", LessonHandler.HandleCompleteLesson, nil},
						{"GET", "/get_recommendations", LessonHandler.HandleGetRecommendations, nil},
					},
				},
				{
					prefix: "/ws",
					routes: []*route{
						{"GET", "/chat", websocket.Handler(ac.Hub.Serve), nil},
					},
				},
			},
		})

	printRoutes(app, logger)
	return app, nil
}

// Serve run the HTTP server until ctx is done, then shut it down gracefully
func Serve(ctx context.Context, ac *AppContext) error {
	app, err := NewApp(ac)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", ac.Option.Host, ac.Option.Port)
	errCh := make(chan error, 1)
	go func() {
		ac.Logger.Info("http server started", zap.String("address", addr))
		errCh <- app.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	ac.Logger.Info("shutting down http server")
	return app.Shutdown(shutdownCtx)
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Debug("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, db driver.ITransactionalDB, kv driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		if db.Ping() == nil && kv.Ping() == nil {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
