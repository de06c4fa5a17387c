package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pot-code/lesson-tutor/internal/catalog"
	"github.com/pot-code/lesson-tutor/internal/chat"
	infra "github.com/pot-code/lesson-tutor/internal/infrastructure"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/driver"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/logging"
	"github.com/pot-code/lesson-tutor/internal/interfaces/rest"
	"github.com/pot-code/lesson-tutor/internal/lesson"
	"github.com/pot-code/lesson-tutor/internal/user"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		logger.Fatal("Failed to create DB connection", zap.Error(err))
	}
	defer dbConn.Close(context.Background())
	logger.Debug("Create DB connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)
	if err := driver.Migrate(logging.SetLoggerInContext(ctx, logger), dbConn, option.Database.Driver); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	kv, err := driver.GetKVConnection(&driver.KVConfig{
		Driver:   option.KVStore.Driver,
		Host:     option.KVStore.Host,
		Port:     option.KVStore.Port,
		Password: option.KVStore.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create KV connection", zap.Error(err))
	}

	lessons := catalog.Default()
	UserRepo := user.NewUserRepository(dbConn)
	UserUseCase := user.NewUserUseCase(UserRepo, lessons, option.Security.BcryptCost)
	LessonUseCase := lesson.NewLessonUseCase(lessons, UserUseCase)

	if option.Chat.APIKey == "" {
		logger.Warn("chat.api_key is empty, every chat message will get the fallback reply")
	}
	hub := chat.NewHub(logger)
	hub.SetDispatcher(chat.NewRelay(chat.NewOpenAICompleter(&chat.OpenAIConfig{
		APIKey:       option.Chat.APIKey,
		BaseURL:      option.Chat.BaseURL,
		Model:        option.Chat.Model,
		SystemPrompt: option.Chat.SystemPrompt,
	}), hub))
	go hub.RunWithContext(ctx)

	if err := rest.Serve(ctx, &rest.AppContext{
		Option:        option,
		Conn:          dbConn,
		KVStore:       kv,
		UserUseCase:   UserUseCase,
		LessonUseCase: LessonUseCase,
		Hub:           hub,
		Logger:        logger,
	}); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
}
