// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/PhotoRetouch/internal/editor"
	"github.com/UnendingLoop/PhotoRetouch/internal/kafka"
	"github.com/UnendingLoop/PhotoRetouch/internal/mwlogger"
	"github.com/UnendingLoop/PhotoRetouch/internal/notify"
	"github.com/UnendingLoop/PhotoRetouch/internal/repository"
	"github.com/UnendingLoop/PhotoRetouch/internal/service"
	"github.com/UnendingLoop/PhotoRetouch/internal/storage"
	"github.com/UnendingLoop/PhotoRetouch/internal/transport"
	"github.com/dustin/go-humanize"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

const (
	defaultMaxUpload = "10MB"
	defaultIdleTTL   = 30 * time.Minute
	orphansBatch     = 20
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	level := appConfig.GetString("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if err := zlog.SetLevel(level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	settings, idleTTL := loadSettings(appConfig)

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// накатываем миграцию
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewImgStorage(ctx, appConfig, 10*time.Second)
	if strg == nil {
		log.Println("Interrupted while connecting to IMG-storage. Exiting app...")
		return
	}
	// создаем экземпляр репо
	repo := repository.NewPostgresSessionRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 5*time.Second); err != nil {
		log.Println("Interrupted while waiting for Kafka. Exiting app...")
		return
	}
	// подключиться к кафке как продюсер
	topic := appConfig.GetString("KAFKA_TOPIC")
	if err := kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic); err != nil {
		log.Println("Interrupted while creating Kafka topics. Exiting app...")
		return
	}
	pub := wbfkafka.NewProducer([]string{broker}, topic)
	notifier := notify.NewKafkaNotifier(pub, 10*time.Second)

	// создаем экземпляр сервиса
	var svc SessionAPIService = service.NewEditorService(repo, strg, notifier, settings)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewSessionHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/sessions/upload", handlers.Upload)                  // создание сессии с фото
	engine.GET("/sessions", handlers.GetAllSessions)                  // список с пагинацией и сортировкой
	engine.GET("/sessions/:id", handlers.GetSession)                  // состояние + эффект
	engine.PATCH("/sessions/:id/params", handlers.SetParams)          // слайдеры
	engine.POST("/sessions/:id/reset", handlers.Reset)                // сброс
	engine.POST("/sessions/:id/enhance", handlers.AutoEnhance)        // авто-улучшение
	engine.POST("/sessions/:id/retouch", handlers.FaceRetouch)        // ретушь лица
	engine.GET("/sessions/:id/image", handlers.LoadSource)            // оригинал
	engine.POST("/sessions/:id/image", handlers.ReplaceImage)         // другое фото
	engine.DELETE("/sessions/:id/image", handlers.ClearImage)         // убрать фото
	engine.GET("/sessions/:id/preview", handlers.Preview)             // рендер на сервере
	engine.GET("/sessions/:id/notifications", handlers.Notifications) // что сохранил воркер
	engine.GET("/sessions/:id/events", handlers.Events)               // websocket
	engine.DELETE("/sessions/:id", handlers.Delete)                   // удаление

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// фоновая уборка: подвисшие пресеты и простаивающие сессии
	go recoveryLoop(ctx, svc, idleTTL)

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(srv, pub, dbConn)
	log.Println("Exiting app...")
}

func loadSettings(appConfig *config.Config) (service.Settings, time.Duration) {
	variant, err := editor.ParseVariant(appConfig.GetString("EDITOR_VARIANT"))
	if err != nil {
		log.Fatalf("Failed to parse EDITOR_VARIANT: %v", err)
	}

	rawSize := appConfig.GetString("MAX_UPLOAD_SIZE")
	if rawSize == "" {
		rawSize = defaultMaxUpload
	}
	maxUpload, err := humanize.ParseBytes(rawSize)
	if err != nil {
		log.Fatalf("Failed to parse MAX_UPLOAD_SIZE %q: %v", rawSize, err)
	}

	idleTTL := defaultIdleTTL
	if raw := appConfig.GetString("SESSION_IDLE_TTL"); raw != "" {
		idleTTL, err = time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Failed to parse SESSION_IDLE_TTL %q: %v", raw, err)
		}
	}

	zlog.Logger.Info().
		Str("variant", string(variant)).
		Str("max_upload", humanize.Bytes(maxUpload)).
		Dur("idle_ttl", idleTTL).
		Msg("Editor settings loaded")

	return service.Settings{
		Variant:         variant,
		MaxUploadSize:   int64(maxUpload),
		SourceKeyPrefix: appConfig.GetString("SOURCE_KEY_PREFIX"),
		Clock:           editor.RealClock{},
	}, idleTTL
}

func recoveryLoop(ctx context.Context, svc SessionAPIService, idleTTL time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovery loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	bgCtx := mwlogger.WithLogger(context.Background(), zlog.Logger.With().Str("job", "recovery").Logger())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(bgCtx, orphansBatch)
			if n := svc.EvictIdle(idleTTL); n > 0 {
				log.Printf("Evicted %d idle sessions from memory", n)
			}
		}
	}
}

func shutdown(srv *http.Server, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// сначала перестаем принимать запросы
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("Failed to shutdown HTTP-server correctly:", err)
	}

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-writer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
