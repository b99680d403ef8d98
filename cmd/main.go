package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/config"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/consumer"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/eventbroker"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/handler"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/notifier"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/reconciler"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/repository"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/service"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/store"
	"github.com/OmerEfron/friendlinesv2.0-sub002/pkg/database"
	pkgjwt "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/jwt"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
	"github.com/OmerEfron/friendlinesv2.0-sub002/pkg/middleware"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "friendlines",
	})
	logger := pkglog.L()

	// 3. Init DB (GORM, auto-migrate models)
	dbConfig := &database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	db, err := database.New(dbConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	// Group tables are owned by the groups service; they are migrated here
	// too so a single-binary deployment can seed them locally.
	if err := database.AutoMigrate(db,
		&domain.FriendRequestModel{},
		&domain.FriendshipModel{},
		&domain.UserStatsModel{},
		&domain.PostModel{},
		&domain.DeviceTokenModel{},
		&domain.GroupModel{},
		&domain.GroupMemberModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// 4. Init Redis client
	redisStore, err := store.NewRedisFriendCountStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// 5. Create repos and services
	friendshipRepo := repository.NewGormFriendshipRepository(db)
	postRepo := repository.NewGormPostRepository(db)
	groupRepo := repository.NewGormGroupRepository(db)
	tokenRepo := repository.NewGormDeviceTokenRepository(db)

	friendshipSvc := service.NewFriendshipService(friendshipRepo, redisStore)
	audienceSvc := service.NewAudienceService(friendshipRepo, groupRepo)
	deviceSvc := service.NewDeviceService(tokenRepo)

	// 6. Init Kafka producers (post events + push dispatch)
	var postPublisher eventbroker.PostEventPublisher
	if cfg.Kafka.Brokers != "" {
		pub, err := eventbroker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.PostTopic)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka publisher, post events disabled")
		} else {
			postPublisher = pub
			defer pub.Close()
			logger.Info().Str(pkglog.FieldTopic, cfg.Kafka.PostTopic).Msg("kafka post publisher started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; post events disabled")
	}

	postSvc := service.NewPostService(postRepo, audienceSvc, postPublisher)

	var pushDelivery notifier.PushDelivery
	if cfg.Kafka.Brokers != "" {
		pd, err := notifier.NewKafkaPushDelivery(cfg.Kafka.Brokers, cfg.Kafka.PushTopic)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create push delivery, notifications disabled")
		} else {
			pushDelivery = pd
			defer pd.Close()
			logger.Info().Str(pkglog.FieldTopic, cfg.Kafka.PushTopic).Msg("kafka push delivery started")
		}
	}

	fanoutSvc := service.NewFanoutService(friendshipRepo, groupRepo, postRepo, tokenRepo, pushDelivery)

	// 7. Create auth middleware
	jwtManager := pkgjwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// 8. Init Kafka consumer (post.created -> notification fan-out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" && pushDelivery != nil {
		kc, err := consumer.NewConfluentConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.PostTopic,
			cfg.Kafka.GroupID,
			fanoutSvc, // service implements PostEventHandler
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, fan-out disabled")
		} else {
			if err := kc.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to start kafka consumer")
			} else {
				kafkaConsumer = kc
				logger.Info().Str(pkglog.FieldTopic, cfg.Kafka.PostTopic).Msg("kafka fan-out consumer started")
			}
		}
	} else {
		logger.Warn().Msg("kafka not fully configured; fan-out consumer disabled")
	}

	// 9. Init reconciler and start
	rec := reconciler.New(redisStore, friendshipRepo, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 10. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(friendshipSvc, postSvc, deviceSvc, authMiddleware)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)

	// 11. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("friendlines starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 12. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. cancel() — stop Kafka consumer loop and reconciler ticker
		cancel()

		// 2. kafkaConsumer.Close() — wait for in-flight event
		if kafkaConsumer != nil {
			if err := kafkaConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		// 3. reconciler.Stop() — stop ticker; <-reconciler.Done()
		rec.Stop()
		<-rec.Done()

		// 4. server.Shutdown(5s) — drain HTTP
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("friendlines stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
