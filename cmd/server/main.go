package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/MiddyPham/middy-corner-back-end/internal/config"
	"github.com/MiddyPham/middy-corner-back-end/internal/db"
	"github.com/MiddyPham/middy-corner-back-end/internal/handler"
	"github.com/MiddyPham/middy-corner-back-end/internal/logging"
	"github.com/MiddyPham/middy-corner-back-end/internal/render"
	"github.com/MiddyPham/middy-corner-back-end/internal/router"
	"github.com/MiddyPham/middy-corner-back-end/internal/service"
	"github.com/MiddyPham/middy-corner-back-end/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	// database
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN()); err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to initialize database")
	}
	if err := db.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure admin account")
	}

	blobs, uploadDir := openBlobStore(cfg)
	refreshStore := openRefreshStore(cfg)

	recounter := service.NewRecounter(db.DB, nil)
	worker, err := service.NewRecountWorker(recounter, cfg.RecountSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid RECOUNT_SCHEDULE")
	}
	worker.Start()
	defer worker.Stop()

	renderer := render.New()
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(db.DB, issuer, refreshStore)
	api := handler.NewAPI(handler.Services{
		Posts:      service.NewPostService(db.DB, recounter, renderer),
		Categories: service.NewCategoryService(db.DB),
		Tags:       service.NewTagService(db.DB),
		Comments:   service.NewCommentService(db.DB),
		Reactions:  service.NewReactionService(db.DB),
		Media:      service.NewMediaService(db.DB, blobs),
		Users:      service.NewUserService(db.DB),
		Auth:       authService,
		Renderer:   renderer,
	}, auth.NewProviders(
		auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		auth.NewFacebookProvider(cfg.FacebookClientID, cfg.FacebookClientSecret, cfg.FacebookRedirectURL),
	))

	r := router.SetupRouter(router.Options{
		SessionSecret:  cfg.SessionSecret,
		UploadDir:      uploadDir,
		UploadURLPath:  cfg.UploadURLPath,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SecureCookies:  cfg.GinMode == gin.ReleaseMode,
	}, api, authService)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := recounter.Flush(ctx); err != nil {
		log.Warn().Err(err).Int("pending", recounter.Queue().Len()).Msg("pending recounts were not applied")
	}
}

// openBlobStore returns S3 when configured and the local upload directory
// otherwise. The second value is the directory to serve, empty for S3.
func openBlobStore(cfg config.AppConfig) (storage.BlobStore, string) {
	if cfg.S3Enabled() {
		s3, err := storage.NewS3(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure S3 storage")
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("media stored in S3")
		return s3, ""
	}

	local, err := storage.NewLocal(cfg.UploadDir, cfg.UploadURLPath)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to prepare upload directory")
	}
	return local, cfg.UploadDir
}

func openRefreshStore(cfg config.AppConfig) service.RefreshStore {
	if cfg.RedisAddr == "" {
		return service.NewGormRefreshStore(db.DB)
	}
	client, err := service.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("refresh tokens stored in redis")
	return service.NewRedisRefreshStore(client)
}
