package main

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stayvia/user-service/internal/config"
	"github.com/stayvia/user-service/internal/logging"
	"github.com/stayvia/user-service/internal/notify"
	miniostore "github.com/stayvia/user-service/internal/repository/minio"
	"github.com/stayvia/user-service/internal/repository/postgres"
	"github.com/stayvia/user-service/internal/service"
	transport "github.com/stayvia/user-service/internal/transport/http"
	"github.com/stayvia/user-service/internal/util"
)

func main() {
	cfg := config.Load()

	if cfg.LogstashTCPAddr != "" {
		writer, err := logging.NewLogstashWriter(cfg.LogstashTCPAddr)
		if err != nil {
			log.Printf("Warning: logstash writer disabled: %v", err)
		} else {
			defer writer.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, writer))
		}
	}

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := postgres.Migrate(migrateCtx, db.DB); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	userRepo := postgres.NewUserRepo(db)
	resetRepo := postgres.NewPasswordResetRepo(db)
	txManager := postgres.NewTxManager(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	notifications := notify.NewNotificationProducer(redisClient, cfg.NotificationChannel)
	profileChanges := notify.NewProfileChangeProducer(redisClient, cfg.ProfileChangeChannel)

	minioClient, err := miniostore.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
	if err != nil {
		log.Fatalf("connect object storage: %v", err)
	}
	objectStorage := miniostore.NewStorage(minioClient, cfg.MinIOEndpoint, cfg.MinIOPublicURL, cfg.MinIOUseSSL)

	hasher := util.NewPasswordHasher(cfg.BcryptCost)
	jwtManager := util.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	authService := service.NewAuthService(
		userRepo, resetRepo, txManager,
		hasher, jwtManager, notifications,
		cfg.VerificationCodeTTL, cfg.PasswordResetTTL,
	)
	userService := service.NewUserService(userRepo, txManager, profileChanges)
	imageService := service.NewUserImageService(userRepo, objectStorage, txManager, cfg.MinIOBucketProfile)

	e := transport.NewRouter()
	transport.RegisterAuth(e, authService)
	transport.RegisterUsers(e, authService, userService, imageService)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
