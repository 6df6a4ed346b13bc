package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	grpcctx "github.com/dtroode/phoneauth/internal/api/grpc/context"
	"github.com/dtroode/phoneauth/internal/api/grpc/router"
	grpcServer "github.com/dtroode/phoneauth/internal/api/grpc/server"
	"github.com/dtroode/phoneauth/internal/config"
	"github.com/dtroode/phoneauth/internal/identity"
	"github.com/dtroode/phoneauth/internal/identity/twilio"
	"github.com/dtroode/phoneauth/internal/logger"
	"github.com/dtroode/phoneauth/internal/marker"
	"github.com/dtroode/phoneauth/internal/model"
	"github.com/dtroode/phoneauth/internal/repository/postgres"
	"github.com/dtroode/phoneauth/internal/server"
	"github.com/dtroode/phoneauth/internal/service"
	storage "github.com/dtroode/phoneauth/internal/storage/minio"
	"github.com/dtroode/phoneauth/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	deviceStore, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket, cfg.Storage.DeviceID)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	provider := identity.NewProvider(
		postgres.NewChallengeRepository(db),
		postgres.NewAccountRepository(db),
		postgres.NewSessionRepository(db),
		deviceStore,
		token.NewJWT(cfg.JWT.Secret, cfg.JWT.SessionTTL),
		newVerifier(cfg, logger),
		identity.Limits{
			ChallengeTTL:    cfg.Identity.ChallengeTTL,
			RateLimitWindow: cfg.Identity.RateLimitWindow,
			RateLimitMax:    cfg.Identity.RateLimitMax,
			DailySMSQuota:   cfg.Identity.DailySMSQuota,
		},
		logger.Named("identity"),
	)
	if err := provider.Restore(ctx); err != nil {
		logger.Warn("failed to restore session", "error", err)
	}

	controller := service.NewSessionController(
		ctx,
		provider,
		postgres.NewProfileRepository(db),
		marker.New(deviceStore, cfg.Controller.MarkerKey),
		logger.Named("controller"),
		service.ControllerConfig{
			ProfileSyncRetries: cfg.Controller.ProfileSyncRetries,
			ProfileSyncBackoff: cfg.Controller.ProfileSyncBackoff,
		},
	)
	defer controller.Close()

	r := router.New(controller, grpcctx.NewManager(), cfg.GRPC.ClientKey, logger.Named("grpc"))
	grpcServer := grpcServer.NewGRPCServer(r.Register(), fmt.Sprintf(":%s", cfg.GRPC.Port))

	sl := server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(grpcServer)

	logAppVersion()

	readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := controller.WaitReady(readyCtx); err != nil {
		logger.Warn("session controller is still loading", "error", err)
	} else {
		state := controller.State()
		logger.Info("session controller ready", "phase", state.Phase, "authenticated", state.Authenticated)
	}
	readyCancel()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	r.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := grpcServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func newVerifier(cfg *config.Config, logger *logger.Logger) identity.Verifier {
	static := identity.NewStaticVerifier(cfg.Identity.TestNumbers)

	if cfg.TwilioEnabled() {
		return identity.NewRouter(static, twilio.NewVerifier(
			cfg.Twilio.AccountSID,
			cfg.Twilio.AuthToken,
			cfg.Twilio.VerifyServiceSID,
			cfg.Twilio.Channel,
			logger.Named("twilio"),
		))
	}

	logger.Warn("Twilio is not configured, verification codes are written to the log")
	return identity.NewRouter(static, identity.NewLogVerifier(logger.Named("verifier")))
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
