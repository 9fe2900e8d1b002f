package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resuradar/internal/analyses"
	googleauth "resuradar/internal/auth"
	"resuradar/internal/health"
	"resuradar/internal/llm"
	"resuradar/internal/llm/gemini"
	"resuradar/internal/llm/openrouter"
	"resuradar/internal/payments"
	"resuradar/internal/shared/auth"
	"resuradar/internal/shared/config"
	"resuradar/internal/shared/crypto/envelope"
	"resuradar/internal/shared/server"
	"resuradar/internal/shared/storage/db"
	"resuradar/internal/shared/storage/object"
	localstore "resuradar/internal/shared/storage/object/local"
	s3store "resuradar/internal/shared/storage/object/s3"
	"resuradar/internal/shared/telemetry"
	"resuradar/internal/usage"
	"resuradar/internal/users"
)

// App holds the wired dependencies of the API process.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	LLM    llm.Client
	Cipher *envelope.Cipher
	Signer *auth.Signer

	UsersService    *users.Service
	UsageService    *usage.Service
	AnalysesService *analyses.Service
	PaymentsService *payments.Service
}

var openDatabase = buildDB

// Build connects infrastructure, wires services and mounts the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}
	ready := false
	defer func() {
		if !ready {
			_ = app.Close()
		}
	}()

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if app.LLM, err = BuildLLM(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Cipher, err = buildCipher(cfg); err != nil {
		return nil, err
	}
	if app.Signer, err = auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL, cfg.Env); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(buildRoutes(app))
	ready = true
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildRoutes(app *App) server.RouterDeps {
	cfg := app.Config
	policy := usage.Policy{Limit: cfg.FreeUploadLimit}

	var (
		userRepo     users.Repo
		analysisRepo analyses.Repo
		orderRepo    payments.Repo
		usageSvc     *usage.Service
		healthSvc    *health.Service
	)
	if app.DB != nil {
		userRepo = &users.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		orderRepo = &payments.PGRepo{DB: app.DB}
		usageSvc = usage.NewPostgresService(usage.NewPGStore(app.DB, policy))
		healthSvc = health.NewService(app.DB)
	} else {
		userRepo = users.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		orderRepo = payments.NewMemoryRepo()
		usageSvc = usage.NewService(policy)
		healthSvc = health.NewService(nil)
	}

	userSvc := users.NewService(userRepo)
	analysisSvc := &analyses.Service{
		LLM:      app.LLM,
		Timeout:  cfg.LLMTimeout,
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		Repo:     analysisRepo,
		Store:    app.Store,
		Usage:    usageSvc,
		Users:    userSvc,
	}
	gateway := payments.NewPhonePe(payments.PhonePeConfig{
		BaseURL:       cfg.PhonePeBase,
		TokenURL:      cfg.PhonePeTokenURL,
		ClientID:      cfg.PhonePeClientID,
		ClientSecret:  cfg.PhonePeClientSecret,
		ClientVersion: cfg.PhonePeClientVersion,
	})
	if !gateway.Configured() {
		telemetry.Warn("bootstrap.payments_unconfigured", map[string]any{"env": cfg.Env})
	}
	paymentSvc := payments.NewService(orderRepo, gateway, userSvc, cfg.PaymentRedirectURL)

	app.UsersService = userSvc
	app.UsageService = usageSvc
	app.AnalysesService = analysisSvc
	app.PaymentsService = paymentSvc

	return server.RouterDeps{
		Config:   cfg,
		Cipher:   app.Cipher,
		Verifier: app.Signer,
		Health:   healthSvc,
		GoogleAuth: googleauth.NewGoogleService(googleauth.GoogleConfig{
			ClientID:      cfg.GoogleClientID,
			ClientSecret:  cfg.GoogleClientSecret,
			RedirectURL:   cfg.GoogleRedirectURL,
			UIRedirectURL: cfg.UIRedirectURL,
		}, userSvc, app.Signer),
		UserHandler:     users.NewHandler(userSvc, analysisRepo),
		UsageHandler:    usage.NewHandler(usageSvc),
		AnalysisHandler: analyses.NewHandler(analysisSvc),
		PaymentHandler:  payments.NewHandler(paymentSvc),
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// BuildLLM returns the configured provider client. Missing credentials outside
// production yield an unconfigured client so the API can still boot.
func BuildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "gemini":
		client, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	default:
		client, err = openrouter.NewClient(openrouter.Options{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
			Timeout: cfg.LLMTimeout,
		})
	}
	if err != nil {
		if cfg.Env == "production" {
			return nil, err
		}
		telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
		return llm.UnconfiguredClient{}, nil
	}
	return client, nil
}

func buildCipher(cfg config.Config) (*envelope.Cipher, error) {
	if cfg.EncryptionKey == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("ENCRYPTION_KEY is required")
		}
		telemetry.Warn("bootstrap.envelope_disabled", map[string]any{"reason": "ENCRYPTION_KEY empty"})
		return nil, nil
	}
	return envelope.New([]byte(cfg.EncryptionKey))
}
