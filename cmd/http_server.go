package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/tianting/celestial-court/internal"
	"github.com/tianting/celestial-court/internal/auth"
	authpg "github.com/tianting/celestial-court/internal/auth/postgres"
	"github.com/tianting/celestial-court/internal/deity"
	deitypg "github.com/tianting/celestial-court/internal/deity/postgres"
	"github.com/tianting/celestial-court/internal/department"
	departmentpg "github.com/tianting/celestial-court/internal/department/postgres"
	"github.com/tianting/celestial-court/internal/permission"
	permissionpg "github.com/tianting/celestial-court/internal/permission/postgres"
	"github.com/tianting/celestial-court/internal/rank"
	rankpg "github.com/tianting/celestial-court/internal/rank/postgres"
	"github.com/tianting/celestial-court/internal/transport/rest"
	"github.com/tianting/celestial-court/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	logger.Init(os.Getenv("APP_ENV"))

	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to wire routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if sqlDB, derr := deps.DB.DB(); derr == nil {
			if err := sqlDB.Close(); err != nil {
				deps.Logger.Error("Database close error", "error", err)
			}
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	lg := deps.Logger

	// Repositories
	rankRepo := rankpg.NewRankRepository(deps.DB)
	permRepo := permissionpg.NewPermissionRepository(deps.DB)
	authRepo := authpg.NewRepository(deps.DB)
	departmentRepo := departmentpg.NewDepartmentRepository(deps.DB)
	deityRepo := deitypg.NewDeityRepository(deps.DB)

	// Resolver snapshot must be warm before the first request
	resolver := permission.NewResolver(permRepo, lg)
	if err := resolver.Reload(); err != nil {
		return fmt.Errorf("failed to load permission catalog: %w", err)
	}

	sec := deps.Config.Security
	tokenGen := auth.NewJWTTokenGenerator(
		sec.AccessTokenSecret,
		sec.RefreshTokenSecret,
		sec.AccessTokenDuration,
		sec.RefreshTokenDuration,
	)

	authService := auth.NewService(authRepo, tokenGen, resolver, sec.BCryptCost)
	guard := auth.NewGuard(resolver, lg)

	rankService := rank.NewService(rankRepo, lg)
	permService := permission.NewService(permRepo, resolver, lg)
	departmentService := department.NewService(departmentRepo, deityRepo, rankRepo, lg)
	deityService := deity.NewService(deityRepo, departmentRepo, rankRepo, lg)

	sqlDB, err := deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to unwrap sql.DB: %w", err)
	}

	rest.RegisterAllRoutes(deps.Router, sqlDB, rest.Handlers{
		Auth:       auth.NewHandler(authService),
		Guard:      guard,
		Resolver:   resolver,
		Rank:       rank.NewHandler(rankService),
		Permission: permission.NewHandler(permService, resolver),
		Department: department.NewHandler(departmentService),
		Deity:      deity.NewHandler(deityService),
	}, deps.Config.Server.Origins(), lg)

	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Dependencies{
		Config: config,
		Logger: logger.LoggerWrapper(),
		DB:     db,
		Router: chi.NewRouter(),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Source), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
