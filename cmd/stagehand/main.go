package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	migrations "github.com/stagehandhq/stagehand/db"
	"github.com/stagehandhq/stagehand/internal/config"
	"github.com/stagehandhq/stagehand/internal/db"
	"github.com/stagehandhq/stagehand/internal/draft"
	"github.com/stagehandhq/stagehand/internal/handlers"
	"github.com/stagehandhq/stagehand/internal/logger"
	"github.com/stagehandhq/stagehand/internal/pathtrack"
	"github.com/stagehandhq/stagehand/internal/profile"
	"github.com/stagehandhq/stagehand/internal/server"
	"github.com/stagehandhq/stagehand/internal/storage"
	"github.com/stagehandhq/stagehand/internal/thumbnail"
	"github.com/stagehandhq/stagehand/internal/version"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "stagehand",
	Short:         "Performer profile wizard service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Starting %s\n", version.GetInfo())
		buildApp().Run()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version|force N]",
	Short: "Run database migrations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Init(cfg.Log.Level, cfg.Log.Format)
		src, err := migrations.Migrations()
		if err != nil {
			return err
		}
		return db.RunMigrate(log, cfg.Postgres, src, args[0], args[1:])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetInfo())
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config.toml (default: $CONFIG_PATH or ./config.toml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	path := flagConfig
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildApp() *fx.App {
	return fx.New(
		fx.Provide(
			loadConfig,
			provideLogger,
			provideDBConn,
			provideDraftStore,
			provideStorageProvider,
			provideThumbnailGenerator,
			provideReaper,
			provideProfileService,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewProfileHandler),
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDraftStore(log *slog.Logger, conn *pgxpool.Pool) draft.Store {
	return draft.NewPostgresStore(log, conn)
}

func provideStorageProvider(log *slog.Logger, cfg config.Config) (storage.Provider, error) {
	return storage.NewMinioProvider(context.Background(), log, cfg.Minio)
}

func provideThumbnailGenerator(log *slog.Logger, cfg config.Config) thumbnail.Generator {
	if !cfg.Thumbnail.Enabled {
		return thumbnail.Disabled{}
	}
	return thumbnail.NewFFmpegGenerator(log, cfg.Thumbnail, cfg.Media.SpoolDir)
}

func provideReaper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*pathtrack.Reaper, error) {
	reaper, err := pathtrack.NewReaper(log, cfg.Media.ReapInterval)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			reaper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			reaper.Stop()
			return nil
		},
	})
	return reaper, nil
}

func provideProfileService(lc fx.Lifecycle, log *slog.Logger, store draft.Store, provider storage.Provider, reaper *pathtrack.Reaper, thumbs thumbnail.Generator, cfg config.Config) *profile.Service {
	svc := profile.NewService(log, store, provider, reaper, thumbs, cfg.Media)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			svc.CloseAll()
			return nil
		},
	})
	return svc
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
