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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	router "github.com/dkeye/Prompter/internal/adapters/http"
	"github.com/dkeye/Prompter/internal/app"
	"github.com/dkeye/Prompter/internal/app/orch"
	"github.com/dkeye/Prompter/internal/config"
	"github.com/dkeye/Prompter/internal/core"
	"github.com/dkeye/Prompter/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "prompter",
	Short: "Teleprompter session server",
	Long: `Serves teleprompter projects over WebSocket. Controllers edit text and
settings and drive scrolling; viewers and displays follow along in real time.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().Int("port", 8080, "HTTP listen port")
	rootCmd.Flags().String("mode", "release", "gin mode: debug, release or test")
	rootCmd.Flags().String("static-path", "./web", "directory with the web client")
	rootCmd.Flags().String("config-env", "", "config environment, selects config/config.<env>.yaml")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Mode == "debug" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func run(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg, err := config.Load(cmd.Flags(), bootLog)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	projects := core.NewProjectStore(logger)
	registry := core.NewRegistry(logger)
	policy, err := core.NewPolicy(cfg.Backpressure, cfg.MaxDrops)
	if err != nil {
		return fmt.Errorf("backpressure: %w", err)
	}
	rooms := core.NewRooms(projects, registry, policy, logger)
	scroll := app.NewScrollController(projects, rooms, logger)

	o := &orch.Orchestrator{
		Projects:     projects,
		Registry:     registry,
		Rooms:        rooms,
		Scroll:       scroll,
		EnforceRoles: cfg.EnforceRoles,
		MaxMessage:   cfg.MaxMessage,
		Log:          logger,
	}

	if cfg.SeedDemo {
		demo := projects.Create("Demo Project", domain.DefaultText)
		logger.Info().Str("project", string(demo.ID)).Msg("seeded demo project")
	}

	r := router.SetupRouter(ctx, cfg, o, logger)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Prompter server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server exited gracefully")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
