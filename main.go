package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/catalog"
	"github.com/backsoul/spotit/pkg/config"
	"github.com/backsoul/spotit/pkg/logging"
	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/persistence"
	"github.com/backsoul/spotit/pkg/quiz"
	"github.com/backsoul/spotit/pkg/redis"
	"github.com/backsoul/spotit/pkg/services"
)

// Sesiones sin actividad durante este tiempo salen de memoria; su snapshot
// sigue guardado.
const (
	sessionIdleTimeout = 30 * time.Minute
	pruneInterval      = 5 * time.Minute
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "spotit",
	Short: "ERKENNEN. STOPPEN. quiz server",
	Long: `Servidor del test ERKENNEN. STOPPEN.: catálogo de preguntas, sesiones del
test con resultado y tarjeta para compartir, widget embebible y proxy del chatbot.

Sin subcomando arranca el servidor HTTP.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Question catalog tools",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a question catalog (the bundled one without a file)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(serveCmd, catalogCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting ERKENNEN. STOPPEN. server",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Driver))

	snapshots, err := openSnapshotStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	if cfg.Chat.APIKey == "" {
		logger.Warn("DEEPSEEK_API_KEY not set, the chatbot answers with the fallback message")
	}
	a := newApp(cfg, catalogSource(cfg.Catalog), snapshots, services.NewOpenAICompleter(cfg.Chat.APIKey, cfg.Chat.BaseURL), logger)
	a.loadInitialQuestions(ctx)

	go a.hub.Run(ctx)
	go a.pruneSessions(ctx)

	server := &fasthttp.Server{
		Handler:      a.requestHandler,
		Name:         "SpotIt-FastHTTP/1.0",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("public_url", cfg.HTTP.PublicURL),
			zap.String("health", cfg.HTTP.PublicURL+"/api/health"),
			zap.String("widget", cfg.HTTP.PublicURL+"/widget"))
		errc <- server.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func catalogSource(cfg config.CatalogConfig) catalog.Source {
	if cfg.Path == "" {
		return catalog.Bundled()
	}
	return catalog.File(cfg.Path)
}

func openSnapshotStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (persistence.SnapshotStore, error) {
	switch cfg.Driver {
	case config.StorageRedis:
		store, err := redis.NewSnapshotStore(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SnapshotTTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageSQLite, config.StoragePostgres:
		store, err := persistence.OpenSQL(ctx, persistence.Driver(cfg.Driver), cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening %s snapshot store: %w", cfg.Driver, err)
		}
		logger.Info("snapshot store ready", zap.String("driver", cfg.Driver))
		return store, nil
	case config.StorageMemory:
		logger.Warn("snapshots kept in memory, progress is lost on restart")
		return persistence.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	source := catalog.Bundled()
	name := "bundled catalog"
	if len(args) == 1 {
		source = catalog.File(args[0])
		name = args[0]
	}

	data, err := source(cmd.Context())
	if err != nil {
		return err
	}
	questions, err := catalog.Parse(data)
	if err != nil {
		var ferr *catalog.CatalogFormatError
		if errors.As(err, &ferr) {
			for _, p := range ferr.Problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
			}
		}
		return fmt.Errorf("%s is invalid: %w", name, err)
	}

	s := catalog.Summarize(questions)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d questions, %d scored, max score %d\n", name, s.Total, s.Scored, quiz.MaxScore(questions))
	fmt.Fprintf(out, "  spot: %d (level 1: %d, level 2: %d, level 3: %d)\n",
		s.ByPhase[models.PhaseSpot], s.ByLevel[1], s.ByLevel[2], s.ByLevel[3])
	fmt.Fprintf(out, "  end: %d\n", s.ByPhase[models.PhaseEnd])

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %s: %d\n", t, s.ByType[models.QuestionType(t)])
	}
	return nil
}
