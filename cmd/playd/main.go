// Package main provides the playd entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/mostafaalagamy/playd/internal/app/autoplay"
	"github.com/mostafaalagamy/playd/internal/app/player"
	"github.com/mostafaalagamy/playd/internal/domain/media"
	"github.com/mostafaalagamy/playd/internal/domain/segment"
	"github.com/mostafaalagamy/playd/internal/infra/config"
	"github.com/mostafaalagamy/playd/internal/infra/engine"
	"github.com/mostafaalagamy/playd/internal/infra/logger"
	"github.com/mostafaalagamy/playd/internal/infra/sponsorblock"
	"github.com/mostafaalagamy/playd/internal/infra/spotify"
)

var (
	app        = kingpin.New("playd", "headless playback-queue coordination daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/playd.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-categories command
	listCategoriesCmd = app.Command("list-categories", "List segment categories and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listCategoriesCmd.FullCommand() {
		printCategories()
		return
	}

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		os.Exit(1)
	}
}

// run executes the main daemon logic. A separate function ensures defers run
// even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	resolver, err := buildResolver(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to build resolver")
	}

	source := sponsorblock.New(sponsorblock.Config{BaseURL: cfg.Segments.BaseURL})

	clock := engine.NewClock(500 * time.Millisecond)
	defer clock.Close()

	playerCtx := player.NewContext(player.Options{
		Engine:   clock,
		Notifier: player.LogNotifier{},
		Resolver: resolver,
		Source:   source,
		Autoplay: player.NewAutoplaySettings(cfg),
		Skip:     player.NewSkipSettings(cfg),
		Repeat:   media.ParseRepeatMode(cfg.Playback.Repeat),
	})
	playerCtx.Start()
	defer playerCtx.Stop()

	zlog.Info().Msgf("playd started: repeat=%s autoplay=%t segments=%t",
		cfg.Playback.Repeat, cfg.Autoplay.IsEnabled(), cfg.Segments.IsEnabled())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("Received shutdown signal...")

	return nil
}

// buildResolver constructs the configured continuation resolver. Without
// resolver settings, autoplay resolutions report no continuation.
func buildResolver(ctx context.Context, cfg *config.Config) (autoplay.Resolver, error) {
	switch cfg.Autoplay.Resolver.Type {
	case "spotify":
		if len(cfg.Autoplay.Resolver.Settings) == 0 {
			zlog.Warn().Msg("No resolver settings configured; autoplay continuation disabled")
			return nopResolver{}, nil
		}
		return spotify.NewFromSettings(ctx, cfg.Autoplay.Resolver.Settings)
	default:
		return nil, errors.Newf("unknown resolver type %q", cfg.Autoplay.Resolver.Type)
	}
}

// nopResolver always reports that no continuation is available.
type nopResolver struct{}

func (nopResolver) Resolve(context.Context, string, string) (*autoplay.ResolveResult, error) {
	return &autoplay.ResolveResult{}, nil
}

// printCategories prints the known segment categories.
func printCategories() {
	fmt.Println("Segment categories:")
	fmt.Println()
	for _, cat := range segment.Categories {
		fmt.Printf("  %-16s %s\n", cat.String(), cat.DefaultLabel())
	}
	fmt.Println()
	fmt.Println("Policies per category (config: segments.categories): auto, manual, ignore")
}
