package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"tidalsync/internal/models"
	"tidalsync/internal/repositories"
	"tidalsync/internal/services"
	"tidalsync/internal/shared"
	"tidalsync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer

	// source and downloader override the config-built services, used in tests.
	source     services.PlaylistSource
	downloader services.Downloader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	Source     services.PlaylistSource
	Downloader services.Downloader
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		source:     opts.Source,
		downloader: opts.Downloader,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, fetchCommand, scanCommand, dedupCommand, planCommand, syncCommand, diffCommand, dirsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the config file named by the --config flag, falling back
// to defaults when the file does not exist.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")

	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", path)
		return shared.DefaultConfig(), nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// openDatabase opens and configures the catalog database.
func (r *Runner) openDatabase(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	return db, nil
}

// workers bundles the repositories and pipeline stages built for one command.
type workers struct {
	playlists      models.PlaylistRepository
	tracks         models.TrackRepository
	playlistTracks models.PlaylistTrackRepository
	source         services.PlaylistSource

	fetcher      *tasks.RemoteFetcher
	scanner      *tasks.LibraryScanner
	dedup        *tasks.Deduplicator
	engine       *tasks.DecisionEngine
	executor     *tasks.Executor
	orchestrator *tasks.SyncOrchestrator
}

// buildWorkers wires the full pipeline from config. The downloader is
// optional; without one the executor treats download steps as satisfied,
// which keeps planning-only runs working.
func (r *Runner) buildWorkers(config *shared.Config, db *sql.DB, dryRun bool) (*workers, error) {
	playlists := repositories.NewPlaylistRepository(db)
	tracks := repositories.NewTrackRepository(db)
	playlistTracks := repositories.NewPlaylistTrackRepository(db)

	source := r.source
	if source == nil {
		source = services.NewTidalClient(services.TidalClientOpts{
			ClientID:     config.Tidal.ClientID,
			ClientSecret: config.Tidal.ClientSecret,
			BaseURL:      config.Tidal.BaseURL,
			TokenURL:     config.Tidal.TokenURL,
			RateLimit:    config.Tidal.RateLimit,
		})
	}

	downloader := r.downloader
	if downloader == nil && config.Downloader.Command != "" {
		dl, err := services.NewExecDownloader(config.Downloader.Command, config.Downloader.Args)
		if err != nil {
			return nil, err
		}
		downloader = dl
	}

	strategy, err := tasks.ResolveStrategy(config.Sync.DedupStrategy)
	if err != nil {
		return nil, err
	}

	root := config.PlaylistsRoot()
	format := config.Library.FileFormat
	if format == "" {
		format = "mp3"
	}

	fetcher := tasks.NewRemoteFetcher(source, playlists, tracks, playlistTracks, r.logger)
	scanner := tasks.NewLibraryScanner(root, playlists, tracks, playlistTracks, r.logger)
	dedup := tasks.NewDeduplicator(strategy, playlists, playlistTracks, r.logger)
	engine := tasks.NewDecisionEngine(root, format, playlists, tracks, playlistTracks, r.logger)
	executor := tasks.NewExecutor(tasks.ExecutorOpts{
		PlaylistsRoot:  root,
		DryRun:         dryRun,
		Downloader:     downloader,
		Playlists:      playlists,
		Tracks:         tracks,
		PlaylistTracks: playlistTracks,
		Logger:         r.logger,
	})

	return &workers{
		playlists:      playlists,
		tracks:         tracks,
		playlistTracks: playlistTracks,
		source:         source,
		fetcher:        fetcher,
		scanner:        scanner,
		dedup:          dedup,
		engine:         engine,
		executor:       executor,
		orchestrator:   tasks.NewSyncOrchestrator(fetcher, scanner, dedup, engine, executor, r.logger),
	}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeSummary prints a stage summary as aligned plain text.
func (r *Runner) writeSummary(summary tasks.Summary) {
	r.writePlain("[%s]\n", summary.Component)
	keys := make([]string, 0, len(summary.Counts))
	for k := range summary.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.writePlain("  %s: %d\n", k, summary.Counts[k])
	}
	for _, e := range summary.Errors {
		r.writePlain("  error: %s\n", e)
	}
}
