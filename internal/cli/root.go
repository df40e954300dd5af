package cli

import (
	"fmt"
	"io"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/ChaseHampton/memorease/internal/logging"
	"github.com/ChaseHampton/memorease/internal/processor"
	"github.com/ChaseHampton/memorease/internal/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what every command needs once flags and config are resolved.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	memory     bool
	fixture    string

	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
	store     db.LocalStore
	registry  *prometheus.Registry
}

// newRootCommand builds the command tree. Callers run teardown on the returned
// app once Execute returns, whatever the outcome.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "memorease",
		Short: "Offline mirror of the memorial park's deceased records",
		Long: `memorease keeps a local copy of the park's deceased records so the lot map
works without a connection. Run "memorease sync" to refresh it from the park API.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&a.dbPath, "db", "", "path to the local SQLite database")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.memory, "memory", false, "keep records in memory only")
	flags.StringVar(&a.fixture, "fixture", "", "read the remote snapshot from a JSON file instead of the API")

	root.AddCommand(
		newInitCommand(a),
		newSyncCommand(a),
		newListCommand(a),
		newLotsCommand(a),
		newServeCommand(a),
	)
	return root, a
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root, a := newRootCommand()
	err := root.Execute()
	if cerr := a.teardown(); cerr != nil && err == nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", cerr)
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	v, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		v.Set("db.path", a.dbPath)
	}
	if a.logLevel != "" {
		v.Set("log.level", a.logLevel)
	}
	if a.fixture != "" {
		v.Set("remote.kind", "fixture")
		v.Set("remote.fixture_path", a.fixture)
	}

	a.cfg = config.NewConfig(v)
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.logger, a.logCloser = logging.New(a.cfg.LogConfig, cmd.ErrOrStderr())

	if a.memory {
		a.store = db.NewMemoryStore()
	} else {
		dbcfg := config.NewDbConfig(v)
		store, err := db.Open(dbcfg)
		if err != nil {
			return err
		}
		a.logger.Debug().Str("path", store.Path()).Msg("opened local store")
		a.store = store
	}
	if err := a.store.Initialize(cmd.Context()); err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
	return err
}

// newSyncer wires the configured source to the store. The returned func
// releases the source's connections.
func (a *app) newSyncer() (*processor.Syncer, func(), error) {
	src, err := source.New(a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {}
	if c, ok := src.(io.Closer); ok {
		cleanup = func() { c.Close() }
	}
	syncer := processor.NewSyncer(src, a.store, a.cfg, a.logger,
		processor.WithMetrics(processor.NewMetrics(a.registry)))
	return syncer, cleanup, nil
}
