package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fefal-etl/internal/audit"
	"github.com/fefal-etl/internal/config"
	"github.com/fefal-etl/internal/db"
	"github.com/fefal-etl/internal/logging"
	"github.com/fefal-etl/internal/registry"
	"github.com/fefal-etl/internal/store"
)

var (
	configPath string
	debugMode  bool

	// Loaded once by the root command before any subcommand runs
	cfg *config.Config
	log *zerolog.Logger
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "surveyclean",
		Short:         "Annual survey cleaning and entity resolution",
		Long:          `Cleans annual survey spreadsheets, resolves entity names against the registry and splits the rows into final, duplicate and unmatched partitions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if debugMode {
				loaded.Logging.Level = "debug"
			}
			cfg = loaded
			logger := logging.Configure(cfg.Logging)
			log = &logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./surveyclean.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug output")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createConfigCmd())
	rootCmd.AddCommand(createMappingsCmd())
	rootCmd.AddCommand(createGroupsCmd())
	rootCmd.AddCommand(createRegistryCmd())
	rootCmd.AddCommand(createDBCmd())

	return rootCmd
}

// resources are the database-backed collaborators of a command
type resources struct {
	registry *registry.SQLSource
	store    store.MappingStore
	audit    audit.Recorder
	conns    []*db.Connection
}

// openResources connects the registry when needed, the mapping store and
// the review trail. Without a store DSN both live in memory for the process.
func openResources(ctx context.Context, needRegistry bool) (*resources, error) {
	r := &resources{}
	byDSN := make(map[string]*db.Connection)
	open := func(dsn string) (*db.Connection, error) {
		if conn, ok := byDSN[dsn]; ok {
			return conn, nil
		}
		conn, err := db.Open(dsn)
		if err != nil {
			return nil, err
		}
		byDSN[dsn] = conn
		r.conns = append(r.conns, conn)
		return conn, nil
	}

	if needRegistry {
		if cfg.Registry.DSN == "" {
			return nil, fmt.Errorf("registry.dsn is not configured (set it in the config file, %s_REGISTRY_DSN or DATABASE_URL)", config.EnvPrefix)
		}
		conn, err := open(cfg.Registry.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to registry: %w", err)
		}
		r.registry = registry.NewSQLSource(conn.DB, cfg.Registry.Query)
	}

	if cfg.Store.DSN == "" {
		log.Warn().Msg("no mapping store configured, mappings are kept in memory")
		r.store = store.NewMemoryStore()
		r.audit = audit.NewMemoryTracker()
		return r, nil
	}
	conn, err := open(cfg.Store.DSN)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to connect to mapping store: %w", err)
	}
	sqlStore := store.NewSQLStore(conn.DB)
	if err := sqlStore.Migrate(ctx); err != nil {
		r.Close()
		return nil, err
	}
	tracker := audit.NewTracker(conn.DB)
	tracker.SetDebug(debugMode)
	if err := tracker.Migrate(ctx); err != nil {
		r.Close()
		return nil, err
	}
	r.store = sqlStore
	r.audit = tracker
	return r, nil
}

// Close closes every connection opened for the command
func (r *resources) Close() {
	for _, conn := range r.conns {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}

func createDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the mapping store and review trail tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.DSN == "" {
				return fmt.Errorf("store.dsn is not configured")
			}
			res, err := openResources(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer res.Close()
			log.Info().Msg("mapping store migrated")
			return nil
		},
	})
	return dbCmd
}
