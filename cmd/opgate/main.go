package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/connector/registry"
	"github.com/ajitpratap0/opgate/pkg/errors"
	"github.com/ajitpratap0/opgate/pkg/logger"
	"github.com/ajitpratap0/opgate/pkg/observability"
	"github.com/ajitpratap0/opgate/pkg/operations"
	"github.com/ajitpratap0/opgate/pkg/pool"

	// Import all available connectors to register them
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/gcs"
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/kafka"
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/memory"
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/mongodb"
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/postgresql"
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/s3"
	_ "github.com/ajitpratap0/opgate/pkg/connector/connectors/sqldb"
)

var version = "0.1.0"

// globalFlags are shared by every command that talks to a connector.
type globalFlags struct {
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps typed errors onto distinct process exit codes so scripts can
// tell a missing object from an unreachable system.
func exitCode(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeConfig, errors.ErrorTypeCapability:
		return 2
	case errors.ErrorTypeNotFound:
		return 3
	case errors.ErrorTypeConflict:
		return 4
	case errors.ErrorTypeTimeout, errors.ErrorTypeConnection, errors.ErrorTypePoolExhausted, errors.ErrorTypePoolUnavailable:
		return 5
	case errors.ErrorTypeAuthentication:
		return 6
	}
	return 1
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "opgate",
		Short: "opgate - connector operation gateway",
		Long: `opgate runs connector operations against external systems. Each call
borrows a connector from a pool, or creates one for the call when pooling
is disabled, and releases it when the operation completes.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to connector configuration YAML file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "opgate v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available connectors and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, info := range registry.ListConnectorInfo() {
				fmt.Fprintf(out, "  - %s (v%s): %s\n", info.Name, info.Version, info.Description)
				fmt.Fprintf(out, "      capabilities: %s\n", strings.Join(info.Capabilities, ", "))
			}
			return nil
		},
	})

	for _, cmd := range operationCommands(flags) {
		root.AddCommand(cmd)
	}
	return root
}

// loadConfig reads the YAML file and lets OPGATE_* environment variables
// override its settings, e.g. OPGATE_CONNECTION_PASSWORD.
func loadConfig(flags *globalFlags) (*config.BaseConfig, error) {
	if flags.configFile == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.LoadBaseConfigWithEnv(flags.configFile, "OPGATE")
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// session holds everything one command invocation needs.
type session struct {
	cfg      *config.BaseConfig
	facade   *operations.ConnectorFacade
	manager  *pool.Manager
	shutdown func(context.Context) error
}

func openSession(ctx context.Context, flags *globalFlags) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel, Encoding: "console", OutputPaths: []string{"stderr"}}); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, shutdown: func(context.Context) error { return nil }}
	if cfg.Observability.EnableTracing {
		s.shutdown, err = observability.InitTracing(observability.TracingConfig{
			ServiceName:    "opgate",
			ServiceVersion: version,
			SamplingRate:   1,
			Writer:         os.Stderr,
		})
		if err != nil {
			return nil, err
		}
	}

	s.manager = pool.NewManager(logger.Get())
	s.facade, err = operations.NewBuilder(s.manager, logger.Get()).Build(ctx, cfg)
	if err != nil {
		s.manager.Dispose()
		return nil, err
	}
	logger.Debug("facade ready", zap.Stringer("facade", s.facade))
	return s, nil
}

func (s *session) Close() {
	s.manager.Dispose()
	if err := s.shutdown(context.Background()); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync()
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v)
}
