package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/useragents"
	"github.com/hupe1980/useragents/config"
	"github.com/hupe1980/useragents/logging"
)

// configEnv names the environment variable consulted when --config is unset.
const configEnv = "USERAGENTS_CONFIG"

type rootOptions struct {
	version    string
	configPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	cmd := &cobra.Command{
		Use:           "useragents",
		Short:         "Serve pluggable AI agents over HTTP",
		Long:          `useragents loads agent plugins at startup and serves them by name on POST /api/v1/agent.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(configEnv), "Path to a TOML or YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newAgentsCmd(opts),
		newCallCmd(),
	)

	return cmd
}

// Execute runs the root command until completion or SIGINT/SIGTERM.
func Execute(version string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := NewRootCmd(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	return nil
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// overrides carries flags that take precedence over the config file.
type overrides struct {
	pluginDir string
	address   string
	port      int
	plainHTTP bool
}

func (ov *overrides) bind(cmd *cobra.Command, withServer bool) {
	cmd.Flags().StringVar(&ov.pluginDir, "plugin-dir", "", "Directory containing the agent plugins")
	if withServer {
		cmd.Flags().StringVar(&ov.address, "address", "", "Address to listen on")
		cmd.Flags().IntVar(&ov.port, "port", 0, "Port to listen on")
		cmd.Flags().BoolVar(&ov.plainHTTP, "plain-http", false, "Serve HTTP even when TLS files are configured")
	}
}

func (ov *overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("plugin-dir") {
		cfg.Plugins.Dir = ov.pluginDir
	}
	if flags.Changed("address") {
		cfg.Server.Address = ov.address
	}
	if flags.Changed("port") {
		cfg.Server.Port = ov.port
	}
	if flags.Changed("plain-http") {
		cfg.Server.PlainHTTP = ov.plainHTTP
	}

	return cfg.Validate()
}

// newService loads the service with logs going to the command's stderr so
// stdout stays machine readable.
func newService(cmd *cobra.Command, cfg *config.Config) (*useragents.Service, error) {
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()

	return useragents.New(func(o *useragents.Options) {
		o.Config = cfg
		o.Logger = logging.NewLogger(lc)
	})
}
