package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api"
	"github.com/rendini/mashup/api/backendimpl"
	"github.com/rendini/mashup/api/fanout"
	"github.com/rendini/mashup/config"
	"github.com/rendini/mashup/log"
	"github.com/rendini/mashup/mcp"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags every command shares
type rootOptions struct {
	configPath string
	backends   backendsFlag
	timeout    time.Duration
	debug      bool
	json       bool
}

// NewRootCommand builds the full rendini command tree
func NewRootCommand() *cobra.Command {
	o := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "rendini",
		Short:         "Aggregate template-rendering backends behind one gateway",
		SilenceErrors: true,
		SilenceUsage:  true,
		Long: `rendini fans requests out to a set of template-rendering backends and
merges what they answer: render targets, rendered pages, a sitemap and a
content index.

Run "rendini serve" for the GraphQL/HTTP gateway, or query the backends
directly with the other commands.`,
	}

	rootCmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Config file (default ./rendini.yaml if present)")
	rootCmd.PersistentFlags().Var(&o.backends, "backend-url", "Backend as name=url; repeat to define several (replaces configured backends)")
	rootCmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 0, "Per-backend call timeout (default from config, 5s)")
	rootCmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&o.json, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newServeCmd(o),
		newBackendsCmd(o),
		newTargetsCmd(o),
		newRenderCmd(o),
		newSitemapCmd(o),
		newIndexCmd(o),
		mcp.Command(func(cmd *cobra.Command) (mcp.Gateway, error) {
			gw, _, err := o.gateway(nil)
			return gw, err
		}),
		newVersionCmd(),
	)
	return rootCmd
}

// Run executes the main CLI functionality
func Run() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rendini version %s\n", api.Version)
			if api.VersionCommit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", api.VersionCommit)
			}
		},
	}
}

// loadConfig reads the configuration and applies command line overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if len(o.backends.Backends) > 0 {
		cfg.Backends = o.backends.Backends
	}
	if o.timeout > 0 {
		cfg.Backend.Timeout = o.timeout
	}
	if o.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Debug {
		log.SetOutput(os.Stderr, true)
	}
	return cfg, nil
}

// gateway builds a Gateway from the configuration. observer may be nil.
func (o *rootOptions) gateway(observer fanout.Observer) (*api.Gateway, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, failure.Wrap(err)
	}

	executor := &fanout.Executor{Timeout: cfg.Backend.Timeout}
	if observer != nil {
		executor.Observer = observer
	}

	gw := api.NewGateway(reg, backendimpl.New(api.UserAgent()), api.WithExecutor(executor))
	return gw, cfg, nil
}
