// Package cli contains the tillsession commands.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tillsession/internal/app"
)

// options are the global flags, layered over the environment config.
type options struct {
	cfg     app.Config
	verbose bool
	jsonOut bool
}

// NewRootCmd builds the command tree. Configuration is read from the
// environment when the command runs, flags win over environment values.
func NewRootCmd() *cobra.Command {
	opts := &options{cfg: app.LoadConfig()}

	root := &cobra.Command{
		Use:   "tillsession",
		Short: "Till session manager",
		Long: `tillsession logs a till operator in against a login server, keeps the
resulting token in a local cache and reports who is logged in.

Example usage:
  tillsession login cashier@test.com     # Log in with the fake provider
  tillsession whoami                     # Show the current identity
  tillsession token                      # Print the raw bearer token
  tillsession logout                     # Forget the session
  tillsession serve                      # Run the fake login server`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				opts.cfg.LogLevel = "debug"
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfg.Provider, "provider", opts.cfg.Provider, "credential provider: fake or network (TILL_PROVIDER)")
	flags.StringVar(&opts.cfg.BaseURL, "base-url", opts.cfg.BaseURL, "login server base URL (TILL_BASE_URL)")
	flags.StringVar(&opts.cfg.Cache, "cache", opts.cfg.Cache, "token cache: memory, sqlite or redis (TILL_CACHE)")
	flags.StringVar(&opts.cfg.CacheFile, "cache-file", opts.cfg.CacheFile, "sqlite cache file (TILL_CACHE_FILE)")
	flags.StringVar(&opts.cfg.RedisAddr, "redis-addr", opts.cfg.RedisAddr, "redis address (TILL_REDIS_ADDR)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")
	flags.BoolVar(&opts.jsonOut, "json", false, "output as JSON")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newTokenCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)

	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// openApp builds the client application with logs on the command's stderr.
func openApp(cmd *cobra.Command, opts *options) (*app.Application, error) {
	return app.New(cmd.Context(), opts.cfg, errWriter(cmd))
}

func errWriter(cmd *cobra.Command) io.Writer { return cmd.ErrOrStderr() }
