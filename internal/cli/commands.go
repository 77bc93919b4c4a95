package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tillsession/internal/app"
	"github.com/aussiebroadwan/tillsession/pkg/identity"
	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
)

// ErrNotLoggedIn is returned by commands that need a session.
var ErrNotLoggedIn = errors.New("not logged in")

func newLoginCmd(opts *options) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and cache the session",
		Long: `Authenticate with the configured provider and cache the token.

The password is taken from --password, then TILL_PASSWORD. The fake
provider ignores it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("TILL_PASSWORD")
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.Session.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			return printIdentity(cmd.OutOrStdout(), opts.jsonOut, id, nil)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (TILL_PASSWORD)")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Session.Logout(cmd.Context())
			if !opts.jsonOut {
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			}
			return printIdentity(cmd.OutOrStdout(), true, a.Session.Current(), nil)
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		Long: `Show the identity resumed from the cache. When a token is cached its
expiry is reported too; expiry is advisory and nothing is revoked locally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var claims *jwtx.Claims
			tok, ok, err := a.Session.Token(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				if claims, err = jwtx.Decode(tok); err != nil {
					a.Logger().Warn("cached token does not decode", "error", err)
				}
			}

			return printIdentity(cmd.OutOrStdout(), opts.jsonOut, a.Session.Current(), claims)
		},
	}
}

func newTokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the cached bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			tok, ok, err := a.Session.Token(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotLoggedIn
			}

			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fake login server",
		Long: `Serve POST /v1/login backed by the fake provider, so the network
provider can be pointed at it. Tokens are signed according to
TILL_SIGNING_ALG and TILL_SIGNING_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.LogLevel == "warn" {
				opts.cfg.LogLevel = "info"
			}

			server, err := app.NewServer(opts.cfg, errWriter(cmd))
			if err != nil {
				return err
			}
			return server.Run()
		},
	}

	cmd.Flags().IntVar(&opts.cfg.Port, "port", opts.cfg.Port, "listen port (PORT)")
	return cmd
}

var (
	commit    = "unknown"
	buildTime = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "tillsession version %s\n", app.BuildVersion)
			fmt.Fprintf(w, "  commit:     %s\n", commit)
			fmt.Fprintf(w, "  built:      %s\n", buildTime)
			fmt.Fprintf(w, "  go version: %s\n", runtime.Version())
			return nil
		},
	}
}

type identityOutput struct {
	identity.Identity

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired,omitempty"`
}

// MarshalJSON flattens the embedded identity next to the expiry fields.
func (o identityOutput) MarshalJSON() ([]byte, error) {
	idJSON, err := json.Marshal(o.Identity)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(idJSON, &fields); err != nil {
		return nil, err
	}
	if o.ExpiresAt != nil {
		fields["expiresAt"] = o.ExpiresAt.UTC().Format(time.RFC3339)
		fields["expired"] = o.Expired
	}
	return json.Marshal(fields)
}

func printIdentity(w io.Writer, asJSON bool, id identity.Identity, claims *jwtx.Claims) error {
	out := identityOutput{Identity: id}
	if claims != nil && id.IsAuthenticated {
		if exp := claims.Expiry(); !exp.IsZero() {
			out.ExpiresAt = &exp
			out.Expired = claims.ValidateExpiry() != nil
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !id.IsAuthenticated {
		fmt.Fprintln(w, "anonymous")
		return nil
	}

	fmt.Fprintf(w, "role:    %s\n", id.Role)
	fmt.Fprintf(w, "user id: %s\n", id.UserID)
	if out.ExpiresAt != nil {
		state := "expires"
		if out.Expired {
			state = "expired"
		}
		fmt.Fprintf(w, "token:   %s %s\n", state, out.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}
