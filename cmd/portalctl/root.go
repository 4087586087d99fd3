package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/energosales/portal/pkg/session"
)

const defaultAPIURL = "http://localhost:10000"

// app is shared by every subcommand once the root's PersistentPreRunE ran.
type app struct {
	out       io.Writer
	apiURL    string
	tokenFile string
	client    *session.Client
	store     *session.FileStore
	sess      *session.Session
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}

	cmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operate the EnergoSales portal from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	cmd.SetOut(out)

	apiURL := os.Getenv("PORTAL_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	cmd.PersistentFlags().StringVar(&a.apiURL, "api", apiURL, "portal API base URL (env PORTAL_API_URL)")
	cmd.PersistentFlags().StringVar(&a.tokenFile, "token-file", "", "where the session token is kept (default <config dir>/portal/token)")

	cmd.AddCommand(
		newRegisterCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newAccountCommand(a),
		newUsersCommand(a),
		newLeadsCommand(a),
	)
	return cmd
}

func (a *app) open() error {
	path := a.tokenFile
	if path == "" {
		var err error
		if path, err = session.DefaultTokenPath(); err != nil {
			return err
		}
	}
	a.client = session.NewClient(a.apiURL, nil)
	a.store = session.NewFileStore(path)
	a.sess = session.New(a.client, a.store)
	return a.sess.Hydrate()
}

// guard runs the session guard and turns a redirect into an error.
func (a *app) guard(roles ...session.Role) error {
	switch d := a.sess.Guard(roles...); d {
	case session.Allow:
		return nil
	case session.RedirectLogin:
		return fmt.Errorf("%s: not logged in, run `portalctl login`", d)
	default:
		return fmt.Errorf("%s: your role is %s", d, a.sess.State().Role)
	}
}

// reportAuthFailure explains a forced logout after the server rejected the token.
func (a *app) reportAuthFailure(err error) error {
	if !a.sess.State().Authenticated {
		return fmt.Errorf("%w (session cleared, log in again)", err)
	}
	return err
}
