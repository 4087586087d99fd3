package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/energosales/portal/pkg/session"
)

func newRegisterCommand(a *app) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account (starts as guest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Register(cmd.Context(), name, email, password); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "registered, an administrator must assign your role")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.Authenticate(cmd.Context(), email, password); err != nil {
				return err
			}
			st := a.sess.State()
			fmt.Fprintf(a.out, "logged in as %s (%s)\n", st.Name, st.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity stored in the local token (not verified)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.sess.State()
			if !st.Authenticated {
				fmt.Fprintln(a.out, "not logged in")
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s> id=%d role=%s expires=%s\n",
				st.Name, st.Email, st.UserID, st.Role, st.ExpiresAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintf(a.out, "token: %s\n", a.store.Path())
			return nil
		},
	}
}

func newAccountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Fetch your account from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.guard(); err != nil {
				return err
			}
			acc, err := a.sess.Account(cmd.Context())
			if err != nil {
				return a.reportAuthFailure(err)
			}
			fmt.Fprintf(a.out, "id:    %d\nname:  %s\nemail: %s\nrole:  %s\n", acc.ID, acc.Name, acc.Email, acc.Role)
			return nil
		},
	}
}

func newUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts (administrators only)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all users",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.guard(session.RoleAdmin); err != nil {
					return err
				}
				users, err := a.sess.ListUsers(cmd.Context())
				if err != nil {
					return a.reportAuthFailure(err)
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
				for _, u := range users {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid user id %q", args[0])
				}
				if err := a.guard(session.RoleAdmin); err != nil {
					return err
				}
				if err := a.sess.DeleteUser(cmd.Context(), id); err != nil {
					return a.reportAuthFailure(err)
				}
				fmt.Fprintf(a.out, "user %d deleted\n", id)
				return nil
			},
		},
	)
	return cmd
}

func newLeadsCommand(a *app) *cobra.Command {
	var lead session.Lead

	submit := &cobra.Command{
		Use:   "submit",
		Short: "Send a call outcome to the spreadsheet (operators only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.guard(session.RoleOperator); err != nil {
				return err
			}
			if err := a.sess.SubmitLead(cmd.Context(), lead); err != nil {
				return a.reportAuthFailure(err)
			}
			fmt.Fprintln(a.out, "lead delivered")
			return nil
		},
	}
	submit.Flags().StringVar(&lead.FullName, "fio", "", "client full name")
	submit.Flags().StringVar(&lead.Phone, "phone", "", "client phone")
	submit.Flags().StringVar(&lead.BirthDate, "birth-date", "", "client date of birth")
	submit.Flags().StringVar(&lead.Region, "region", "", "client region")
	submit.Flags().StringVar(&lead.Document, "document", "", "client document number")
	submit.Flags().StringVar(&lead.Message, "message", "", "call outcome")
	submit.Flags().StringVar(&lead.Telephony, "telephony", "", "line used for the call: Whatsapp or Microsip")
	for _, f := range []string{"fio", "phone", "birth-date", "region", "document", "message", "telephony"} {
		_ = submit.MarkFlagRequired(f)
	}

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Apps panel submissions",
	}
	cmd.AddCommand(submit)
	return cmd
}
