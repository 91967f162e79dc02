package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Manage accounts"}

	var name, email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account, or report the existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := a.Directory.EnsureAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s <%s>\n", u.ID, u.Email)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "Administrator", "display name")
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "at least 6 characters")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	users := &cobra.Command{
		Use:   "users",
		Short: "List accounts with their role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.Directory.List())
		},
	}

	cmd.AddCommand(create, users)
	return cmd
}
