package main

import (
	"errors"
	"fmt"
	"os"

	"cabinrent/internal/models"
	"cabinrent/internal/service"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard accounts",
	}
	cmd.AddCommand(newUserCreateCmd(a))
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var (
		password string
		fullName string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a dashboard account",
		Long: `Create an admin or staff account.

The password can be given with --password or through CABINRENT_PASSWORD
so it does not end up in shell history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = envPassword()
			}
			if password == "" {
				return errors.New("password is required (--password or CABINRENT_PASSWORD)")
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			users := service.NewUserService(db, a.logger)
			user, err := users.Create(cmd.Context(), service.UserInput{
				Username: args[0],
				FullName: &fullName,
				Role:     &role,
				Password: &password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q (id %d)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password, at least 8 characters")
	cmd.Flags().StringVar(&fullName, "full-name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", models.RoleStaff, "Role: admin or staff")
	return cmd
}

func envPassword() string {
	return os.Getenv("CABINRENT_PASSWORD")
}
