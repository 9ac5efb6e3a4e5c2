package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/config"
	pgInfra "github.com/fastygo/dashboard/internal/infrastructure/postgres"
	"github.com/fastygo/dashboard/repository"
	"github.com/fastygo/dashboard/repository/postgres"
	profileUC "github.com/fastygo/dashboard/usecase/profile"
)

// cliActor is recorded as the actor of role changes made from the shell.
const cliActor = "dashctl"

func usersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect users and change their roles",
	}
	cmd.AddCommand(usersListCmd(e), usersSetRoleCmd(e))
	return cmd
}

func usersListCmd(e *env) *cobra.Command {
	var filter repository.UserFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, closeFn, err := openProfiles(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer closeFn()

			users, err := uc.ListUsers(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tROLE\tACTIVE\tLAST LOGIN")
			for _, u := range users {
				lastLogin := "-"
				if u.LastLogin != nil {
					lastLogin = u.LastLogin.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.Email, u.Role, u.IsActive, lastLogin)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Role, "role", "", "Only users with this role")
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Match email or name")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum rows")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Rows to skip")

	return cmd
}

func usersSetRoleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role EMAIL ROLE",
		Short: "Change the stored role of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, closeFn, err := openProfiles(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := uc.SetRole(cmd.Context(), cliActor, args[0], domain.Role(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
			return nil
		},
	}
}

func openProfiles(ctx context.Context, e *env) (*profileUC.UseCase, func(), error) {
	if e.cfg.Database.Driver != config.DriverPostgres {
		return nil, nil, fmt.Errorf("user management needs the %s driver, got %q", config.DriverPostgres, e.cfg.Database.Driver)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := pgInfra.NewPool(ctx, e.cfg.Database, e.logger)
	if err != nil {
		return nil, nil, err
	}

	uc := profileUC.New(postgres.NewUserRepository(pool), nil, e.logger)
	return uc, func() { pgInfra.Close(pool, e.logger) }, nil
}
