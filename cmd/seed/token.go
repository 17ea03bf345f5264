package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/identity"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for AUTH_MODE=jwt",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, _ := cmd.Flags().GetString("id")
			rawRole, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is required")
			}

			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("--id: %w", err)
			}
			role, err := appointment.ParseRole(rawRole)
			if err != nil {
				return fmt.Errorf("--role: %w", err)
			}

			token, err := identity.NewJWTAuthenticator([]byte(secret)).Issue(appointment.Actor{ID: id, Role: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("id", "", "actor id (uuid)")
	cmd.Flags().String("role", "Patient", "actor role")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
