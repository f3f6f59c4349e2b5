/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Anupam-Kumar2505/djsce-resources/config"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/db"
	"github.com/Anupam-Kumar2505/djsce-resources/internal/store"
	"github.com/Anupam-Kumar2505/djsce-resources/types"
	"github.com/spf13/cobra"
)

// adminCmd represents the admin command.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

// adminPromoteCmd grants the admin role to an existing account. This is the
// sanctioned path to additional admins after the bootstrap one.
var adminPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant the admin role to an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.ToLower(strings.TrimSpace(args[0]))
		if username == "" {
			return errors.New("username is required")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		userRepo := store.NewUserRepository(dbConn)
		user, err := userRepo.GetByUsername(cmd.Context(), username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no such user: %s", username)
			}
			return err
		}
		if user.IsAdmin() {
			fmt.Printf("%s is already an admin\n", username)
			return nil
		}

		user.Role = types.RoleAdmin
		if _, err := userRepo.Update(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Printf("%s promoted to admin\n", username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminPromoteCmd)
}
