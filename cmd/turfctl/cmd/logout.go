package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rt.sessions.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("signed out, but the stored session could not be fully removed: %w", err)
		}
		pterm.Success.Println("Signed out")
		return nil
	},
}
