package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/turfbook/turfbook/internal/apiclient"
	"github.com/turfbook/turfbook/internal/profile"
)

var renameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Change your display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		err := profile.NewService(rt.api, rt.sessions).Rename(cmd.Context(), name)
		switch {
		case errors.Is(err, profile.ErrNotAuthenticated):
			return fmt.Errorf("not signed in, run `turfctl login` first")
		case err != nil:
			if msg := apiclient.MessageOf(err); msg != "" {
				return fmt.Errorf("rename failed: %s", msg)
			}
			return fmt.Errorf("rename failed: %w", err)
		}
		pterm.Success.Printf("Name changed to %s\n", rt.sessions.State().Identity.DisplayName())
		return nil
	},
}
