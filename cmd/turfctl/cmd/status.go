package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/turfbook/turfbook/internal/identity"
	"github.com/turfbook/turfbook/internal/router"
	"github.com/turfbook/turfbook/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the current session and the home it routes to",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := rt.sessions.State()

		pterm.DefaultSection.Println("Session")
		if !state.Authenticated() {
			pterm.Info.Println("Not signed in. Run `turfctl login`.")
		} else if err := pterm.DefaultTable.WithHasHeader().WithData(sessionRows(state)).Render(); err != nil {
			return err
		}

		d := router.Select(state)
		pterm.DefaultSection.Println("Routing")
		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"FLOW", "RULE", "ENTRY SCREEN"},
			{d.Flow.String(), d.Rule.String(), string(router.EntryScreen(d))},
		}).Render()
	},
}

func sessionRows(state session.State) pterm.TableData {
	id := state.Identity
	name := id.DisplayName()
	if name == "" {
		name = "(not set)"
	}
	rows := pterm.TableData{
		{"FIELD", "VALUE"},
		{"Account", id.ID},
		{"Phone", id.Phone},
		{"Name", name},
		{"Role", string(id.Role)},
		{"New user", strconv.FormatBool(id.IsNewUser)},
		{"Admin", strconv.FormatBool(state.IsAdmin())},
		{"Manager", strconv.FormatBool(state.IsManager())},
	}
	if exp := rt.decoder.Decode(id.Token).ExpiresAt; !exp.IsZero() {
		rows = append(rows, []string{"Token expires", exp.Local().Format(time.RFC1123)})
	}
	return rows
}

func describe(id *identity.Identity) string {
	if id == nil {
		return "nobody"
	}
	if name := id.DisplayName(); name != "" {
		return fmt.Sprintf("%s (%s)", name, id.Phone)
	}
	return id.Phone
}
