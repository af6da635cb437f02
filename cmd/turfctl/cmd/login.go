package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/turfbook/turfbook/internal/onboarding"
	"github.com/turfbook/turfbook/internal/profile"
	"github.com/turfbook/turfbook/internal/router"
)

var errAborted = errors.New("login aborted")

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your phone number",
	Long: `Sign in with a phone number and the one-time code sent to it. New accounts are
asked for a name. A session that was left at the name step resumes there.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nav := router.NewNavigator(rt.logger, func(d router.Decision) {
			pterm.Debug.Printf("mounted %s (%s)\n", d.Flow, router.EntryScreen(d))
		})
		nav.Attach(rt.sessions)
		defer nav.Detach()

		if d := nav.Decision(); d.Flow != router.FlowOnboarding {
			pterm.Info.Printf("Already signed in as %s\n", describe(rt.sessions.State().Identity))
			return nil
		}

		flow := onboarding.New(onboarding.Deps{
			API:      rt.api,
			Phones:   rt.phones,
			Sessions: rt.sessions,
			Decoder:  rt.decoder,
			Logger:   rt.logger,
		}, rt.sessions.State())

		named, err := runLogin(cmd.Context(), flow, bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if named != "" {
			// The name step only logs in locally; store it on the account too.
			if err := profile.NewService(rt.api, rt.sessions).Rename(cmd.Context(), named); err != nil {
				rt.logger.Warn("name not saved on server", slog.Any("error", err))
				pterm.Warning.Println("Signed in, but your name could not be saved on the server. Run `turfctl rename` later.")
			}
		}

		pterm.Success.Printf("Signed in as %s\n", describe(rt.sessions.State().Identity))
		pterm.Info.Printf("Opening %s\n", router.EntryScreen(nav.Decision()))
		return nil
	},
}

// runLogin drives flow from line-oriented input until it is authenticated.
// It returns the name entered at the name step, if that step was shown.
func runLogin(ctx context.Context, flow *onboarding.Flow, in *bufio.Reader, out io.Writer) (string, error) {
	var named string
	for {
		var err error
		switch flow.Step() {
		case onboarding.StepAuthenticated:
			return named, nil

		case onboarding.StepPhoneEntry:
			line, rerr := prompt(in, out, "Phone number: ")
			if rerr != nil {
				return "", rerr
			}
			if err = flow.SubmitPhone(ctx, line); err == nil {
				fmt.Fprintf(out, "Code sent to %s\n", flow.Phone())
			}

		case onboarding.StepCodeSent:
			line, rerr := prompt(in, out, "Enter the 6-digit code (r = resend, c = change number): ")
			if rerr != nil {
				return "", rerr
			}
			switch strings.ToLower(line) {
			case "r":
				if err = flow.Resend(ctx); err == nil {
					fmt.Fprintf(out, "A new code was sent to %s\n", flow.Phone())
				}
			case "c":
				err = flow.ChangePhone()
			default:
				err = flow.SubmitCode(ctx, line)
			}

		case onboarding.StepNeedsName:
			line, rerr := prompt(in, out, "What should we call you? ")
			if rerr != nil {
				return "", rerr
			}
			if err = flow.SubmitName(ctx, line); err == nil {
				named = strings.TrimSpace(line)
			}

		default:
			return "", fmt.Errorf("unexpected onboarding step %s", flow.Step())
		}

		if err != nil {
			msg := flow.Message()
			if msg == "" {
				msg = err.Error()
			}
			fmt.Fprintln(out, msg)
		}
	}
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", errAborted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
