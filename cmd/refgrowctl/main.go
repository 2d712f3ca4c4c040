package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "refgrow/internal/cli"
	"refgrow/internal/config"
	"refgrow/internal/referral"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

func main() {
	if msg := dotEnvWarning(config.LoadDotEnv()); msg != "" {
		printWarn(msg)
	}
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "refgrowctl",
		Short:        "Admin client for the referral bot",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "admin API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newTopCmd(&apiBase),
		newListCmd(&apiBase),
		newShowCmd(&apiBase),
		newLinkCmd(&apiBase, cfg.BotUsername),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// session loads saved credentials; a base URL saved at login wins unless
// --api was given explicitly.
func session(cmd *cobra.Command, apiBase *string) (*cl.Client, cl.Credentials, error) {
	creds, err := cl.LoadCredentials()
	if err != nil {
		return nil, cl.Credentials{}, fmt.Errorf("login required: %w", err)
	}
	base := *apiBase
	if creds.BaseURL != "" && !cmd.Flags().Changed("api") {
		base = creds.BaseURL
	}
	return newClient(&base), creds, nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save admin credentials after checking them against the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := promptRequired("Admin user")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			creds := cl.Credentials{BaseURL: *apiBase, User: user, Password: password}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := newClient(apiBase).Leaderboard(ctx, creds, 1); err != nil {
				if errors.Is(err, cl.ErrUnauthorized) {
					return errors.New("invalid admin credentials")
				}
				return err
			}
			if err := cl.SaveCredentials(creds); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget saved admin credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearCredentials(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newTopCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the referral leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, creds, err := session(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := client.Leaderboard(ctx, creds, limit)
			if err != nil {
				return err
			}
			renderLeaderboard(rows, fmt.Sprintf("Top %d", len(rows)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", referral.DefaultTopN, "rows to show (max 100)")
	return cmd
}

func newListCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every participant with their referral link",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, creds, err := session(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			all, err := client.Participants(ctx, creds)
			if err != nil {
				return err
			}
			renderParticipants(all)
			return nil
		},
	}
}

func newShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <participant-id>",
		Short: "Show one participant's profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Participant ID")
			if err != nil {
				return err
			}
			client, creds, err := session(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			p, err := client.Participant(ctx, creds, id)
			if err != nil {
				return err
			}
			renderProfile(p)
			return nil
		},
	}
}

func newLinkCmd(apiBase *string, botUsername string) *cobra.Command {
	var qr bool
	cmd := &cobra.Command{
		Use:   "link <participant-id>",
		Short: "Print a participant's referral link",
		Long:  "Prints the referral link. With BOT_USERNAME set the link is built locally; otherwise it is fetched from the admin API.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := int64FromArgOrPrompt(args, 0, "Participant ID")
			if err != nil {
				return err
			}
			link := ""
			if botUsername != "" {
				link = referral.EncodeLink(id, botUsername)
			} else {
				client, creds, err := session(cmd, apiBase)
				if err != nil {
					return fmt.Errorf("set BOT_USERNAME or %w", err)
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				p, err := client.Participant(ctx, creds, id)
				if err != nil {
					return err
				}
				link = p.Link
			}
			accent.Println(link)
			if qr {
				qrterminal.GenerateHalfBlock(link, qrterminal.L, os.Stdout)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&qr, "qr", false, "also render the link as a terminal QR code")
	return cmd
}

func int64FromArgOrPrompt(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}
