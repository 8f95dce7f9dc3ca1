package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/relay"
)

// errNotSent makes the command exit non-zero when the relay refused.
var errNotSent = errors.New("message not sent")

func newSubmitCmd() *cobra.Command {
	var p contact.Payload
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send one message through the contact relay",
		Long: `submit runs a single contact form submission through the configured relay
and prints the status the form would show.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			sender, err := relay.New(cfg.Relay, zap.NewNop())
			if err != nil {
				return err
			}
			form := contact.NewForm("cli", sender)
			defer form.Close()

			view, err := form.Submit(cmd.Context(), p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", view.Phase)
			fmt.Fprintf(out, "message: %s\n", view.Message)
			keys := make([]string, 0, len(view.FieldErrors))
			for k := range view.FieldErrors {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %s\n", k, view.FieldErrors[k])
			}
			if view.Phase != contact.Succeeded {
				return errNotSent
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "Sender name")
	cmd.Flags().StringVar(&p.Email, "email", "", "Sender email")
	cmd.Flags().StringVar(&p.Message, "message", "", "Message body")
	return cmd
}
