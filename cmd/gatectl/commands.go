package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"spekulus/internal/audit"
	"spekulus/internal/gate"
	"spekulus/internal/models"
	"spekulus/internal/repository"
	"spekulus/internal/service"
	"spekulus/internal/validation"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const commandTimeout = 30 * time.Second

func newAuditWriter(db *gorm.DB) *audit.Writer {
	return audit.NewWriter(repository.NewAuditRepository(db))
}

type rootOptions struct {
	actor      string
	jsonOutput bool
	env        *cliEnv
}

func newRootCmd(open func() (*cliEnv, error)) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gatectl <command>",
		Short:         "Operate the site maintenance gate",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.env != nil {
				return nil
			}
			env, err := open()
			if err != nil {
				return err
			}
			opts.env = env
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.actor, "actor", defaultActor(), "actor recorded in the audit log")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(newMaintenanceCmd(opts))
	root.AddCommand(newPagesCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newAdminCmd(opts))
	return root
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, commandTimeout)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printStatus(w io.Writer, opts *rootOptions, status *service.MaintenanceStatus) error {
	if opts.jsonOutput {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "State:    %s\n", status.State)
	if status.EndsAt != nil {
		fmt.Fprintf(w, "Ends at:  %s (%ds remaining)\n", status.EndsAt.UTC().Format(time.RFC3339), status.RemainingSeconds)
	} else if status.IsActive {
		fmt.Fprintln(w, "Ends at:  until turned off")
	}
	fmt.Fprintf(w, "Message:  %s\n", status.Message)
	return nil
}

func newMaintenanceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "maintenance",
		Aliases: []string{"mt"},
		Short:   "Show or change site-wide maintenance",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the effective maintenance state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			status, err := opts.env.maintenance.Status(ctx)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), opts, status)
		},
	}

	var duration string
	onCmd := &cobra.Command{
		Use:   "on",
		Short: "Put the whole site into maintenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			option, err := service.ParseDuration(duration)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			status, err := opts.env.maintenance.Activate(ctx, opts.actor, option)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), opts, status)
		},
	}
	onCmd.Flags().StringVarP(&duration, "duration", "d", string(service.DurationIndefinite), "window length: indefinite, 15m, 1h, 4h or 24h")

	offCmd := &cobra.Command{
		Use:   "off",
		Short: "Return the site to live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			status, err := opts.env.maintenance.Deactivate(ctx, opts.actor)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), opts, status)
		},
	}

	messageCmd := &cobra.Command{
		Use:   "message <text>",
		Short: "Set the message shown on the maintenance page (empty restores the default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := ""
			if len(args) == 1 {
				message = args[0]
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			status, err := opts.env.maintenance.UpdateMessage(ctx, opts.actor, message)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), opts, status)
		},
	}

	cmd.AddCommand(statusCmd, onCmd, offCmd, messageCmd)
	return cmd
}

func newPagesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List or change per-page status",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List known pages and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			pages, err := opts.env.maintenance.ListPages(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(w, pages)
			}
			for _, p := range pages {
				marker := ""
				if p.Dynamic {
					marker = " (prefix)"
				}
				fmt.Fprintf(w, "%-12s %s%s  %s\n", p.Status, p.Path, marker, p.Title)
			}
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <path> <active|maintenance|hidden>",
		Short: "Change the status of one page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			row, err := opts.env.maintenance.SetPageStatus(ctx, opts.actor, args[0], args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(w, row)
			}
			fmt.Fprintf(w, "%s is now %s\n", row.Path, row.Status)
			return nil
		},
	}

	cmd.AddCommand(listCmd, setCmd)
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Show what a visitor requesting path would get right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			p := gate.NormalizePath(args[0])
			decision, _, err := opts.env.gate.Check(ctx, p)
			if err != nil {
				return fmt.Errorf("gate state unreadable (visitors are let through): %w", err)
			}
			w := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(w, map[string]string{"path": p, "decision": decision.String()})
			}
			fmt.Fprintf(w, "%s: %s\n", p, decision)
			return nil
		},
	}
}

func newAdminCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage operator accounts",
	}

	var password string
	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an operator or reset its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if err := validation.ValidateUsername(args[0]); err != nil {
				return models.NewValidationError(err.Error())
			}
			if err := validation.ValidatePassword(password); err != nil {
				return models.NewValidationError(err.Error())
			}

			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			admin, err := opts.env.admins.Upsert(ctx, args[0], string(hashed))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "operator %s saved\n", admin.Username)
			return nil
		},
	}
	createCmd.Flags().StringVar(&password, "password", "", "password (prompted on stdin when omitted)")

	cmd.AddCommand(createCmd)
	return cmd
}
