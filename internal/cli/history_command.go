package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lwdecomp/internal/audit"
)

func (a *app) historyCommand() *cobra.Command {
	var dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent audit events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := strings.TrimSpace(dbPath)
			if path == "" {
				path = a.cfg.AuditDB
			}
			if path == "" {
				return errors.New("no audit database: pass --audit-db or set audit_db in the config")
			}
			if limit < 1 {
				return errors.New("--limit must be >= 1")
			}
			events, err := audit.NewLogger(path).Recent(limit)
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return printJSON(a.stdout, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(a.stdout, "no events")
				return nil
			}
			for _, ev := range events {
				fmt.Fprintf(a.stdout, "%s  %-15s %s\n", ev.TS.Format("2006-01-02 15:04:05"), ev.Type, string(ev.Payload))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "audit-db", "", "SQLite audit log path (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}
