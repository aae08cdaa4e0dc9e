package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aruna-bi/aruna/internal/adapter/postgres"
	"github.com/aruna-bi/aruna/internal/config"
)

// runAdmin dispatches admin subcommands (migrate-version, rollback,
// list-logs, prune-logs).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate-version":
		return runAdminMigrateVersion(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "list-logs":
		return runAdminListLogs(args[1:])
	case "prune-logs":
		return runAdminPruneLogs(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: aruna admin <command> [options]

Commands:
  migrate-version  Print the current schema migration version
  rollback         Roll back the last N migrations
  list-logs        List recent agent logs of a business
  prune-logs       Delete agent logs older than a retention window
  help             Show this help message

Examples:
  aruna admin migrate-version
  aruna admin rollback --steps 1
  aruna admin list-logs --business biz-123 --limit 20
  aruna admin prune-logs --older-than 2160h
`)
}

func loadAdminStore() (*postgres.Store, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewStore(pool), cfg, pool.Close, nil
}

func runAdminMigrateVersion(args []string) error {
	fs := flag.NewFlagSet("migrate-version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

func runAdminListLogs(args []string) error {
	fs := flag.NewFlagSet("list-logs", flag.ContinueOnError)
	businessID := fs.String("business", "", "business ID (required)")
	limit := fs.Int("limit", 20, "maximum number of logs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *businessID == "" {
		return fmt.Errorf("--business is required")
	}

	store, _, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	logs, err := store.ListAgentLogs(context.Background(), *businessID, *limit)
	if err != nil {
		return fmt.Errorf("list agent logs: %w", err)
	}
	if len(logs) == 0 {
		fmt.Println("No agent logs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIMESTAMP\tSUCCESS\tDURATION_MS\tTOOLS\tERROR\tMESSAGE")
	for i := range logs {
		l := &logs[i]
		_, _ = fmt.Fprintf(w, "%s\t%t\t%d\t%s\t%s\t%s\n",
			l.Timestamp.Format(time.RFC3339), l.Success, l.DurationMS,
			strings.Join(l.ToolsUsed, ","), l.ErrorCode, truncate(l.UserMessage, 60))
	}
	return w.Flush()
}

func runAdminPruneLogs(args []string) error {
	fs := flag.NewFlagSet("prune-logs", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", 0, "retention window (defaults to audit.retention)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cfg, cleanup, err := loadAdminStore()
	if err != nil {
		return err
	}
	defer cleanup()

	retention := *olderThan
	if retention <= 0 {
		retention = cfg.Audit.Retention
	}
	if retention <= 0 {
		return fmt.Errorf("--older-than is required when audit.retention is unset")
	}

	n, err := store.PruneAgentLogs(context.Background(), time.Now().Add(-retention))
	if err != nil {
		return fmt.Errorf("prune agent logs: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Pruned %d agent log(s) older than %s\n", n, retention)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
