// Command docctl is a local operator CLI for inspecting a job's status,
// timeline, and artifacts directly against the status table and object
// store, with no HTTP API and no auth (spec.md §9 supplemental "CLI
// artifact inspection").
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/azure-way/aidocwriter/internal/config"
	"github.com/azure-way/aidocwriter/internal/logger"
	"github.com/azure-way/aidocwriter/internal/status"
	"github.com/azure-way/aidocwriter/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "docctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: docctl <status|timeline|artifacts> <job_id> [cycle]")
	}

	cfg := config.Load()
	db, err := gorm.Open(postgres.Open(cfg.QueueConnString), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	statusTable := status.NewPGTable(db)

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Parse(rest)

	switch cmd {
	case "status":
		return runStatus(fs.Args(), statusTable)
	case "timeline":
		return runTimeline(fs.Args(), statusTable)
	case "artifacts":
		return runArtifacts(fs.Args())
	default:
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
}

func runStatus(args []string, table status.Table) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docctl status <job_id>")
	}
	ev, ok, err := table.Latest(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no status recorded")
		return nil
	}
	return printJSON(ev)
}

func runTimeline(args []string, table status.Table) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docctl timeline <job_id>")
	}
	events, err := table.Timeline(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(events)
}

func runArtifacts(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docctl artifacts <job_id> [cycle]")
	}
	cycleIdx := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid cycle %q: %w", args[1], err)
		}
		cycleIdx = n
	}

	cfg := config.Load()
	objectStore, err := openStore(cfg)
	if err != nil {
		return err
	}

	paths := store.NewJobStoragePaths(args[0])
	artifacts, err := store.ListCycleArtifacts(context.Background(), objectStore, paths, cycleIdx)
	if err != nil {
		return err
	}
	return printJSON(artifacts)
}

func openStore(cfg config.Config) (store.ObjectStore, error) {
	if cfg.BlobConnString == "" {
		return nil, fmt.Errorf("BLOB_CONN_STRING is required")
	}
	return store.NewGCSStore(context.Background(), logger.NewNop(), cfg.BlobContainer)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
