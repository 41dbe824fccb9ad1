package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"staffsync/internal/application/factories/infrastructure"
	"staffsync/internal/config"
	"staffsync/internal/infrastructure/postgres"
)

func main() {
	limit := flag.Int("limit", 20, "number of most recent events to list")
	id := flag.String("id", "", "print one event as JSON")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	infraFactory := infrastructure.NewFactory(cfg, zap.NewNop())
	defer infraFactory.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infraFactory.Postgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	repo := postgres.NewOutboxRepository(pool)

	if *id != "" {
		e, err := repo.Get(ctx, *id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(e)
		return
	}

	events, err := repo.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
	for _, e := range events {
		next := "-"
		if e.NextAttemptAt != nil {
			next = e.NextAttemptAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", e.ID, e.Type, e.Status, e.AttemptCount, next, e.LastError)
	}
	_ = tw.Flush()
}
