package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/danmuck/peaklink/internal/config"
	"github.com/danmuck/peaklink/internal/store"
)

func runInit(args []string, out io.Writer) error {
	fs := newFlagSet("init")
	output := fs.String("output", "peaklink.toml", "path for the config template")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote config template to %s\n", *output)
	return nil
}

func runShowConfig(args []string, out io.Writer) error {
	fs := newFlagSet("show-config")
	var lf linkFlags
	lf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := lf.load()
	if err != nil {
		return err
	}
	rendered, err := config.Render(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(rendered)
	return err
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("runs")
	path := fs.String("db", "", "sqlite file written by listen --record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("runs: --db is required")
	}
	db, err := store.Open(*path)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tLINK\tSTARTED\tENDED\tPEAKS")
	for _, run := range runs {
		n, err := db.PeakCount(ctx, run.ID)
		if err != nil {
			return err
		}
		ended := "-"
		if !run.EndedAt.IsZero() {
			ended = run.EndedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", run.ID, run.Link, run.StartedAt.Format(time.RFC3339), ended, n)
	}
	return tw.Flush()
}
