package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/OCAP2/combatsim/internal/database"
	gormstorage "github.com/OCAP2/combatsim/internal/storage/gorm"
)

const inspectCommand = "inspect"

// inspect prints the runs stored in a SQLite recording. With run UUIDs it
// prints each run's totals, or the full record as JSON with --json.
func inspect(args []string, w io.Writer) error {
	flags := pflag.NewFlagSet(AppName+" "+inspectCommand, pflag.ContinueOnError)
	asJSON := flags.Bool("json", false, "print full run records as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("usage: %s %s <db-file> [run-uuid...]", AppName, inspectCommand)
	}

	path := flags.Arg(0)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}
	db, err := database.GetSqliteDB(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	uuids := flags.Args()[1:]
	if len(uuids) == 0 {
		runs, err := gormstorage.ListRuns(db)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			status := "in progress"
			if r.Summary != nil {
				status = fmt.Sprintf("%d steps, %d units left", r.Summary.Steps, r.Summary.FinalUnits)
			}
			fmt.Fprintf(w, "%s  %-20s seed=%-20d %s  %s\n",
				r.Run.UUID, r.Run.Scenario, r.Run.Seed, r.Run.StartTime.Format("2006-01-02 15:04:05"), status)
		}
		return nil
	}

	for _, id := range uuids {
		rec, err := gormstorage.LoadRun(db, id)
		if err != nil {
			return err
		}
		if *asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encoding run %s: %w", id, err)
			}
			continue
		}
		printRecord(w, rec)
	}
	return nil
}

func printRecord(w io.Writer, rec gormstorage.RunRecord) {
	fmt.Fprintf(w, "Units: %d, states: %d, engagements: %d, steps: %d\n",
		len(rec.Units), len(rec.States), len(rec.Engagements), len(rec.Steps))
	if rec.Summary == nil {
		fmt.Fprintf(w, "Run %s has not finished.\n", rec.Run.UUID)
		return
	}
	run := rec.Run
	printSummary(w, &run, *rec.Summary)
}
