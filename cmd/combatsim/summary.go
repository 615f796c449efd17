package main

import (
	"fmt"
	"io"

	"github.com/OCAP2/combatsim/pkg/core"
)

func printSummary(w io.Writer, run *core.Run, s core.Summary) {
	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "Run: %s (%s, seed %d)\n", run.UUID, run.Scenario, run.Seed)
	fmt.Fprintf(w, "Steps: %d\n", s.Steps)
	fmt.Fprintf(w, "Engagements: %d\n", s.Engagements)
	fmt.Fprintf(w, "Units destroyed: %d\n", s.UnitsDestroyed)
	fmt.Fprintf(w, "Units removed: %d\n", s.UnitsRemoved)
	fmt.Fprintf(w, "Final units: %d\n", s.FinalUnits)
	fmt.Fprintf(w, "Total engagements: %d\n", s.LoggedEngagements)
	for _, t := range core.AllUnitTypes() {
		fmt.Fprintf(w, "  %s: %d\n", t, s.SurvivorsByType[t])
	}
}
