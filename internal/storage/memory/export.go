// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/combatsim/pkg/core"
)

// RunExport is the root JSON structure
type RunExport struct {
	UUID        string            `json:"uuid"`
	Scenario    string            `json:"scenario"`
	Version     string            `json:"version,omitempty"`
	MapWidth    float64           `json:"mapWidth"`
	MapHeight   float64           `json:"mapHeight"`
	Seed        int64             `json:"seed"`
	MaxSteps    int               `json:"maxSteps"`
	StartTime   time.Time         `json:"startTime"`
	EndStep     int               `json:"endStep"`
	Origin      []float64         `json:"origin,omitempty"` // [lon, lat] of plane (0,0)
	Summary     core.Summary      `json:"summary"`
	Entities    []EntityJSON      `json:"entities"`
	Engagements []core.Engagement `json:"engagements"`
	Steps       []core.StepStats  `json:"steps"`
}

// EntityJSON represents one unit and its timeline
type EntityJSON struct {
	ID              uint64        `json:"id"`
	Type            core.UnitType `json:"type"`
	Stats           core.Stats    `json:"stats"`
	InitialStrength float64       `json:"initialStrength"`
	Strength        float64       `json:"strength"` // last sampled strength
	Spawn           []float64     `json:"spawn"`
	Positions       [][]any       `json:"positions"`
}

// ExportFileName builds "<scenario>_<start>.json[.gz]" with spaces and colons replaced.
func ExportFileName(run *core.Run, compress bool) string {
	name := strings.ReplaceAll(run.Scenario, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	if name == "" {
		name = "run"
	}
	timestamp := run.StartTime.Format("20060102_150405")

	if compress {
		return fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	}
	return fmt.Sprintf("%s_%s.json", name, timestamp)
}

// exportJSON writes the run data to a JSON file, gzipped if configured
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(b.run, b.cfg.CompressOutput))

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() RunExport {
	export := RunExport{
		UUID:        b.run.UUID,
		Scenario:    b.run.Scenario,
		Version:     b.run.Version,
		MapWidth:    b.run.MapWidth,
		MapHeight:   b.run.MapHeight,
		Seed:        b.run.Seed,
		MaxSteps:    b.run.MaxSteps,
		StartTime:   b.run.StartTime,
		Entities:    make([]EntityJSON, 0, len(b.units)),
		Engagements: make([]core.Engagement, 0, len(b.engagements)),
		Steps:       make([]core.StepStats, 0, len(b.steps)),
	}
	if b.summary != nil {
		export.Summary = *b.summary
	}
	if b.projector != nil {
		lon, lat := b.projector.LonLat(core.Position{})
		export.Origin = []float64{lon, lat}
	}

	for _, record := range b.sortedUnits() {
		entity := EntityJSON{
			ID:              record.Unit.ID,
			Type:            record.Unit.Type,
			Stats:           record.Unit.Stats,
			InitialStrength: record.Unit.Strength,
			Strength:        record.Unit.Strength,
			Spawn:           []float64{record.Unit.Position.X, record.Unit.Position.Y},
			Positions:       make([][]any, 0, len(record.States)),
		}
		if n := len(record.States); n > 0 {
			entity.Strength = record.States[n-1].Strength
		}

		// Format: [step, [x, y], strength] or [step, [x, y], strength, [lon, lat]]
		for _, state := range record.States {
			pos := []any{
				state.Step,
				[]float64{state.Position.X, state.Position.Y},
				state.Strength,
			}
			if b.projector != nil {
				lon, lat := b.projector.LonLat(state.Position)
				pos = append(pos, []float64{lon, lat})
			}
			entity.Positions = append(entity.Positions, pos)
		}
		export.Entities = append(export.Entities, entity)
	}

	export.Engagements = append(export.Engagements, b.engagements...)
	export.Steps = append(export.Steps, b.steps...)
	for _, s := range b.steps {
		if s.Step > export.EndStep {
			export.EndStep = s.Step
		}
	}

	return export
}

func writeJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data RunExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
