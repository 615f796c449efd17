package gormstorage

import (
	"errors"
	"fmt"

	"github.com/OCAP2/combatsim/internal/model"
	"github.com/OCAP2/combatsim/internal/model/convert"
	"github.com/OCAP2/combatsim/pkg/core"

	"gorm.io/gorm"
)

// ErrRunNotFound is returned by LoadRun for an unknown run UUID.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is a stored run read back from the database.
type RunRecord struct {
	Run         core.Run
	Summary     *core.Summary // nil while the run has not ended
	Units       []core.Unit
	States      []core.UnitState
	Engagements []core.Engagement
	Steps       []core.StepStats
}

// ListRuns returns every stored run with its summary, oldest first.
func ListRuns(db *gorm.DB) ([]RunRecord, error) {
	var rows []model.Run
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	out := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		run, summary := convert.RunToCore(row)
		out = append(out, RunRecord{Run: run, Summary: summary})
	}
	return out, nil
}

// LoadRun reads a run and everything recorded for it.
func LoadRun(db *gorm.DB, uuid string) (RunRecord, error) {
	var row model.Run
	err := db.Where("uuid = ?", uuid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, uuid)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("loading run %s: %w", uuid, err)
	}

	var rec RunRecord
	rec.Run, rec.Summary = convert.RunToCore(row)

	var units []model.Unit
	if err := db.Where("run_id = ?", row.ID).Order("object_id").Find(&units).Error; err != nil {
		return RunRecord{}, fmt.Errorf("loading units: %w", err)
	}
	for _, u := range units {
		rec.Units = append(rec.Units, convert.UnitToCore(u))
	}

	var states []model.UnitState
	if err := db.Where("run_id = ?", row.ID).Order("step, unit_object_id").Find(&states).Error; err != nil {
		return RunRecord{}, fmt.Errorf("loading unit states: %w", err)
	}
	for _, s := range states {
		rec.States = append(rec.States, convert.UnitStateToCore(s))
	}

	var engagements []model.Engagement
	if err := db.Where("run_id = ?", row.ID).Order("id").Find(&engagements).Error; err != nil {
		return RunRecord{}, fmt.Errorf("loading engagements: %w", err)
	}
	for _, e := range engagements {
		rec.Engagements = append(rec.Engagements, convert.EngagementToCore(e))
	}

	var steps []model.StepStat
	if err := db.Where("run_id = ?", row.ID).Order("step").Find(&steps).Error; err != nil {
		return RunRecord{}, fmt.Errorf("loading steps: %w", err)
	}
	for _, s := range steps {
		rec.Steps = append(rec.Steps, convert.StepStatToCore(s))
	}
	return rec, nil
}
