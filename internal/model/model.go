package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Unit{},
	&UnitState{},
	&Engagement{},
	&StepStat{},
}

////////////////////////
// RUN MODELS
////////////////////////

// Run is one simulation run and, once finished, its summary
type Run struct {
	gorm.Model
	UUID      string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	Scenario  string         `json:"scenario" gorm:"size:127"`
	MapWidth  float64        `json:"mapWidth"`
	MapHeight float64        `json:"mapHeight"`
	Seed      int64          `json:"seed"`
	MaxSteps  int            `json:"maxSteps"`
	StartTime time.Time      `json:"startTime" gorm:"index:idx_run_start"`
	EndTime   *time.Time     `json:"endTime"`
	Version   string         `json:"version" gorm:"size:64"`
	Summary   RunSummary     `json:"summary" gorm:"embedded;embeddedPrefix:summary_"`
	Survivors datatypes.JSON `json:"survivors"` // unit type name -> surviving count

	Units       []Unit
	Engagements []Engagement
	StepStats   []StepStat
}

func (*Run) TableName() string {
	return "runs"
}

// RunSummary holds the totals written when a run ends
type RunSummary struct {
	Steps             int  `json:"steps"`
	Engagements       int  `json:"engagements"`
	UnitsDestroyed    int  `json:"unitsDestroyed"`
	UnitsRemoved      int  `json:"unitsRemoved"`
	InitialUnits      int  `json:"initialUnits"`
	FinalUnits        int  `json:"finalUnits"`
	LoggedEngagements int  `json:"loggedEngagements"`
	Terminated        bool `json:"terminated"`
}

// Unit is a combat unit as spawned
// Uses composite primary key (RunID, ObjectID) - ObjectID is the simulation-assigned unit id
type Unit struct {
	RunID          uint       `json:"runId" gorm:"primaryKey;autoIncrement:false"`
	ObjectID       uint64     `json:"unitId" gorm:"primaryKey;autoIncrement:false"`
	Run            Run        `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt      time.Time  `json:"createdAt"`
	UnitType       string     `json:"type" gorm:"size:16;index:idx_unit_type"`
	Strength       float64    `json:"strength"`
	Speed          float64    `json:"speed"`
	DetectionRange float64    `json:"detectionRange"`
	AttackRange    float64    `json:"attackRange"`
	AttackPower    float64    `json:"attackPower"`
	Defense        float64    `json:"defense"`
	SpawnPosition  geom.Point `json:"spawnPosition"`
}

func (*Unit) TableName() string {
	return "units"
}

// UnitState is a sampled unit position and strength at the end of a step
// References Unit by (RunID, UnitObjectID) composite FK
type UnitState struct {
	ID           uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time  `json:"time"`
	RunID        uint       `json:"runId" gorm:"index:idx_unitstate_run_id"`
	Step         int        `json:"step" gorm:"index:idx_unitstate_step"`
	UnitObjectID uint64     `json:"unitId" gorm:"index:idx_unitstate_unit_id"`
	Unit         Unit       `gorm:"foreignkey:RunID,UnitObjectID;references:RunID,ObjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Position     geom.Point `json:"position"`
	Strength     float64    `json:"strength"`
}

func (*UnitState) TableName() string {
	return "unit_states"
}

// Engagement is one resolved attacker-vs-defender exchange
type Engagement struct {
	ID               uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time             time.Time `json:"time" gorm:"index:idx_engagement_time"`
	RunID            uint      `json:"runId" gorm:"index:idx_engagement_run_id"`
	Run              Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Step             int       `json:"step"`
	AttackerObjectID uint64    `json:"attackerId"`
	DefenderObjectID uint64    `json:"defenderId"`
	AttackerType     string    `json:"attackerType" gorm:"size:16"`
	DefenderType     string    `json:"defenderType" gorm:"size:16"`
	Result           string    `json:"result" gorm:"size:16;index:idx_engagement_result"`
	AttackerLoss     float64   `json:"attackerLoss"`
	DefenderLoss     float64   `json:"defenderLoss"`
	Multiplier       float64   `json:"multiplier"`
	MutualKill       bool      `json:"mutualKill" gorm:"default:false"`
}

func (*Engagement) TableName() string {
	return "engagements"
}

// StepStat holds the counters of one step
type StepStat struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time `json:"time"`
	RunID          uint      `json:"runId" gorm:"uniqueIndex:idx_stepstat_run_step"`
	Run            Run       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RunID;"`
	Step           int       `json:"step" gorm:"uniqueIndex:idx_stepstat_run_step"`
	UnitsActive    int       `json:"unitsActive"`
	Engagements    int       `json:"engagements"`
	UnitsDestroyed int       `json:"unitsDestroyed"`
	UnitsRemoved   int       `json:"unitsRemoved"`
}

func (*StepStat) TableName() string {
	return "step_stats"
}
