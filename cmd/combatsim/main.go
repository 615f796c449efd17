package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/combatsim/internal/api"
	"github.com/OCAP2/combatsim/internal/config"
	"github.com/OCAP2/combatsim/internal/engine"
	"github.com/OCAP2/combatsim/internal/monitor"
	"github.com/OCAP2/combatsim/internal/recorder"
	"github.com/OCAP2/combatsim/internal/runner"
	"github.com/OCAP2/combatsim/internal/scenario"
	"github.com/OCAP2/combatsim/internal/session"
	"github.com/OCAP2/combatsim/internal/storage"
	"github.com/OCAP2/combatsim/pkg/core"
)

// module defs - Version and BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "combatsim"
)

const engineMeterName = "github.com/OCAP2/combatsim/internal/engine"

func main() {
	args := os.Args[1:]
	runCmd := run
	if len(args) > 0 && args[0] == inspectCommand {
		args = args[1:]
		runCmd = func(a []string) error { return inspect(a, os.Stdout) }
	}
	if err := runCmd(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "combatsim:", err)
		os.Exit(1)
	}
}

// newFlagSet declares the command line flags.
func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	flags.String("config-dir", ".", "directory containing "+config.FileName)
	flags.Int64("seed", 0, "random seed, 0 seeds from the clock")
	flags.Int("steps", 50, "maximum number of steps")
	flags.String("scenario", "", "scenario YAML file, empty for the built-in scenario")
	flags.String("storage", "memory", "storage backend: memory, sqlite, postgres, websocket or none")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	return flags
}

// flagKeys maps flags to the config keys they override.
var flagKeys = map[string]string{
	"seed":      "simulation.seed",
	"steps":     "simulation.maxSteps",
	"scenario":  "simulation.scenarioFile",
	"storage":   "storage.type",
	"log-level": "logLevel",
}

func bindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

func run(args []string) error {
	sessionStart := time.Now()

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}
	configDir, _ := flags.GetString("config-dir")

	configErr := config.Load(configDir)
	if err := bindFlags(flags); err != nil {
		return err
	}

	sess := session.NewContext()
	logs, err := setupLogging(sess, sessionStart)
	if err != nil {
		return err
	}
	defer logs.close()
	log := logs.logger

	log.Info("Starting up...", "version", Version, "buildDate", BuildDate)
	if configErr != nil {
		log.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		log.Info("Loaded config", "dir", configDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := setupInflux(ctx, log, filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("influx_backup.%s.log.gzip", sessionStart.Format("20060102_150405"))), logs.file)
	if metrics != nil {
		defer func() {
			if err := metrics.Close(); err != nil {
				log.Error("Failed to close InfluxDB", "error", err)
			}
		}()
	}

	backend, err := setupStorage(log)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	simCfg := config.GetSimulationConfig()
	scn, err := loadScenario(simCfg.ScenarioFile)
	if err != nil {
		return err
	}

	width, height := simCfg.MapWidth, simCfg.MapHeight
	if scn.MapWidth > 0 && scn.MapHeight > 0 {
		width, height = scn.MapWidth, scn.MapHeight
	}
	seed := simCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	runInfo := core.NewRun(scn.Name, width, height, seed, simCfg.MaxSteps)
	runInfo.Version = Version

	rec, err := recorder.New(recorder.Dependencies{
		Backend:       backend,
		Influx:        metrics,
		Session:       sess,
		Logger:        log,
		SnapshotEvery: simCfg.SnapshotEvery,
	})
	if err != nil {
		return fmt.Errorf("creating recorder: %w", err)
	}
	defer rec.Close()

	if err := rec.Start(runInfo); err != nil {
		return err
	}

	if monCfg := config.GetMonitorConfig(); monCfg.Interval > 0 {
		deps := monitor.Dependencies{
			Session:    sess,
			Logger:     log,
			Influx:     metrics,
			StatusFile: monCfg.StatusFile,
		}
		if p, ok := backend.(monitor.PendingProvider); ok {
			deps.Pending = p
		}
		mon := monitor.NewService(deps)
		mon.Start(monCfg.Interval)
		defer mon.Stop()
	}

	sim := engine.New(width, height,
		engine.WithSeed(seed),
		engine.WithLogger(log),
		engine.WithObserver(rec),
		engine.WithMeter(logs.otel.Meter(engineMeterName)),
	)

	log.Info("Creating forces...", "scenario", scn.Name, "units", scn.TotalUnits())
	scn.Spawn(sim, rand.New(rand.NewSource(seed+1)))

	summary, runErr := runner.Run(ctx, sim, simCfg.MaxSteps, runner.WithLogger(log))
	if runErr != nil {
		log.Warn("Run interrupted", "error", runErr)
	}

	if err := rec.Finish(summary); err != nil {
		log.Error("Failed to finish recording", "error", err)
	}

	printSummary(os.Stdout, runInfo, summary)

	if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		fmt.Fprintf(os.Stdout, "Recording: %s\n", exp.ExportedFilePath())
		uploadRecording(log, exp.ExportedFilePath(), api.MetadataFor(runInfo, summary, config.GetAPIConfig().Tag))
	}
	return nil
}

func loadScenario(path string) (scenario.Scenario, error) {
	if path == "" {
		return scenario.Default(), nil
	}
	scn, err := scenario.Load(path)
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("loading scenario: %w", err)
	}
	if scn.Name == "" {
		scn.Name = filepath.Base(path)
	}
	return scn, nil
}
