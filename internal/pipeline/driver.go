// Package pipeline owns the build pipeline state machine: stage
// sequencing, run bookkeeping, and the shutdown guarantee for the
// background database engine.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/leapstack-labs/sqlforge/internal/artifact"
	"github.com/leapstack-labs/sqlforge/internal/dbserver"
	"github.com/leapstack-labs/sqlforge/internal/extract"
	"github.com/leapstack-labs/sqlforge/internal/manifest"
	"github.com/leapstack-labs/sqlforge/internal/modelgen"
	"github.com/leapstack-labs/sqlforge/internal/restore"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// State is a pipeline driver state.
type State string

// Driver states. Stopping is entered from every reachable state,
// including Failed; Done and Failed are the only terminal states.
const (
	StateStarting          State = "Starting"
	StateAwaitingReadiness State = "AwaitingReadiness"
	StateRestoring         State = "Restoring"
	StateExtractingSchema  State = "ExtractingSchema"
	StateBuilding          State = "Building"
	StateGeneratingModel   State = "GeneratingModel"
	StateWritingManifest   State = "WritingManifest"
	StateStopping          State = "Stopping"
	StateDone              State = "Done"
	StateFailed            State = "Failed"
)

// stopTimeout bounds the engine shutdown on every exit path.
const stopTimeout = 30 * time.Second

// Config wires the driver's collaborators. All tool integrations enter
// through capability interfaces so the pipeline is testable with fakes.
type Config struct {
	Context    *core.BuildContext
	Connection core.ConnectionInfo

	Database   core.DatabaseService
	Extraction core.SchemaExtractionTool
	Build      core.BuildTool
	Generator  core.ModelGeneratorTool
	Fetcher    core.HTTPFetcher

	// Store records run and stage history. Optional; nil disables
	// bookkeeping.
	Store core.Store

	// Waiter overrides the stock readiness budget. Optional.
	Waiter *dbserver.Waiter

	// DataDir overrides the engine data directory for restored files.
	DataDir string

	// TemplateURL overrides the default generator config template.
	TemplateURL string

	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Result describes how a run ended.
type Result struct {
	State        State
	ManifestPath string
	Artifacts    []core.ArtifactDescriptor
	RunID        string
}

// Driver executes the pipeline. Stages run strictly sequentially; the
// only concurrent element is the background engine process, polled
// out-of-band during AwaitingReadiness.
type Driver struct {
	cfg    Config
	waiter *dbserver.Waiter
	logger *slog.Logger
}

// New creates a Driver.
func New(cfg Config) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	waiter := cfg.Waiter
	if waiter == nil {
		waiter = dbserver.NewWaiter(logger)
	}
	return &Driver{cfg: cfg, waiter: waiter, logger: logger}
}

// Run drives the pipeline to Done or Failed. The engine stop action is
// invoked exactly once for every terminal state. The returned Result is
// non-nil even on failure.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	bctx := d.cfg.Context
	result := &Result{}
	artifacts := &core.ArtifactSet{}

	run := d.createRun(bctx)
	if run != nil {
		result.RunID = run.ID
	}

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			d.logger.Info("state transition", "state", StateStopping)
			d.recordStageOutcome(run, string(StateStopping), d.stopEngine())
		})
	}
	defer stop()

	fail := func(state State, err error) (*Result, error) {
		wrapped := fmt.Errorf("stage %s failed: %w", state, err)
		d.logger.Error("pipeline failed", "stage", string(state), "error", err)
		stop()
		d.completeRun(run, core.RunStatusFailed, wrapped.Error())
		result.State = StateFailed
		result.Artifacts = artifacts.All()
		return result, wrapped
	}

	// Starting
	d.logger.Info("state transition", "state", StateStarting)
	backupPath, err := d.prepareBackup(ctx, bctx)
	if err != nil {
		return fail(StateStarting, err)
	}
	if err := d.runStage(run, StateStarting, func() error {
		return d.cfg.Database.Start(ctx)
	}); err != nil {
		return fail(StateStarting, err)
	}

	// AwaitingReadiness
	if err := d.runStage(run, StateAwaitingReadiness, func() error {
		return d.waiter.Wait(ctx, d.cfg.Database.Probe)
	}); err != nil {
		return fail(StateAwaitingReadiness, err)
	}

	// Restoring
	executor := restore.NewExecutor(d.cfg.Database, d.cfg.DataDir, d.logger)
	if err := d.runStage(run, StateRestoring, func() error {
		spec, err := executor.BuildSpec(ctx, bctx.DatabaseName, backupPath)
		if err != nil {
			return err
		}
		outcome, err := executor.Restore(ctx, spec)
		if err != nil {
			return err
		}
		d.logger.Info("restore finished", "outcome", string(outcome))
		return nil
	}); err != nil {
		return fail(StateRestoring, err)
	}

	conn := d.cfg.Connection
	conn.Database = bctx.DatabaseName

	// ExtractingSchema
	extractor := extract.NewExtractor(d.cfg.Extraction, d.logger)
	if err := d.runStage(run, StateExtractingSchema, func() error {
		desc, err := extractor.ExtractSchema(ctx, conn, bctx.ProjectDir())
		if err != nil {
			return err
		}
		artifacts.Add(*desc)
		return nil
	}); err != nil {
		return fail(StateExtractingSchema, err)
	}

	// Building
	builder := artifact.NewBuilder(d.cfg.Build, d.logger)
	buildWarned := false
	if err := d.runStageStatus(run, StateBuilding, func() (core.StageStatus, error) {
		built, err := builder.Build(ctx, bctx.ProjectDir(), bctx.DatabaseName, bctx.Version,
			bctx.DistDir(), core.ArtifactDacpac, core.ArtifactCompiledPackage)
		if err != nil {
			return core.StageStatusFailed, err
		}
		artifacts.Add(*built.Package)
		if built.Primary == nil {
			buildWarned = true
			return core.StageStatusWarning, nil
		}
		artifacts.Add(*built.Primary)
		return core.StageStatusSuccess, nil
	}); err != nil {
		return fail(StateBuilding, err)
	}

	// GeneratingModel
	if err := d.runStageStatus(run, StateGeneratingModel, func() (core.StageStatus, error) {
		_, renamingDesc, err := modelgen.GenerateSchemaRenaming(ctx, d.cfg.Database, bctx.OutputRoot, d.logger)
		if err != nil {
			return core.StageStatusFailed, err
		}
		artifacts.Add(*renamingDesc)

		dacpac, haveDacpac := artifacts.Find(core.ArtifactDacpac)
		if !haveDacpac {
			d.logger.Warn("no compiled artifact available, skipping model generation")
			buildWarned = true
			return core.StageStatusWarning, nil
		}

		resolver := modelgen.NewConfigResolver(d.cfg.Fetcher, d.cfg.TemplateURL, d.logger)
		genConfig, err := resolver.Resolve(ctx, bctx, bctx.OutputRoot)
		if err != nil {
			return core.StageStatusFailed, err
		}

		generator := modelgen.NewGenerator(d.cfg.Generator, d.cfg.Build, d.logger)
		desc, err := generator.GenerateModel(ctx, dacpac.Path, genConfig,
			bctx.ModelProjectDir(), bctx.Version, bctx.DistDir())
		if err != nil {
			return core.StageStatusFailed, err
		}
		artifacts.Add(*desc)
		return core.StageStatusSuccess, nil
	}); err != nil {
		return fail(StateGeneratingModel, err)
	}

	// WritingManifest
	if err := d.runStage(run, StateWritingManifest, func() error {
		path, err := manifest.NewWriter(d.logger).Write(bctx, artifacts, bctx.OutputRoot)
		if err != nil {
			return err
		}
		result.ManifestPath = path
		return nil
	}); err != nil {
		return fail(StateWritingManifest, err)
	}

	// Stopping
	stop()

	status := core.RunStatusCompleted
	if buildWarned {
		d.logger.Warn("run completed with warnings")
	}
	d.completeRun(run, status, "")

	d.logger.Info("state transition", "state", StateDone)
	result.State = StateDone
	result.Artifacts = artifacts.All()
	return result, nil
}

// prepareBackup selects the backup source: a usable local file wins, else
// the remote URL is downloaded under the output root.
func (d *Driver) prepareBackup(ctx context.Context, bctx *core.BuildContext) (string, error) {
	if err := os.MkdirAll(bctx.OutputRoot, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output root: %w", err)
	}

	if bctx.BackupLocalFile != "" {
		if _, err := os.Stat(bctx.BackupLocalFile); err == nil {
			d.logger.Info("using local backup", "path", bctx.BackupLocalFile)
			return bctx.BackupLocalFile, nil
		}
		d.logger.Warn("local backup not usable, trying remote", "path", bctx.BackupLocalFile)
	}

	if bctx.BackupRemoteURL == "" {
		return "", fmt.Errorf("no usable backup source: local file absent and no remote URL configured")
	}

	dest := filepath.Join(bctx.OutputRoot, bctx.DatabaseName+".bak")
	if dl, ok := d.cfg.Fetcher.(interface {
		Download(ctx context.Context, url, destPath string) error
	}); ok {
		if err := dl.Download(ctx, bctx.BackupRemoteURL, dest); err != nil {
			return "", fmt.Errorf("backup download failed: %w", err)
		}
		return dest, nil
	}

	body, err := d.cfg.Fetcher.Get(ctx, bctx.BackupRemoteURL)
	if err != nil {
		return "", fmt.Errorf("backup download failed: %w", err)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	return dest, nil
}

// stopEngine stops the background engine with a bounded deadline,
// independent of the run context, which may already be cancelled.
func (d *Driver) stopEngine() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return d.cfg.Database.Stop(stopCtx)
}

// runStage records the stage, logs the transition, runs fn, and records
// the outcome.
func (d *Driver) runStage(run *core.Run, state State, fn func() error) error {
	return d.runStageStatus(run, state, func() (core.StageStatus, error) {
		if err := fn(); err != nil {
			return core.StageStatusFailed, err
		}
		return core.StageStatusSuccess, nil
	})
}

// runStageStatus is runStage for stages that can end in a warning.
func (d *Driver) runStageStatus(run *core.Run, state State, fn func() (core.StageStatus, error)) error {
	d.logger.Info("state transition", "state", string(state))

	stage := d.recordStage(run, string(state))
	status, err := fn()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	d.finishStage(stage, status, msg)
	return err
}

// --- store bookkeeping; every helper tolerates a nil store ---

func (d *Driver) createRun(bctx *core.BuildContext) *core.Run {
	if d.cfg.Store == nil {
		return nil
	}
	run, err := d.cfg.Store.CreateRun(bctx.DatabaseName, bctx.Version)
	if err != nil {
		d.logger.Warn("failed to record run", "error", err)
		return nil
	}
	return run
}

func (d *Driver) completeRun(run *core.Run, status core.RunStatus, errMsg string) {
	if d.cfg.Store == nil || run == nil {
		return
	}
	if err := d.cfg.Store.CompleteRun(run.ID, status, errMsg); err != nil {
		d.logger.Warn("failed to complete run record", "error", err)
	}
}

func (d *Driver) recordStage(run *core.Run, name string) *core.StageRun {
	if d.cfg.Store == nil || run == nil {
		return nil
	}
	stage := &core.StageRun{RunID: run.ID, Stage: name}
	if err := d.cfg.Store.RecordStage(stage); err != nil {
		d.logger.Warn("failed to record stage", "stage", name, "error", err)
		return nil
	}
	return stage
}

func (d *Driver) finishStage(stage *core.StageRun, status core.StageStatus, msg string) {
	if d.cfg.Store == nil || stage == nil {
		return
	}
	if err := d.cfg.Store.CompleteStage(stage.ID, status, msg); err != nil {
		d.logger.Warn("failed to complete stage record", "error", err)
	}
}

// recordStageOutcome records a stage that already ran.
func (d *Driver) recordStageOutcome(run *core.Run, name string, err error) {
	stage := d.recordStage(run, name)
	status := core.StageStatusSuccess
	msg := ""
	if err != nil {
		status = core.StageStatusFailed
		msg = err.Error()
	}
	d.finishStage(stage, status, msg)
}
