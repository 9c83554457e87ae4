package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vid2md/vid2md/internal/ai"
	"github.com/vid2md/vid2md/internal/markdown"
	"github.com/vid2md/vid2md/internal/tutorial"
	"github.com/vid2md/vid2md/internal/worker/domain"
)

// ProjectStore is the persistence surface the pipeline needs: an
// atomic claim plus read-modify-write of status/progress/error.
type ProjectStore interface {
	ClaimProject(ctx context.Context, projectID string) (*domain.Project, error)
	SetDuration(ctx context.Context, projectID string, seconds int) error
	UpdateTitle(ctx context.Context, projectID, title string) error
	UpdateProgress(ctx context.Context, projectID string, progress int) error
	SaveContent(ctx context.Context, projectID string, rawData []byte, markdownContent string) error
	MarkCompleted(ctx context.Context, projectID string) error
	MarkFailed(ctx context.Context, projectID, errorMsg string) error
}

// DurationProber reports a video's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, videoPath string) (int, error)
}

// StepGenerator produces the step script. It never fails; a fallback
// script replaces any unusable model response.
type StepGenerator interface {
	Generate(ctx context.Context, videoPath string, duration int) (tutorial.Script, ai.Source)
}

// FrameExtractor captures one frame per step and returns the steps
// with image references populated.
type FrameExtractor interface {
	CaptureAll(ctx context.Context, videoPath, projectID string, steps []tutorial.Step, duration int) ([]tutorial.Step, error)
}

// ProcessorConfig wires the pipeline stages into a Processor.
type ProcessorConfig struct {
	Logger          *slog.Logger
	Store           ProjectStore
	Prober          DurationProber
	Generator       StepGenerator
	Extractor       FrameExtractor
	MaxVideoMinutes int
	JobTimeout      time.Duration
}

// Processor runs the conversion pipeline for one claimed project:
// probe -> generate -> extract -> assemble, with progress updates after
// each stage and terminal status recording.
type Processor struct {
	logger          *slog.Logger
	store           ProjectStore
	prober          DurationProber
	generator       StepGenerator
	extractor       FrameExtractor
	maxVideoMinutes int
	jobTimeout      time.Duration
}

// NewProcessor creates a Processor
func NewProcessor(cfg *ProcessorConfig) *Processor {
	return &Processor{
		logger:          cfg.Logger,
		store:           cfg.Store,
		prober:          cfg.Prober,
		generator:       cfg.Generator,
		extractor:       cfg.Extractor,
		maxVideoMinutes: cfg.MaxVideoMinutes,
		jobTimeout:      cfg.JobTimeout,
	}
}

// Run executes the pipeline for one dispatch message. A claim conflict
// surfaces as domain.ErrProjectNotClaimable; stage failures are
// recorded on the project record and do not propagate, since the job
// reached a terminal state and the message is handled. Only a worker
// shutdown mid-run returns an error without recording, so the message
// is redelivered.
func (p *Processor) Run(ctx context.Context, msg *domain.ProjectMessage) error {
	project, err := p.store.ClaimProject(ctx, msg.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotClaimable) {
			p.logger.Warn("Project already claimed or finished, skipping",
				slog.String("project_id", msg.ProjectID),
			)
			return err
		}
		return fmt.Errorf("failed to claim project: %w", err)
	}

	// the uploaded source is only needed for this one run
	defer func() {
		if err := os.Remove(project.VideoPath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("Failed to remove source video",
				slog.String("project_id", project.ID),
				slog.Any("error", err),
			)
		}
	}()

	p.logger.Info("Processing project",
		slog.String("project_id", project.ID),
		slog.String("title", project.Title),
	)

	// the timeout bounds stage work only; terminal-state writes below
	// run on the outer context so a timed-out job still ends up failed
	stageCtx := ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	duration, err := p.prober.Duration(stageCtx, project.VideoPath)
	if err != nil {
		return p.stageFailed(ctx, project.ID, domain.NewStageError(domain.KindMediaUnreadable, err))
	}

	if duration > p.maxVideoMinutes*60 {
		return p.stageFailed(ctx, project.ID, domain.NewStageError(domain.KindVideoTooLong,
			fmt.Errorf("视频超过 %d 分钟限制", p.maxVideoMinutes)))
	}

	if err := p.store.SetDuration(ctx, project.ID, duration); err != nil {
		return p.stageFailed(ctx, project.ID, domain.NewStageError(domain.KindInternalPipelineError, err))
	}
	p.advance(ctx, project.ID, domain.ProgressProbed)

	script, source := p.generator.Generate(stageCtx, project.VideoPath, duration)
	p.logger.Info("Step script ready",
		slog.String("project_id", project.ID),
		slog.String("source", string(source)),
		slog.Int("steps", len(script.Steps)),
	)

	if script.Headline != "" {
		title := domain.TruncateTitle(script.Headline)
		if err := p.store.UpdateTitle(ctx, project.ID, title); err != nil {
			p.logger.Warn("Failed to update project title",
				slog.String("project_id", project.ID),
				slog.Any("error", err),
			)
		}
	}
	p.advance(ctx, project.ID, domain.ProgressGenerated)

	steps, err := p.extractor.CaptureAll(stageCtx, project.VideoPath, project.ID, script.Steps, duration)
	if err != nil {
		return p.stageFailed(ctx, project.ID, domain.NewStageError(domain.KindFrameExtractionFailed, err))
	}
	script.Steps = steps
	p.advance(ctx, project.ID, domain.ProgressExtracted)

	rendered := markdown.Render(script)
	rawData, err := json.Marshal(script)
	if err != nil {
		return p.stageFailed(ctx, project.ID, domain.NewStageError(domain.KindInternalPipelineError, err))
	}

	if err := p.store.SaveContent(ctx, project.ID, rawData, rendered); err != nil {
		return p.stageFailed(ctx, project.ID, domain.NewStageError(domain.KindInternalPipelineError, err))
	}

	if err := p.store.MarkCompleted(ctx, project.ID); err != nil {
		return fmt.Errorf("failed to mark project completed: %w", err)
	}

	p.logger.Info("Project processing finished",
		slog.String("project_id", project.ID),
		slog.Int("duration_seconds", duration),
		slog.Int("steps", len(script.Steps)),
	)

	return nil
}

// advance bumps progress after a completed stage; a failed bump is not
// fatal, the next stage boundary will catch up.
func (p *Processor) advance(ctx context.Context, projectID string, progress int) {
	if err := p.store.UpdateProgress(ctx, projectID, progress); err != nil {
		p.logger.Warn("Failed to update progress",
			slog.String("project_id", projectID),
			slog.Int("progress", progress),
			slog.Any("error", err),
		)
	}
}

// stageFailed settles a failed stage. When the worker itself is
// shutting down the error propagates so the delivery is requeued;
// otherwise the failure is recorded and the message counts as handled.
func (p *Processor) stageFailed(ctx context.Context, projectID string, stageErr *domain.StageError) error {
	if ctx.Err() != nil {
		return fmt.Errorf("processing interrupted: %w", ctx.Err())
	}
	p.fail(ctx, projectID, stageErr)
	return nil
}

// fail records the terminal failed state with the stage error's kind
// and message. Progress keeps its last value.
func (p *Processor) fail(ctx context.Context, projectID string, stageErr *domain.StageError) {
	p.logger.Error("Pipeline stage failed",
		slog.String("project_id", projectID),
		slog.String("kind", stageErr.Kind),
		slog.Any("error", stageErr.Err),
	)

	if err := p.store.MarkFailed(ctx, projectID, stageErr.Error()); err != nil {
		p.logger.Error("Failed to record project failure",
			slog.String("project_id", projectID),
			slog.Any("error", err),
		)
	}
}
