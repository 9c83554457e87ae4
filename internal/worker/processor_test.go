package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vid2md/vid2md/internal/ai"
	"github.com/vid2md/vid2md/internal/tutorial"
	"github.com/vid2md/vid2md/internal/worker/domain"
)

type fakeStore struct {
	mu sync.Mutex

	project domain.Project

	progressUpdates []int
	savedRaw        []byte
	savedMarkdown   string
	errorMsg        string
	durationSet     bool
	titleSet        string

	saveContentErr error
}

func newFakeStore(id string) *fakeStore {
	return &fakeStore{
		project: domain.Project{
			ID:        id,
			Title:     "demo",
			VideoPath: "/nonexistent/videos/demo.mp4",
			Status:    domain.StatusPending,
		},
	}
}

func (s *fakeStore) ClaimProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if projectID != s.project.ID || s.project.Status != domain.StatusPending {
		return nil, domain.ErrProjectNotClaimable
	}
	s.project.Status = domain.StatusProcessing
	s.project.Progress = domain.ProgressClaimed

	copied := s.project
	return &copied, nil
}

func (s *fakeStore) SetDuration(ctx context.Context, projectID string, seconds int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.Duration = seconds
	s.durationSet = true
	return nil
}

func (s *fakeStore) UpdateTitle(ctx context.Context, projectID, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titleSet = title
	return nil
}

func (s *fakeStore) UpdateProgress(ctx context.Context, projectID string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if progress > s.project.Progress {
		s.project.Progress = progress
	}
	s.progressUpdates = append(s.progressUpdates, progress)
	return nil
}

func (s *fakeStore) SaveContent(ctx context.Context, projectID string, rawData []byte, markdownContent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveContentErr != nil {
		return s.saveContentErr
	}
	s.savedRaw = rawData
	s.savedMarkdown = markdownContent
	return nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.Status = domain.StatusCompleted
	s.project.Progress = domain.ProgressCompleted
	s.errorMsg = ""
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, projectID, errorMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.Status = domain.StatusFailed
	s.errorMsg = errorMsg
	return nil
}

func (s *fakeStore) snapshot() domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

type fakeProber struct {
	duration int
	err      error
	calls    int
}

func (p *fakeProber) Duration(ctx context.Context, videoPath string) (int, error) {
	p.calls++
	return p.duration, p.err
}

type fakeGenerator struct {
	mu     sync.Mutex
	script tutorial.Script
	source ai.Source
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, videoPath string, duration int) (tutorial.Script, ai.Source) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.script, g.source
}

type fakeExtractor struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (e *fakeExtractor) CaptureAll(ctx context.Context, videoPath, projectID string, steps []tutorial.Step, duration int) ([]tutorial.Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([]tutorial.Step, len(steps))
	copy(out, steps)
	for i := range out {
		out[i].ImagePath = "images/fake.jpg"
	}
	return out, nil
}

// blockingExtractor waits out its context, like a hung ffmpeg process.
type blockingExtractor struct{}

func (e *blockingExtractor) CaptureAll(ctx context.Context, videoPath, projectID string, steps []tutorial.Step, duration int) ([]tutorial.Step, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testScript() tutorial.Script {
	return tutorial.Script{
		Headline: "生成的标题",
		Summary:  "摘要",
		Steps: []tutorial.Step{
			{Index: 0, Timestamp: 30, Title: "步骤 1", Description: "d1"},
			{Index: 1, Timestamp: 90, Title: "步骤 2", Description: "d2"},
		},
	}
}

func newTestProcessor(store ProjectStore, prober DurationProber, gen StepGenerator, ext FrameExtractor) *Processor {
	return NewProcessor(&ProcessorConfig{
		Logger:          slog.New(slog.DiscardHandler),
		Store:           store,
		Prober:          prober,
		Generator:       gen,
		Extractor:       ext,
		MaxVideoMinutes: 60,
	})
}

const testProjectID = "11111111-1111-1111-1111-111111111111"

func TestRunSuccessPath(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 180}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceReal}
	ext := &fakeExtractor{}

	p := newTestProcessor(store, prober, gen, ext)

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	project := store.snapshot()
	assert.Equal(t, domain.StatusCompleted, project.Status)
	assert.Equal(t, 100, project.Progress)
	assert.Equal(t, 180, project.Duration)
	assert.Empty(t, store.errorMsg)
	assert.Equal(t, "生成的标题", store.titleSet)

	// progress advances monotonically through the stage thresholds
	assert.Equal(t, []int{
		domain.ProgressProbed,
		domain.ProgressGenerated,
		domain.ProgressExtracted,
	}, store.progressUpdates)

	require.NotEmpty(t, store.savedMarkdown)
	assert.Contains(t, store.savedMarkdown, "images/fake.jpg")

	var saved tutorial.Script
	require.NoError(t, json.Unmarshal(store.savedRaw, &saved))
	assert.Len(t, saved.Steps, 2)
	assert.Equal(t, "images/fake.jpg", saved.Steps[0].ImagePath)
}

func TestRunVideoTooLongSkipsLaterStages(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 90 * 60} // 90 minutes, max is 60
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}
	ext := &fakeExtractor{}

	p := newTestProcessor(store, prober, gen, ext)

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	project := store.snapshot()
	assert.Equal(t, domain.StatusFailed, project.Status)
	assert.Contains(t, store.errorMsg, domain.KindVideoTooLong)
	assert.Equal(t, 0, gen.calls, "step generation must not run for over-long videos")
	assert.Equal(t, 0, ext.callCount(), "frame extraction must not run for over-long videos")
	assert.False(t, store.durationSet)
}

func TestRunProbeFailure(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{err: errors.New("ffprobe: exit status 1")}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}
	ext := &fakeExtractor{}

	p := newTestProcessor(store, prober, gen, ext)

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	project := store.snapshot()
	assert.Equal(t, domain.StatusFailed, project.Status)
	assert.Contains(t, store.errorMsg, domain.KindMediaUnreadable)
	assert.Equal(t, 0, gen.calls)
}

func TestRunFrameExtractionFailureRetainsDuration(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 180}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}
	ext := &fakeExtractor{err: errors.New("ffmpeg: exit status 1")}

	p := newTestProcessor(store, prober, gen, ext)

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	project := store.snapshot()
	assert.Equal(t, domain.StatusFailed, project.Status)
	assert.Contains(t, store.errorMsg, domain.KindFrameExtractionFailed)
	assert.Equal(t, 180, project.Duration, "probed duration stays on the record")
	// progress keeps its last stage value, neither reset nor forced to 100
	assert.Equal(t, domain.ProgressGenerated, project.Progress)
	assert.Empty(t, store.savedMarkdown, "no partial document may be saved")
}

func TestRunJobTimeoutRecordsFailure(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 180}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}

	p := NewProcessor(&ProcessorConfig{
		Logger:          slog.New(slog.DiscardHandler),
		Store:           store,
		Prober:          prober,
		Generator:       gen,
		Extractor:       &blockingExtractor{},
		MaxVideoMinutes: 60,
		JobTimeout:      20 * time.Millisecond,
	})

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	// the timeout kills the stage, not the bookkeeping: the project
	// still reaches failed with its error recorded
	project := store.snapshot()
	assert.Equal(t, domain.StatusFailed, project.Status)
	assert.Contains(t, store.errorMsg, domain.KindFrameExtractionFailed)
	assert.Equal(t, domain.ProgressGenerated, project.Progress)
}

func TestRunShutdownLeavesProjectForRedelivery(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 180}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}

	p := newTestProcessor(store, prober, gen, &blockingExtractor{})

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	err := p.Run(ctx, &domain.ProjectMessage{ProjectID: testProjectID})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrProjectNotClaimable)

	// no terminal state recorded; the requeued delivery finishes the job
	project := store.snapshot()
	assert.Equal(t, domain.StatusProcessing, project.Status)
	assert.Empty(t, store.errorMsg)
}

func TestRunHeadlineTruncationKeepsValidUTF8(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 180}

	script := testScript()
	script.Headline = "a" + strings.Repeat("长", 300)
	gen := &fakeGenerator{script: script, source: ai.SourceReal}

	p := newTestProcessor(store, prober, gen, &fakeExtractor{})

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(store.titleSet))
	assert.Len(t, []rune(store.titleSet), domain.MaxTitleLength)
}

func TestRunSaveContentFailure(t *testing.T) {
	store := newFakeStore(testProjectID)
	store.saveContentErr = errors.New("connection reset")
	prober := &fakeProber{duration: 180}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}
	ext := &fakeExtractor{}

	p := newTestProcessor(store, prober, gen, ext)

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, store.snapshot().Status)
	assert.Contains(t, store.errorMsg, domain.KindInternalPipelineError)
}

func TestRunClaimConflict(t *testing.T) {
	store := newFakeStore(testProjectID)
	store.project.Status = domain.StatusProcessing

	p := newTestProcessor(store, &fakeProber{duration: 10}, &fakeGenerator{script: testScript()}, &fakeExtractor{})

	err := p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
	assert.ErrorIs(t, err, domain.ErrProjectNotClaimable)
}

func TestRunConcurrentTriggersExecuteOnce(t *testing.T) {
	store := newFakeStore(testProjectID)
	prober := &fakeProber{duration: 180}
	gen := &fakeGenerator{script: testScript(), source: ai.SourceSynthetic}
	ext := &fakeExtractor{}

	p := newTestProcessor(store, prober, gen, ext)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Run(context.Background(), &domain.ProjectMessage{ProjectID: testProjectID})
		}(i)
	}
	wg.Wait()

	var conflicts int
	for _, err := range results {
		if errors.Is(err, domain.ErrProjectNotClaimable) {
			conflicts++
		} else {
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 1, conflicts, "exactly one trigger must lose the claim")
	assert.Equal(t, 1, ext.callCount(), "the pipeline must execute exactly once")
	assert.Equal(t, domain.StatusCompleted, store.snapshot().Status)
}
