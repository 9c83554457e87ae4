package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vid2md/vid2md/internal/tutorial"
)

const systemPrompt = `你是一位视频教程主理人，用通俗、温暖、接地气的语言把视频内容写给初学者。` +
	`请根据提供的视频信息输出结构化 JSON（不要返回多余文本），格式：` +
	`{"headline":"吸引人的标题","summary":"一句话摘要","steps":[{"step_index":0,"timestamp":125,"title":"步骤标题","description":"详细操作说明"}]}。` +
	`要求：选择 4-10 个关键步骤，覆盖完整流程；时间戳使用秒、取整且递增，不得超出视频时长；语言友好、口语化；只返回 JSON。`

// Source tags how a step script was produced.
type Source string

const (
	// SourceReal marks a script parsed from a model response.
	SourceReal Source = "real"
	// SourceSynthetic marks a deterministically synthesized script.
	SourceSynthetic Source = "synthetic"
)

// Generator produces the step script for a video. A configured client
// is asked first; any failure there (missing credential, timeout,
// non-2xx response, malformed or out-of-contract payload) falls back to
// deterministic synthesis, so generation itself never fails a job.
type Generator struct {
	client         *Client
	syntheticSteps int
	logger         *slog.Logger
}

// NewGenerator creates a Generator. syntheticSteps caps the fallback
// step count (default 5 when non-positive).
func NewGenerator(client *Client, syntheticSteps int, logger *slog.Logger) *Generator {
	if syntheticSteps <= 0 {
		syntheticSteps = 5
	}
	return &Generator{
		client:         client,
		syntheticSteps: syntheticSteps,
		logger:         logger,
	}
}

// Generate returns a step script for the video along with its source
// tag. The returned script always has at least one step, contiguous
// zero-based indices, and non-decreasing timestamps within
// [0, duration].
func (g *Generator) Generate(ctx context.Context, videoPath string, duration int) (tutorial.Script, Source) {
	if !g.client.Configured() {
		g.logger.Warn("no AI credential configured, using synthetic steps")
		return g.synthesize(duration), SourceSynthetic
	}

	script, err := g.generateReal(ctx, videoPath, duration)
	if err != nil {
		g.logger.Warn("AI step generation failed, using synthetic steps",
			slog.Any("error", err),
		)
		return g.synthesize(duration), SourceSynthetic
	}

	g.logger.Info("step script generated",
		slog.String("source", string(SourceReal)),
		slog.Int("steps", len(script.Steps)),
	)
	return script, SourceReal
}

func (g *Generator) generateReal(ctx context.Context, videoPath string, duration int) (tutorial.Script, error) {
	userPrompt := fmt.Sprintf(
		"视频文件：%s\n视频时长：%d 秒\n请按照约定格式输出该视频的教程步骤。",
		filepath.Base(videoPath), duration,
	)

	content, err := g.client.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return tutorial.Script{}, err
	}

	var script tutorial.Script
	if err := json.Unmarshal([]byte(content), &script); err != nil {
		return tutorial.Script{}, fmt.Errorf("parse step script: %w", err)
	}

	normalized, err := normalize(script, duration)
	if err != nil {
		return tutorial.Script{}, err
	}
	return normalized, nil
}

// normalize enforces the script contract on a model response: steps
// with empty titles are dropped, timestamps are clamped into
// [0, duration-1], ordering is made non-decreasing, and indices are
// rewritten contiguously from zero.
func normalize(script tutorial.Script, duration int) (tutorial.Script, error) {
	maxTS := duration - 1
	if maxTS < 0 {
		maxTS = 0
	}

	steps := make([]tutorial.Step, 0, len(script.Steps))
	for _, step := range script.Steps {
		if strings.TrimSpace(step.Title) == "" {
			continue
		}
		if step.Timestamp < 0 {
			step.Timestamp = 0
		}
		if step.Timestamp > maxTS {
			step.Timestamp = maxTS
		}
		step.ImagePath = ""
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return tutorial.Script{}, fmt.Errorf("no usable steps in response")
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Timestamp < steps[j].Timestamp
	})
	for i := range steps {
		steps[i].Index = i
	}

	script.Steps = steps
	return script, nil
}

// synthesize derives evenly spaced placeholder steps from the duration.
// The count is capped at one step per 10 seconds of video so very short
// clips get fewer steps, but there is always at least one.
func (g *Generator) synthesize(duration int) tutorial.Script {
	count := g.syntheticSteps
	if maxByDensity := duration / 10; count > maxByDensity {
		count = maxByDensity
	}
	if count < 1 {
		count = 1
	}

	interval := duration / (count + 1)
	maxTS := duration - 1
	if maxTS < 0 {
		maxTS = 0
	}

	steps := make([]tutorial.Step, count)
	for i := 0; i < count; i++ {
		ts := (i + 1) * interval
		if ts > maxTS {
			ts = maxTS
		}
		steps[i] = tutorial.Step{
			Index:       i,
			Timestamp:   ts,
			Title:       fmt.Sprintf("步骤 %d", i+1),
			Description: fmt.Sprintf("在 %d 秒附近的关键操作描述。", ts),
		}
	}

	return tutorial.Script{
		Summary: "自动生成的占位摘要，请结合视频内容修改。",
		Steps:   steps,
	}
}
