package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vid2md/vid2md/internal/tutorial"
)

// Extracted frames are normalized to 720p JPEGs; quality 2 is near the
// top of ffmpeg's 2-31 JPEG scale.
const (
	frameWidth   = 1280
	frameHeight  = 720
	frameQuality = 2
)

// Extractor captures one frame per step through an external ffmpeg
// binary. OutputDir is the directory frames are written to; RefDir is
// the path prefix recorded on each step (relative to the static root)
// so the rendered Markdown and the export archive agree on layout.
type Extractor struct {
	Binary    string
	OutputDir string
	RefDir    string

	logger *slog.Logger
}

// NewExtractor creates an Extractor writing into outputDir.
func NewExtractor(binary, outputDir, refDir string, logger *slog.Logger) Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return Extractor{
		Binary:    binary,
		OutputDir: outputDir,
		RefDir:    refDir,
		logger:    logger,
	}
}

// CaptureAll captures a frame at every step's timestamp and returns the
// steps with ImagePath populated. A capture that fails is retried once
// at a timestamp clamped near the end of the stream; if the retry also
// fails the whole extraction fails and no partial result is returned.
func (e Extractor) CaptureAll(ctx context.Context, videoPath, projectID string, steps []tutorial.Step, duration int) ([]tutorial.Step, error) {
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	out := make([]tutorial.Step, len(steps))
	copy(out, steps)

	for i := range out {
		filename := FrameFilename(projectID, out[i].Timestamp)
		outputPath := filepath.Join(e.OutputDir, filename)

		if err := e.capture(ctx, videoPath, out[i].Timestamp, outputPath); err != nil {
			fallback := fallbackTimestamp(out[i].Timestamp, duration)
			e.logger.Warn("frame capture failed, retrying at fallback timestamp",
				slog.String("project_id", projectID),
				slog.Int("timestamp", out[i].Timestamp),
				slog.Int("fallback", fallback),
				slog.Any("error", err),
			)
			if retryErr := e.capture(ctx, videoPath, fallback, outputPath); retryErr != nil {
				return nil, fmt.Errorf("capture frame at %ds: %w", out[i].Timestamp, retryErr)
			}
		}

		out[i].ImagePath = path.Join(e.RefDir, filename)
	}

	return out, nil
}

func (e Extractor) capture(ctx context.Context, videoPath string, timestamp int, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.Binary, captureArgs(videoPath, timestamp, outputPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// captureArgs builds the ffmpeg argument list for a single-frame grab.
func captureArgs(videoPath string, timestamp int, outputPath string) []string {
	return []string{
		"-ss", strconv.Itoa(timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(frameQuality),
		"-vf", fmt.Sprintf("scale=%d:%d", frameWidth, frameHeight),
		"-y",
		outputPath,
	}
}

// FrameFilename derives a deterministic-looking, collision-free name
// from the owning project, the timestamp, and a uniqueness token.
func FrameFilename(projectID string, timestamp int) string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s_%d_%s.jpg", projectID, timestamp, token)
}

// fallbackTimestamp clamps an unseekable offset near the end of the
// stream for the single retry.
func fallbackTimestamp(timestamp, duration int) int {
	fallback := duration - 2
	if fallback > timestamp {
		fallback = timestamp - 1
	}
	if fallback < 0 {
		fallback = 0
	}
	return fallback
}
