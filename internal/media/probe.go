package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Prober reports container duration through an external ffprobe binary.
type Prober struct {
	Binary string
}

// NewProber creates a Prober, falling back to "ffprobe" on PATH when
// binary is empty.
func NewProber(binary string) Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return Prober{Binary: binary}
}

// Duration returns the video duration in whole seconds.
func (p Prober) Duration(ctx context.Context, videoPath string) (int, error) {
	videoPath = strings.TrimSpace(videoPath)
	if videoPath == "" {
		return 0, errors.New("ffprobe: empty video path")
	}

	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"--", videoPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}

	seconds, err := parseDuration(string(output))
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return seconds, nil
}

// parseDuration converts ffprobe's duration line into whole seconds.
func parseDuration(output string) (int, error) {
	raw := strings.TrimSpace(output)
	if raw == "" {
		return 0, errors.New("no duration reported")
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return int(value), nil
}
