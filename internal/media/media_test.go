package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    int
		wantErr bool
	}{
		{name: "integer seconds", output: "180\n", want: 180},
		{name: "fractional seconds truncated", output: "179.98\n", want: 179},
		{name: "surrounding whitespace", output: "  42.5  \n", want: 42},
		{name: "empty output", output: "", wantErr: true},
		{name: "garbage output", output: "N/A", wantErr: true},
		{name: "negative duration", output: "-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewProberDefaultsBinary(t *testing.T) {
	assert.Equal(t, "ffprobe", NewProber("").Binary)
	assert.Equal(t, "/opt/bin/ffprobe", NewProber(" /opt/bin/ffprobe ").Binary)
}

func TestCaptureArgs(t *testing.T) {
	args := captureArgs("/videos/demo.mp4", 95, "/static/images/out.jpg")

	assert.Equal(t, []string{
		"-ss", "95",
		"-i", "/videos/demo.mp4",
		"-frames:v", "1",
		"-q:v", "2",
		"-vf", "scale=1280:720",
		"-y",
		"/static/images/out.jpg",
	}, args)
}

func TestFrameFilename(t *testing.T) {
	a := FrameFilename("proj-1", 95)
	b := FrameFilename("proj-1", 95)

	assert.True(t, strings.HasPrefix(a, "proj-1_95_"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	// uniqueness token keeps retries and concurrent jobs from colliding
	assert.NotEqual(t, a, b)
}

func TestFallbackTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		timestamp int
		duration  int
		want      int
	}{
		{name: "offset past usable range clamps near end", timestamp: 179, duration: 180, want: 178},
		{name: "mid-stream offset retries slightly earlier", timestamp: 30, duration: 180, want: 29},
		{name: "zero offset stays at zero", timestamp: 0, duration: 180, want: 0},
		{name: "tiny video clamps to zero", timestamp: 1, duration: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fallbackTimestamp(tt.timestamp, tt.duration))
		})
	}
}
