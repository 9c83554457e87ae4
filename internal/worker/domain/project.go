package domain

// Project status constants. pending is the only initial state;
// completed and failed are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Progress thresholds reached as the pipeline advances through its
// stages. Progress is monotonically non-decreasing within a run and
// hits 100 only on success.
const (
	ProgressClaimed   = 5
	ProgressProbed    = 25
	ProgressGenerated = 50
	ProgressExtracted = 85
	ProgressCompleted = 100
)

// MaxTitleLength is the width of the title column, in characters.
const MaxTitleLength = 255

// TruncateTitle shortens a title to MaxTitleLength characters. It cuts
// on rune boundaries so multi-byte titles stay valid UTF-8.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLength {
		return title
	}
	return string(runes[:MaxTitleLength])
}

// Project is the worker's view of one conversion job.
type Project struct {
	ID         string
	Title      string
	InviteCode string
	VideoPath  string
	Duration   int
	Status     string
	Progress   int
}

// ProjectMessage is the dispatch message published at upload time and
// consumed by the worker pool.
type ProjectMessage struct {
	ProjectID   string `json:"project_id"`
	VideoPath   string `json:"video_path"`
	DeliveryTag uint64 `json:"-"`
}
