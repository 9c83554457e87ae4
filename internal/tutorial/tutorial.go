// Package tutorial defines the structured document produced for a
// processed video: an ordered list of timestamped steps plus a summary.
// The JSON form of Script is what gets persisted as a content record's
// raw data.
package tutorial

// Step is one narrated, timestamped unit of the generated document.
// Index is zero-based and contiguous within a Script. ImagePath is the
// path the rendered Markdown references, relative to the static root
// (e.g. "images/<file>.jpg"); it is empty until frame extraction runs.
type Step struct {
	Index       int    `json:"step_index"`
	Timestamp   int    `json:"timestamp"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path,omitempty"`
}

// Script is the structured source data of one document.
type Script struct {
	Headline string `json:"headline,omitempty"`
	Summary  string `json:"summary"`
	Steps    []Step `json:"steps"`
}

// ImagePaths returns the image references of all steps that have one,
// in step order.
func (s Script) ImagePaths() []string {
	paths := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		if step.ImagePath != "" {
			paths = append(paths, step.ImagePath)
		}
	}
	return paths
}
