// Package markdown renders a tutorial script into the final document.
// Rendering is pure: the same script always yields byte-identical
// output.
package markdown

import (
	"fmt"
	"strings"

	"github.com/vid2md/vid2md/internal/tutorial"
)

// FormatTimestamp renders seconds as zero-padded mm:ss. Timestamps are
// bounded by a single video's duration, so minutes never overflow two
// digits in practice.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Render produces the Markdown document for a script. Each step becomes
// a section with a [mm:ss](timestamp) link, its extracted image, and
// the description. A leading summary section is emitted when the script
// carries a summary.
func Render(script tutorial.Script) string {
	var parts []string

	if script.Summary != "" {
		parts = append(parts, fmt.Sprintf("## 摘要\n\n%s\n", script.Summary))
	}
	parts = append(parts, "## 步骤\n")

	for _, step := range script.Steps {
		title := step.Title
		if title == "" {
			title = "步骤"
		}
		parts = append(parts, fmt.Sprintf("### %s [%s](timestamp)\n", title, FormatTimestamp(step.Timestamp)))
		if step.Description != "" {
			parts = append(parts, step.Description+"\n")
		}
		if step.ImagePath != "" {
			parts = append(parts, fmt.Sprintf("![%s](%s)\n", title, step.ImagePath))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "## 总结与互动\n")
	parts = append(parts, "以上就是本次的分享，希望对你有帮助！如果有疑问或不同的看法，欢迎在评论区留言交流。\n")

	return strings.TrimSpace(strings.Join(parts, "\n")) + "\n"
}
