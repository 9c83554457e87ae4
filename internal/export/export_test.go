package export

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "My Tutorial", want: "My_Tutorial"},
		{title: "demo-v2_final", want: "demo-v2_final"},
		{title: "视频教程", want: "export"},
		{title: "", want: "export"},
		{title: "__weird__", want: "weird"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.title))
	}
}

func TestBuildRejectsUnfinishedProjects(t *testing.T) {
	p := Packager{StaticDir: t.TempDir()}

	tests := []struct {
		name     string
		status   string
		markdown string
	}{
		{name: "pending project", status: "pending", markdown: "# doc"},
		{name: "processing project", status: "processing", markdown: "# doc"},
		{name: "failed project", status: "failed", markdown: "# doc"},
		{name: "completed but empty document", status: "completed", markdown: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Build(tt.status, "title", tt.markdown, nil)
			assert.ErrorIs(t, err, ErrContentNotReady)
		})
	}
}

func TestBuildArchiveMirrorsImageReferences(t *testing.T) {
	staticDir := t.TempDir()
	imagesDir := filepath.Join(staticDir, "images")
	require.NoError(t, os.MkdirAll(imagesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "p1_30_tok.jpg"), []byte("jpeg-a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "p1_60_tok.jpg"), []byte("jpeg-b"), 0o644))

	p := Packager{StaticDir: staticDir}
	markdown := "## 步骤\n![a](images/p1_30_tok.jpg)\n![b](images/p1_60_tok.jpg)\n"

	data, filename, err := p.Build("completed", "My Demo", markdown, []string{
		"images/p1_30_tok.jpg",
		"images/p1_60_tok.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "My_Demo.zip", filename)

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"My_Demo.md",
		"images/p1_30_tok.jpg",
		"images/p1_60_tok.jpg",
	}, names)

	entry, err := reader.Open("images/p1_30_tok.jpg")
	require.NoError(t, err)
	defer entry.Close()
	content, err := io.ReadAll(entry)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-a", string(content))
}

func TestBuildFailsOnMissingImage(t *testing.T) {
	p := Packager{StaticDir: t.TempDir()}

	_, _, err := p.Build("completed", "t", "# doc", []string{"images/missing.jpg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open image")
}
