package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWantsEmbedding(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/scans/doc.pdf", true},
		{"/scans/DOC.PDF", true},
		{"/scans/searchable_doc.pdf", false},
		{"/scans/notes.txt", false},
		{"/scans/doc.pdf.part", false},
		{"/scans/archive.pdfx", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, wantsEmbedding(tc.path), "path=%q", tc.path)
	}
}

func TestWatchCmdRejectsMissingDir(t *testing.T) {
	_, err := runCLI(t,
		"watch", filepath.Join(t.TempDir(), "absent"),
		"--api-key", "test-key",
	)
	assert.Error(t, err)
}

func TestWatchCmdRejectsFileArgument(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-"), 0o644))

	_, err := runCLI(t, "watch", file, "--api-key", "test-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
