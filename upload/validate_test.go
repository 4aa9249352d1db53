package upload

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttlehq/shuttle/session"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		allowed     []string
		wantErr     bool
	}{
		{
			name:        "allowed type within limit",
			contentType: "image/png",
			size:        1024,
		},
		{
			name:        "size at the ceiling",
			contentType: "application/zip",
			size:        MaxFileSize,
		},
		{
			name:        "type not in allow-list",
			contentType: "application/x-msdownload",
			size:        1024,
			wantErr:     true,
		},
		{
			name:        "zero size",
			contentType: "image/png",
			size:        0,
			wantErr:     true,
		},
		{
			name:        "size over the ceiling",
			contentType: "image/png",
			size:        MaxFileSize + 1,
			wantErr:     true,
		},
		{
			name:        "custom allow-list overrides the default",
			contentType: "application/x-tar",
			size:        1024,
			allowed:     []string{"application/x-tar"},
		},
		{
			name:        "default type rejected under custom allow-list",
			contentType: "image/png",
			size:        1024,
			allowed:     []string{"application/x-tar"},
			wantErr:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFile(tt.contentType, tt.size, tt.allowed)
			if tt.wantErr {
				assert.ErrorIs(t, err, session.ErrInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0600))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0600))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0600))

	paths, err := ExpandPaths(
		[]string{filepath.Join(dir, "*.png")},
		pathutil.NewPathModifier(),
		pathutil.NewPathChecker(),
		log.NewLogger(),
	)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.png"),
	}, paths)
}

func TestExpandPaths_LiteralPath(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.png")
	require.NoError(t, ioutil.WriteFile(filePath, []byte("a"), 0600))

	paths, err := ExpandPaths(
		[]string{filePath},
		pathutil.NewPathModifier(),
		pathutil.NewPathChecker(),
		log.NewLogger(),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{filePath}, paths)
}

func TestExpandPaths_SkipsMissing(t *testing.T) {
	dir := t.TempDir()

	paths, err := ExpandPaths(
		[]string{
			filepath.Join(dir, "*.png"),
			filepath.Join(dir, "missing.txt"),
		},
		pathutil.NewPathModifier(),
		pathutil.NewPathChecker(),
		log.NewLogger(),
	)

	require.NoError(t, err)
	assert.Empty(t, paths)
}
