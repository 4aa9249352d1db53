package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildObjectKey(t *testing.T) {
	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

	key := BuildObjectKey(now, "report final.pdf")

	assert.True(t, strings.HasPrefix(key, "20240517-103000-"), key)
	assert.True(t, strings.HasSuffix(key, "-report-final.pdf"), key)
}

func TestBuildObjectKey_Unique(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, BuildObjectKey(now, "a.txt"), BuildObjectKey(now, "a.txt"))
}

func Test_sanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{
			name:     "plain name untouched",
			fileName: "archive.zip",
			want:     "archive.zip",
		},
		{
			name:     "whitespace runs collapsed",
			fileName: "my   holiday \t photos.png",
			want:     "my-holiday-photos.png",
		},
		{
			name:     "path separators stripped",
			fileName: "../../etc/passwd",
			want:     "etcpasswd",
		},
		{
			name:     "escape-sensitive characters stripped",
			fileName: "report?v=2#final%.pdf",
			want:     "reportv=2final.pdf",
		},
		{
			name:     "everything stripped falls back",
			fileName: "///",
			want:     "file",
		},
		{
			name:     "empty name falls back",
			fileName: "",
			want:     "file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFileName(tt.fileName))
		})
	}
}
