package pattern

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasMeta(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"c/e.txt", false},
		{"c/*.txt", true},
		{"**/x", true},
		{"file?.md", true},
		{"[ab].go", true},
		{"{a,b}.go", true},
		{`literal\*star`, false},
		{`a\[b`, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasMeta(tt.in); got != tt.want {
			t.Errorf("HasMeta(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"d/g.txt", ".txt"},
		{"archive.tar.gz", ".gz"},
		{"h", ""},
		{".bashrc", ""},
		{"conf/.env", ""},
		{"name.", ""},
		{"dir.d/file", ""},
		{"a/b.c", ".c"},
	}
	for _, tt := range tests {
		if got := Suffix(tt.in); got != tt.want {
			t.Errorf("Suffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanSource(t *testing.T) {
	got, err := CleanSource("./c//*.txt")
	require.NoError(t, err)
	assert.Equal(t, "c/*.txt", got)

	for _, bad := range []string{"", "   ", "/abs/*.go", "../up", "a/../../b", "c/[x"} {
		_, err := CleanSource(bad)
		assert.ErrorIs(t, err, ErrInvalidPattern, bad)
	}
}

func TestCleanDestination(t *testing.T) {
	cleaned, dirOnly, err := CleanDestination("out/sub/")
	require.NoError(t, err)
	assert.Equal(t, "out/sub", cleaned)
	assert.True(t, dirOnly)

	cleaned, dirOnly, err = CleanDestination("./d/g.txt")
	require.NoError(t, err)
	assert.Equal(t, "d/g.txt", cleaned)
	assert.False(t, dirOnly)

	for _, bad := range []string{"x/*.txt", "{a,b}", "../x", "/etc"} {
		_, _, err := CleanDestination(bad)
		assert.ErrorIs(t, err, ErrInvalidPattern, bad)
	}
}

func TestConflictError(t *testing.T) {
	var err error = &ConflictError{
		Source:      "c/*.py",
		Destination: "h/a.py",
		Path:        "/dst/h/a.py",
		Reason:      ReasonGlobOntoFile,
	}
	wrapped := fmt.Errorf("event 3: %w", err)

	assert.True(t, errors.Is(wrapped, ErrPatternConflict))
	assert.False(t, errors.Is(wrapped, ErrInvalidPattern))
	assert.Contains(t, err.Error(), ReasonGlobOntoFile)
	assert.Contains(t, err.Error(), "h/a.py")

	mirror := &ConflictError{Source: "c", Path: "/dst/c", Reason: ReasonDirectoryOntoFile}
	assert.Contains(t, mirror.Error(), "<mirror>")
}

func TestPairString(t *testing.T) {
	assert.Equal(t, "(c/e.txt, none)", Mirror("c/e.txt").String())
	assert.Equal(t, "(c/*.txt, out)", Map("c/*.txt", "out").String())
}

func TestParsePolicies(t *testing.T) {
	d, err := ParseDirectoryPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DirectoryMerge, d)
	d, err = ParseDirectoryPolicy("error")
	require.NoError(t, err)
	assert.Equal(t, DirectoryReject, d)
	_, err = ParseDirectoryPolicy("replace")
	assert.Error(t, err)

	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateOverwrite, p)
	p, err = ParseDuplicatePolicy("error")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReject, p)
	_, err = ParseDuplicatePolicy("skip")
	assert.Error(t, err)
}
