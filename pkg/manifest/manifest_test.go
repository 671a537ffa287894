package manifest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedManifest(t *testing.T) {
	mf, err := Load("")
	require.NoError(t, err)

	tool, err := mf.Tool("protoc")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/protocolbuffers/protobuf.git", tool.Repo)
	assert.Equal(t, "protobuf", tool.Checkout)
	assert.True(t, tool.Submodules)
	assert.Contains(t, tool.Packages, "cmake")
	assert.Contains(t, tool.Packages, "g++")
	assert.Contains(t, tool.Packages, "git")
	assert.Equal(t, []string{"protoc"}, tool.Artifacts)
}

func TestEmbeddedManifestCarriesPrebuilts(t *testing.T) {
	mf, err := Load("")
	require.NoError(t, err)

	tool, err := mf.Tool("protoc")
	require.NoError(t, err)

	for _, platform := range []struct {
		goos, goarch, asset string
	}{
		{"linux", "amd64", "linux-x86_64"},
		{"linux", "arm64", "linux-aarch_64"},
		{"darwin", "amd64", "osx-x86_64"},
		{"darwin", "arm64", "osx-aarch_64"},
		{"windows", "amd64", "win64"},
	} {
		entry, ok := tool.PrebuiltFor(platform.goos, platform.goarch)
		require.True(t, ok, "%s-%s", platform.goos, platform.goarch)

		url := mf.ExpandVars(entry.URL)
		assert.NotContains(t, url, "{")
		assert.Contains(t, url, platform.asset)
		assert.Contains(t, url, mf.Vars["PROTOC_VERSION"])
	}
}

func TestLoadCustomManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yml")
	content := `
vars:
  VERSION: "25.1"
tools:
  protoc:
    repo: https://example.com/protobuf.git
    checkout: pb
    prebuilt:
      linux-amd64:
        url: https://example.com/protoc-{VERSION}.zip
        sha256: abc
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0660))

	mf, err := Load(path)
	require.NoError(t, err)

	tool, err := mf.Tool("protoc")
	require.NoError(t, err)
	assert.Equal(t, "pb", tool.Checkout)

	entry, ok := tool.PrebuiltFor("linux", "amd64")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/protoc-25.1.zip", mf.ExpandVars(entry.URL))

	_, ok = tool.PrebuiltFor("darwin", "arm64")
	assert.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestToolNotFound(t *testing.T) {
	mf, err := Load("")
	require.NoError(t, err)

	_, err = mf.Tool("frobnicator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicator")
}

func TestExpandVars(t *testing.T) {
	mf := &Manifest{Vars: map[string]string{"VERSION": "25.1"}}

	tests := []struct {
		input    string
		expected string
	}{
		{"static", "static"},
		{"v{VERSION}", "v25.1"},
		{"{VERSION}-{VERSION}", "25.1-25.1"},
		{"{UNKNOWN}", ""},
		{"{GOOS}-{GOARCH}", runtime.GOOS + "-" + runtime.GOARCH},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, mf.ExpandVars(tt.input), "ExpandVars(%q)", tt.input)
	}
}
