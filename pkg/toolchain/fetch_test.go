package toolchain

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bihealth/seahorse/pkg/manifest"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	for name, content := range files {
		handle, err := writer.Create(name)
		require.NoError(t, err)
		_, err = handle.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return buf.Bytes()
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	writer := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, writer.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0755,
			Size: int64(len(content)),
		}))
		_, err := writer.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func digestOf(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

func serveArchive(t *testing.T, path string, data []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			rw.WriteHeader(http.StatusNotFound)
			return
		}

		rw.Write(data)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestPrebuiltStepUnpacksZip(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"bin/protoc":            "protoc binary",
		"include/descriptor.pb": "descriptor",
		"readme.txt":            "docs",
	})
	server := serveArchive(t, "/protoc.zip", archive)

	staging := t.TempDir()
	prefix := t.TempDir()
	env := NewEnv(testConfig(staging, prefix), &fakeRunner{})

	tool := testTool()
	entry := &manifest.Prebuilt{
		URL:      server.URL + "/protoc.zip",
		Sha256:   digestOf(archive),
		MarkExec: []string{filepath.Join("bin", "protoc")},
	}
	mf := &manifest.Manifest{Vars: map[string]string{}}

	step := PrebuiltStep("protoc", tool, mf, entry)
	require.NoError(t, step.Run(testContext(), env))

	content, err := os.ReadFile(filepath.Join(prefix, "bin", "protoc"))
	require.NoError(t, err)
	assert.Equal(t, "protoc binary", string(content))

	// the stamp makes the second run a no-op
	err = step.Run(testContext(), env)
	require.ErrorIs(t, err, ErrSkipped)
}

func TestPrebuiltStepRedownloadsWhenArtifactsVanish(t *testing.T) {
	archive := buildZip(t, map[string]string{"bin/protoc": "protoc binary"})
	server := serveArchive(t, "/protoc.zip", archive)

	staging := t.TempDir()
	prefix := t.TempDir()
	env := NewEnv(testConfig(staging, prefix), &fakeRunner{})

	entry := &manifest.Prebuilt{URL: server.URL + "/protoc.zip", Sha256: digestOf(archive)}
	mf := &manifest.Manifest{Vars: map[string]string{}}
	step := PrebuiltStep("protoc", testTool(), mf, entry)

	require.NoError(t, step.Run(testContext(), env))
	require.NoError(t, os.Remove(filepath.Join(prefix, "bin", "protoc")))

	require.NoError(t, step.Run(testContext(), env))
	_, err := os.Stat(filepath.Join(prefix, "bin", "protoc"))
	require.NoError(t, err)
}

func TestPrebuiltStepRejectsBadChecksum(t *testing.T) {
	archive := buildZip(t, map[string]string{"bin/protoc": "protoc binary"})
	server := serveArchive(t, "/protoc.zip", archive)

	env := NewEnv(testConfig(t.TempDir(), t.TempDir()), &fakeRunner{})
	entry := &manifest.Prebuilt{
		URL:    server.URL + "/protoc.zip",
		Sha256: "deadbeef",
	}
	mf := &manifest.Manifest{Vars: map[string]string{}}

	err := PrebuiltStep("protoc", testTool(), mf, entry).Run(testContext(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Checksum mismatch")
}

func TestPrebuiltStepStripsTarPrefix(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"protobuf-25.1/bin/protoc": "protoc binary",
	})
	server := serveArchive(t, "/protoc.tar.gz", archive)

	prefix := t.TempDir()
	env := NewEnv(testConfig(t.TempDir(), prefix), &fakeRunner{})
	entry := &manifest.Prebuilt{
		URL:    server.URL + "/protoc.tar.gz",
		Sha256: digestOf(archive),
		Strip:  1,
	}
	mf := &manifest.Manifest{Vars: map[string]string{}}

	require.NoError(t, PrebuiltStep("protoc", testTool(), mf, entry).Run(testContext(), env))

	content, err := os.ReadFile(filepath.Join(prefix, "bin", "protoc"))
	require.NoError(t, err)
	assert.Equal(t, "protoc binary", string(content))
}

func TestPrebuiltStepRejectsUnknownFormat(t *testing.T) {
	server := serveArchive(t, "/protoc.rar", []byte("not an archive"))

	env := NewEnv(testConfig(t.TempDir(), t.TempDir()), &fakeRunner{})
	entry := &manifest.Prebuilt{URL: server.URL + "/protoc.rar"}
	mf := &manifest.Manifest{Vars: map[string]string{}}

	err := PrebuiltStep("protoc", testTool(), mf, entry).Run(testContext(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"../evil.txt": "outside",
	})

	path := filepath.Join(t.TempDir(), "protoc.zip")
	require.NoError(t, os.WriteFile(path, archive, 0660))

	handle, err := os.Open(path)
	require.NoError(t, err)
	defer handle.Close()

	parent := t.TempDir()
	dest := filepath.Join(parent, "prefix")
	require.NoError(t, os.MkdirAll(dest, 0770))

	err = extractZip(handle, dest, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")

	_, statErr := os.Stat(filepath.Join(parent, "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStripPath(t *testing.T) {
	tests := []struct {
		item     string
		strip    int
		expected string
	}{
		{"bin/protoc", 0, filepath.Join("bin", "protoc")},
		{"protobuf-25.1/bin/protoc", 1, filepath.Join("bin", "protoc")},
		{"protobuf-25.1", 1, ""},
		{"./bin/protoc", 0, filepath.Join("bin", "protoc")},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripPath(tt.item, tt.strip), "stripPath(%q, %d)", tt.item, tt.strip)
	}
}

func TestStampsRoundTrip(t *testing.T) {
	staging := t.TempDir()

	stamps, err := readStamps(staging)
	require.NoError(t, err)
	assert.Empty(t, stamps)

	stamps["protoc"] = "https://example.com/protoc.zip#abc"
	require.NoError(t, writeStamps(staging, stamps))

	loaded, err := readStamps(staging)
	require.NoError(t, err)
	assert.Equal(t, stamps, loaded)
}
