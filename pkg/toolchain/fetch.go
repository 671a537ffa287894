package toolchain

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"

	"github.com/bihealth/seahorse/pkg/manifest"
)

const stampsName = "seahorse.stamps"

var fetchClient = &http.Client{
	Timeout: time.Minute * 30,
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// PrebuiltSteps assembles the pipeline that installs the given tool from a
// release archive instead of a source build.
func PrebuiltSteps(name string, tool *manifest.Tool, mf *manifest.Manifest, entry *manifest.Prebuilt) []Step {
	return []Step{
		{Name: "staging", Run: stagingStep},
		{Name: "bindir", Run: bindirStep},
		PrebuiltStep(name, tool, mf, entry),
		{Name: "hooks", Run: hooksStep(tool)},
	}
}

// PrebuiltStep downloads, verifies and unpacks a release archive into the
// prefix instead of building from source. An unchanged archive (same URL
// and checksum as the recorded stamp) is skipped as long as all artifacts
// are still in place.
func PrebuiltStep(name string, tool *manifest.Tool, mf *manifest.Manifest, entry *manifest.Prebuilt) Step {
	return Step{
		Name: "prebuilt",
		Run: func(ctx context.Context, env *Env) error {
			url := mf.ExpandVars(entry.URL)
			token := url + "#" + entry.Sha256

			stamps, err := readStamps(env.Config.Staging)
			if err != nil {
				return err
			}

			if stamps[name] == token {
				complete := true
				for _, artifact := range tool.Artifacts {
					exists, err := env.Exists(filepath.Join(env.Config.Prefix, "bin", artifact))
					if err != nil {
						return err
					}
					if !exists {
						complete = false
						break
					}
				}

				if complete {
					log(ctx).Info().
						Str("step", "prebuilt").
						Msgf("%s is up to date", name)
					return ErrSkipped
				}
			}

			if env.DryRun {
				log(ctx).Info().
					Bool("command", true).
					Msgf("download %s", url)
				return nil
			}

			digest, archive, err := download(ctx, env, url)
			if err != nil {
				return err
			}
			defer func() {
				archive.Close()
				os.Remove(archive.Name())
			}()

			if entry.Sha256 != "" && digest != entry.Sha256 {
				return eris.Errorf("Checksum mismatch for %s: got %s, expected %s", url, digest, entry.Sha256)
			}

			err = extractArchive(archive, url, env.Config.Prefix, entry.Strip)
			if err != nil {
				return err
			}

			if runtime.GOOS != "windows" {
				// .zip files don't carry permissions so binaries from them
				// have to be fixed up manually
				for _, binPath := range entry.MarkExec {
					binPath = filepath.Join(env.Config.Prefix, binPath)
					fi, err := os.Stat(binPath)
					if err != nil {
						return eris.Wrapf(err, "Failed to read permissions for %s", binPath)
					}

					err = os.Chmod(binPath, fi.Mode()|0700)
					if err != nil {
						return eris.Wrapf(err, "Failed to mark %s as executable", binPath)
					}
				}
			}

			stamps[name] = token
			return writeStamps(env.Config.Staging, stamps)
		},
	}
}

// download fetches the url into a temp file inside the staging directory
// and returns the hex sha256 of the payload together with the open handle,
// positioned at the start of the file.
func download(ctx context.Context, env *Env, url string) (string, *os.File, error) {
	handle, err := os.CreateTemp(env.Config.Staging, "seahorse_dl_*")
	if err != nil {
		return "", nil, eris.Wrap(err, "Failed to create download temp file")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		handle.Close()
		os.Remove(handle.Name())
		return "", nil, eris.Wrapf(err, "Failed to build request for %s", url)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		handle.Close()
		os.Remove(handle.Name())
		return "", nil, eris.Wrapf(err, "Failed to start download for %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		handle.Close()
		os.Remove(handle.Name())
		return "", nil, eris.Errorf("Download of %s failed with status %d", url, resp.StatusCode)
	}

	hash := sha256.New()
	bar := getProgressBar(resp.ContentLength, "     download")
	_, err = io.Copy(io.MultiWriter(handle, hash, bar), resp.Body)
	bar.Finish()
	if err != nil {
		handle.Close()
		os.Remove(handle.Name())
		return "", nil, eris.Wrapf(err, "Failed during download of %s", url)
	}

	_, err = handle.Seek(0, io.SeekStart)
	if err != nil {
		handle.Close()
		os.Remove(handle.Name())
		return "", nil, eris.Wrap(err, "Failed to rewind download")
	}

	return hex.EncodeToString(hash.Sum(nil)), handle, nil
}

func extractArchive(f *os.File, url, destPath string, strip int) error {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return extractZip(f, destPath, strip)
	case strings.HasSuffix(url, ".tar.gz"):
		reader, err := gzip.NewReader(f)
		if err != nil {
			return eris.Wrap(err, "Failed to open gzip stream")
		}
		defer reader.Close()

		return extractTar(reader, destPath, strip)
	case strings.HasSuffix(url, ".tar.xz"):
		reader, err := xz.NewReader(f)
		if err != nil {
			return eris.Wrap(err, "Failed to open xz stream")
		}

		return extractTar(reader, destPath, strip)
	}

	return eris.Errorf("Archive format of %s not supported", url)
}

// stripPath normalizes the archive entry path and removes the first strip
// elements. It returns "" for entries that vanish entirely.
func stripPath(item string, strip int) string {
	parts := strings.Split(filepath.Clean(filepath.FromSlash(item)), string(filepath.Separator))
	if len(parts) <= strip {
		return ""
	}

	return filepath.Join(parts[strip:]...)
}

func openExtractDest(destPath, item string, strip int) (*os.File, string, error) {
	rel := stripPath(item, strip)
	if rel == "" || rel == "." {
		return nil, "", nil
	}

	if !filepath.IsLocal(rel) {
		return nil, "", eris.Errorf("Archive entry %s escapes the destination directory", item)
	}

	dest := filepath.Join(destPath, rel)
	destParent := filepath.Dir(dest)
	err := os.MkdirAll(destParent, 0770)
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to create directory %s", destParent)
	}

	destHandle, err := os.Create(dest)
	if err != nil {
		return nil, "", eris.Wrapf(err, "Failed to create file %s", dest)
	}

	return destHandle, dest, nil
}

func extractZip(f *os.File, destPath string, strip int) error {
	stat, err := f.Stat()
	if err != nil {
		return eris.Wrap(err, "Failed to stat archive")
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return eris.Wrap(err, "Failed to open zip archive")
	}

	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		destHandle, dest, err := openExtractDest(destPath, item.Name, strip)
		if err != nil {
			return err
		}
		if destHandle == nil {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			destHandle.Close()
			return eris.Wrap(err, "Failed to open archive entry")
		}

		_, err = io.Copy(destHandle, itemHandle)
		itemHandle.Close()
		destHandle.Close()
		if err != nil {
			return eris.Wrapf(err, "Failed to write extracted file %s", dest)
		}
	}

	return nil
}

func extractTar(r io.Reader, destPath string, strip int) error {
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return eris.Wrap(err, "Failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		destHandle, dest, err := openExtractDest(destPath, item.Name, strip)
		if err != nil {
			return err
		}
		if destHandle == nil {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			destHandle.Close()
			err := os.Remove(dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to remove placeholder file %s", dest)
			}

			err = os.Symlink(item.Linkname, dest)
			if err != nil {
				return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", dest, item.Linkname)
			}
			continue
		}

		_, err = io.Copy(destHandle, archive)
		destHandle.Close()
		if err != nil {
			return eris.Wrapf(err, "Failed to write extracted file %s", dest)
		}

		os.Chmod(dest, fi.Mode())
	}

	return nil
}

func stampsPath(staging string) string {
	return filepath.Join(staging, stampsName)
}

func readStamps(staging string) (map[string]string, error) {
	stamps := map[string]string{}

	data, err := os.ReadFile(stampsPath(staging))
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return stamps, nil
		}

		return nil, eris.Wrapf(err, "Failed to read stamps file %s", stampsPath(staging))
	}

	err = json.Unmarshal(data, &stamps)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse JSON file %s", stampsPath(staging))
	}

	return stamps, nil
}

func writeStamps(staging string, stamps map[string]string) error {
	data, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "Failed to serialize stamps")
	}

	err = os.WriteFile(stampsPath(staging), data, 0660)
	if err != nil {
		return eris.Wrapf(err, "Failed to write stamps file %s", stampsPath(staging))
	}

	return nil
}
