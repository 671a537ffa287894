package toolchain

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"

	"github.com/bihealth/seahorse/pkg/manifest"
)

// ToolCheck describes one external collaborator the pipeline shells out to
type ToolCheck struct {
	Name        string
	VersionArgs []string
	Optional    bool
}

// CheckResult is the outcome of probing one external tool
type CheckResult struct {
	Check   ToolCheck
	Path    string
	Version string
	Err     error
}

// RequiredTools lists the external tools a source build depends on
func RequiredTools() []ToolCheck {
	return []ToolCheck{
		{Name: "git", VersionArgs: []string{"--version"}},
		{Name: "cmake", VersionArgs: []string{"--version"}},
		{Name: "make", VersionArgs: []string{"--version"}},
		{Name: "c++", VersionArgs: []string{"--version"}},
	}
}

var versionMatcher = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the first version-looking token from a tool's
// version output
func ParseVersion(output string) (*semver.Version, error) {
	match := versionMatcher.FindString(output)
	if match == "" {
		return nil, eris.Errorf("No version found in %q", output)
	}

	version, err := semver.NewVersion(match)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse version %s", match)
	}

	return version, nil
}

// CheckTool probes one external tool: resolves it on PATH and asks it for
// its version
func CheckTool(ctx context.Context, runner Runner, check ToolCheck) CheckResult {
	result := CheckResult{Check: check}

	path, err := runner.LookPath(check.Name)
	if err != nil {
		result.Err = err
		return result
	}
	result.Path = path

	output, err := runner.Output(ctx, "", check.Name, check.VersionArgs...)
	if err != nil {
		result.Err = err
		return result
	}

	version, err := ParseVersion(output)
	if err != nil {
		// tools with unparseable version output still count as present
		return result
	}

	result.Version = version.String()
	return result
}

// UpToDate reports whether an install run can be skipped outright. Without
// a pinned minimum version it always returns false: a plain install run
// rebuilds and overwrites the artifacts every time.
func UpToDate(ctx context.Context, env *Env, name string, tool *manifest.Tool) (bool, error) {
	if tool.MinVersion == "" {
		return false, nil
	}

	return InstalledSatisfies(ctx, env, name, tool)
}

// InstalledSatisfies reports whether the tool already installed in the
// prefix satisfies the manifest's minimum version. With no minimum pinned
// the check only requires the binary to exist.
func InstalledSatisfies(ctx context.Context, env *Env, name string, tool *manifest.Tool) (bool, error) {
	if len(tool.Artifacts) == 0 {
		return false, nil
	}

	binary := filepath.Join(env.Config.Prefix, "bin", tool.Artifacts[0])
	exists, err := env.Exists(binary)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if tool.MinVersion == "" {
		return true, nil
	}

	versionCmd := tool.VersionCmd
	if versionCmd == "" {
		versionCmd = "--version"
	}

	output, err := env.Runner.Output(ctx, "", binary, versionCmd)
	if err != nil {
		// a binary that can't report its version is treated as stale
		log(ctx).Debug().Err(err).Msgf("%s failed to report its version", binary)
		return false, nil
	}

	installed, err := ParseVersion(output)
	if err != nil {
		return false, nil
	}

	required, err := semver.NewVersion(tool.MinVersion)
	if err != nil {
		return false, eris.Wrapf(err, "Invalid minVersion %s for tool %s", tool.MinVersion, name)
	}

	return !installed.LessThan(required), nil
}
