// Package manifest loads the tool manifest which describes how each
// toolchain is fetched, built and installed.
package manifest

import (
	_ "embed"
	"os"
	"regexp"
	"runtime"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed tools.yml
var defaultManifest []byte

type Prebuilt struct {
	URL      string   `yaml:"url"`
	Sha256   string   `yaml:"sha256"`
	Strip    int      `yaml:"strip"`
	MarkExec []string `yaml:"markExec,omitempty"`
}

type CMake struct {
	Options []string `yaml:"options"`
}

type Hooks struct {
	Post string `yaml:"post,omitempty"`
}

// Tool describes one installable toolchain
type Tool struct {
	Repo       string              `yaml:"repo"`
	Checkout   string              `yaml:"checkout"`
	Submodules bool                `yaml:"submodules"`
	MinVersion string              `yaml:"minVersion,omitempty"`
	VersionCmd string              `yaml:"versionCmd,omitempty"`
	Packages   []string            `yaml:"packages"`
	CMake      CMake               `yaml:"cmake"`
	Artifacts  []string            `yaml:"artifacts"`
	Prebuilt   map[string]Prebuilt `yaml:"prebuilt,omitempty"`
	Hooks      Hooks               `yaml:"hooks,omitempty"`
}

type Manifest struct {
	Vars  map[string]string `yaml:"vars"`
	Tools map[string]Tool   `yaml:"tools"`
}

// Load parses the manifest at the given path. An empty path selects the
// embedded default manifest.
func Load(path string) (*Manifest, error) {
	data := defaultManifest
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "Could not open file %s.", path)
		}
	}

	var mf Manifest
	err := yaml.Unmarshal(data, &mf)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse manifest %s.", path)
	}

	if mf.Vars == nil {
		mf.Vars = map[string]string{}
	}

	return &mf, nil
}

// Tool looks up the named tool
func (m *Manifest) Tool(name string) (*Tool, error) {
	tool, ok := m.Tools[name]
	if !ok {
		return nil, eris.Errorf("Tool %s not found in manifest", name)
	}

	return &tool, nil
}

var varMatcher = regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

// ExpandVars replaces {VAR} placeholders with values from the manifest's
// vars section. GOOS and GOARCH are always available.
func (m *Manifest) ExpandVars(value string) string {
	return varMatcher.ReplaceAllStringFunc(value, func(varName string) string {
		varName = varName[1 : len(varName)-1]
		switch varName {
		case "GOOS":
			return runtime.GOOS
		case "GOARCH":
			return runtime.GOARCH
		}

		result, ok := m.Vars[varName]
		if ok {
			return result
		}
		return ""
	})
}

// PrebuiltFor returns the prebuilt entry matching the given platform, if any
func (t *Tool) PrebuiltFor(goos, goarch string) (*Prebuilt, bool) {
	entry, ok := t.Prebuilt[goos+"-"+goarch]
	if !ok {
		return nil, false
	}

	return &entry, true
}
