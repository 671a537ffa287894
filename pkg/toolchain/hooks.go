package toolchain

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// RunHook executes a manifest hook through the embedded POSIX shell
// interpreter. The snippet runs with -e, so the first failing command
// aborts the hook.
func RunHook(ctx context.Context, dir string, script string, extraEnv []string) error {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(script), "hook")
	if err != nil {
		return eris.Wrap(err, "failed to parse hook script")
	}

	envVars := append(os.Environ(), extraEnv...)
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(envVars...)),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize hook runner")
	}

	err = runner.Run(ctx, file)
	if err != nil {
		return eris.Wrap(err, "hook failed")
	}

	return nil
}
