package pkg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/colorstring"
)

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}

// OnPath reports whether dir is listed in the given PATH value.
func OnPath(pathEnv, dir string) bool {
	dir = filepath.Clean(dir)
	for _, entry := range strings.Split(pathEnv, string(os.PathListSeparator)) {
		if entry == "" {
			continue
		}

		if filepath.Clean(entry) == dir {
			return true
		}
	}

	return false
}
