package recipe

import (
	"os"
	"path/filepath"
	"runtime"
)

func isWindowsAbs(p string) bool {
	return runtime.GOOS == "windows" && filepath.IsAbs(p)
}

func joinPath(dir, rel string) string {
	return filepath.Join(dir, rel)
}

func homeDir() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}
