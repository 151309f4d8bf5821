package util

import (
	"os"
)

// CheckFileExists reports whether fpath can be stat'ed.
func CheckFileExists(fpath string) bool {
	_, e := os.Stat(fpath)
	return e == nil
}

// EnsureDir creates dir and its parents with mode 0755 if missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
