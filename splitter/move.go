package splitter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes data to dstDir/name through a temporary file in the same
// directory, so readers never observe a partially written file. An existing file of
// the same name is replaced.
func WriteFileAtomic(dstDir string, name string, data []byte) (string, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", fmt.Errorf("dstDir is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", err
	}
	dstPath := filepath.Join(dstDir, name)

	tmp, err := os.CreateTemp(dstDir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return "", writeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", closeErr
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return dstPath, nil
}
