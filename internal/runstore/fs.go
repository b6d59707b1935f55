package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StateDirName holds run bookkeeping under an output root.
const StateDirName = ".lwdecomp"

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// ResetDir removes path recursively and recreates it empty.
func ResetDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("reset directory: empty path")
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	return Mkdir(path)
}

func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".lwdecomp-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// WriteLines writes one entry per line with a trailing newline.
func WriteLines(path string, lines []string) error {
	out := strings.Join(lines, "\n")
	if out != "" {
		out += "\n"
	}
	return WriteBytes(path, []byte(out))
}

// ReadLines returns the non-empty lines of path. A missing file yields
// no lines and no error.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func StateDir(outputRoot string) string {
	return filepath.Join(outputRoot, StateDirName)
}

// CheckFolderName accepts only a single plain path component that is not
// one of the bookkeeping entries. Batch folders are wiped with
// os.RemoveAll, so "..", "." or a nested path would reach outside them.
func CheckFolderName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("folder name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("folder name %q is not allowed", name)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || filepath.IsAbs(name) || filepath.VolumeName(name) != "":
		return fmt.Errorf("folder name %q must be a single path component", name)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("folder name %q has surrounding spaces", name)
	case strings.EqualFold(name, StateDirName) || strings.EqualFold(name, outputLockDirName):
		return fmt.Errorf("folder name %q is reserved", name)
	}
	return nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// EnsureWritableDir creates path and proves a file can be written in it.
func EnsureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "lwdecomp-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
