// Package atomicfile provides crash-safe file replacement primitives.
//
// Every persisted artefact in this service (state JSON, reports, TTUM files)
// is written by staging to a temp file in the target directory, syncing it,
// and renaming it over the destination. Readers therefore never observe a
// half-written file; a crash leaves either the old content or the new.
package atomicfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces the file at path with data.
//
// The temp file is created in the same directory as path so the final
// rename never crosses a filesystem boundary.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return WriteWith(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteWith atomically replaces the file at path with whatever fn writes.
// fn receives the staged temp file; if it returns an error the temp file is
// removed and the destination is left untouched.
func WriteWith(path string, perm os.FileMode, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	// Any failure from here on removes the staged file.
	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return cause
	}

	if err := fn(tmp); err != nil {
		return cleanup(fmt.Errorf("failed to write staged file for %s: %w", path, err))
	}

	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync staged file for %s: %w", path, err))
	}

	if err := tmp.Chmod(perm); err != nil {
		return cleanup(fmt.Errorf("failed to set mode on staged file for %s: %w", path, err))
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close staged file for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename staged file over %s: %w", path, err)
	}

	// Persist the rename itself. Failure here is not fatal for correctness
	// of the content, so it is reported but the file is already in place.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}

	return nil
}

// SaveJSON atomically writes v as indented JSON to path.
func SaveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteFile(path, data, 0o644)
}

// LoadJSON reads the JSON file at path into v.
func LoadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst non-atomically; used for backups where the
// destination does not exist yet.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}

	return out.Close()
}

// CopyTree recursively copies the directory tree rooted at src into dst.
// Symlinks are not followed; the reconciliation output tree never contains
// them.
func CopyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return CopyFile(path, target)
	})
}
