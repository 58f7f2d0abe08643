// Package archive moves processed data files into a per-branch archive
// directory and keeps that directory within a retention cap.
package archive

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timestampLayout is the UTC timestamp embedded in archive names; the
// microseconds are appended separately.
const timestampLayout = "20060102_150405"

// Entry is one file of an archive directory.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	Created time.Time
}

// Name returns the archive file name for path:
// <first "_" token of the stem>_<YYYYMMDD_HHMMSS_ffffff><extension>.
func Name(path string, now time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSpace(strings.TrimSuffix(base, ext))
	token, _, _ := strings.Cut(stem, "_")

	now = now.UTC()
	return fmt.Sprintf("%s_%s_%06d%s", token, now.Format(timestampLayout), now.Nanosecond()/1000, ext)
}

// Move relocates src into dir under its archive name and returns the new
// path. A name collision advances the timestamp by a microsecond.
func Move(src, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	target := filepath.Join(dir, Name(src, now))
	for {
		if _, err := os.Lstat(target); os.IsNotExist(err) {
			break
		}
		now = now.Add(time.Microsecond)
		target = filepath.Join(dir, Name(src, now))
	}

	if err := os.Rename(src, target); err != nil {
		// Work and archive roots may live on different filesystems.
		if cerr := copyFile(src, target); cerr != nil {
			return "", fmt.Errorf("failed to move %s to archive: %w", src, err)
		}
		if rerr := os.Remove(src); rerr != nil {
			return target, fmt.Errorf("archived %s but failed to remove source: %w", src, rerr)
		}
	}
	return target, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// older reports whether a sorts before b: earlier creation time, then the
// smaller name.
func older(a, b Entry) bool {
	if a.Created.Equal(b.Created) {
		return a.Name < b.Name
	}
	return a.Created.Before(b.Created)
}

// List returns the regular files of dir, oldest first.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		created, err := createdAt(path)
		if err != nil {
			continue
		}
		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}
		entries = append(entries, Entry{Name: de.Name(), Path: path, Size: size, Created: created})
	}

	sort.Slice(entries, func(i, j int) bool { return older(entries[i], entries[j]) })
	return entries, nil
}

// FindOldest returns the number of regular files in dir and the oldest of
// them. Files whose timestamps cannot be read are counted but never chosen.
// oldest is empty when dir holds no readable file.
func FindOldest(dir string) (count int, oldest string, err error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read archive directory: %w", err)
	}

	var best *Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		count++

		path := filepath.Join(dir, de.Name())
		created, err := createdAt(path)
		if err != nil {
			continue
		}
		e := Entry{Name: de.Name(), Path: path, Created: created}
		if best == nil || older(e, *best) {
			best = &e
		}
	}

	if best == nil {
		return count, "", nil
	}
	return count, best.Path, nil
}

// Prune deletes the oldest files of dir until at most keep remain. keep <= 0
// disables pruning. The first failed deletion stops the loop and is returned.
func Prune(dir string, keep int, logger *log.Logger) (removed int, err error) {
	if keep <= 0 {
		return 0, nil
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[archive] ", log.LstdFlags)
	}

	count, oldest, err := FindOldest(dir)
	if err != nil {
		return 0, err
	}

	for count > keep && oldest != "" {
		if err := os.Remove(oldest); err != nil {
			logger.Printf("Cleanup failed while removing %s: %v", oldest, err)
			return removed, fmt.Errorf("failed to remove %s: %w", oldest, err)
		}
		removed++
		logger.Printf("Removed old archive: %s", filepath.Base(oldest))

		count, oldest, err = FindOldest(dir)
		if err != nil {
			return removed, err
		}
	}

	return removed, nil
}
