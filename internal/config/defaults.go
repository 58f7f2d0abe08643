package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultContent = `# invrpt configuration
#
# Every key can be overridden from the environment, e.g.
#   INVRPT_SYNC_MAX_ARCHIVE_FILES=20

# DIBOL .DEF file describing the INVPRT extract
dibol_schema: INVPRT.DEF

# SQLite database holding branches and invoices
database: data/invrpt.db

sync:
  # <save_folder>/<branch> receives downloads and dropped files
  save_folder: files/work
  # <archive_folder>/<branch> keeps processed files
  archive_folder: files/archive
  # files kept per branch archive, 0 keeps everything
  max_archive_files: 10
  ftp_timeout: 30s
  # daemon: fetch every active branch on this interval, 0s disables polling
  poll_interval: 0s
  # daemon: quiet period before a dropped file is processed
  debounce_interval: 2s

server:
  # daemon dashboard port, 0 disables it
  port: 0

logging:
  # rotating log file in addition to stderr, empty for stderr only
  file: ""
  max_size_mb: 10
  max_backups: 5
  max_age_days: 30
  compress: true
`

// WriteDefault writes the default configuration to path. An existing file
// is left alone and reported as an error.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, []byte(defaultContent), 0644)
}
