//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package archive

import (
	"os"
	"time"
)

func createdAt(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
