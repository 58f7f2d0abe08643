//go:build linux || darwin || freebsd || netbsd || openbsd

package archive

import (
	"time"

	"golang.org/x/sys/unix"
)

// createdAt returns the inode change time, which is the closest portable
// notion of creation time for files written once and then renamed.
func createdAt(path string) (time.Time, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, err
	}
	sec, nsec := st.Ctim.Unix()
	return time.Unix(sec, nsec), nil
}
