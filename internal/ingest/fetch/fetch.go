// Package fetch retrieves branch extract files from a remote host.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout bounds connecting and each remote operation.
const DefaultTimeout = 30 * time.Second

// Credentials identify the remote extract of one branch.
type Credentials struct {
	Host     string
	Username string
	Password string
	// RemoteFilename is the configured remote path, e.g. "EXPORT/INVPRT.DAT".
	RemoteFilename string
}

// String omits the password.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s:%s", c.Username, c.Host, c.RemoteFilename)
}

// Client is the remote file capability Fetch needs.
type Client interface {
	Login(user, password string) error
	ChangeDir(dir string) error
	NameList(dir string) ([]string, error)
	Retrieve(name string, w io.Writer) error
	Quit() error
}

// Dialer opens a Client connection to host. timeout bounds the connect and
// every later operation on the connection.
type Dialer func(ctx context.Context, host string, timeout time.Duration) (Client, error)

// Fetcher downloads remote extracts.
type Fetcher struct {
	dial    Dialer
	timeout time.Duration
	logger  *log.Logger
}

// New creates a Fetcher. A nil dial uses DialFTP, a zero timeout uses
// DefaultTimeout and a nil logger writes to stderr.
func New(dial Dialer, timeout time.Duration, logger *log.Logger) *Fetcher {
	if dial == nil {
		dial = DialFTP
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[fetch] ", log.LstdFlags)
	}
	return &Fetcher{dial: dial, timeout: timeout, logger: logger}
}

// Fetch downloads the branch extract into saveDir and returns the local path.
//
// The remote directory is listed and the entry best matching the configured
// file name is retrieved (see BestMatch). The local copy is always named
// after the configured file name and only replaces an existing file of that
// name after a complete, non-empty transfer. A zero-byte download is
// discarded and reported as ErrEmptyFile.
func (f *Fetcher) Fetch(ctx context.Context, cred Credentials, saveDir string) (string, error) {
	if cred.Host == "" || cred.RemoteFilename == "" {
		return "", ErrNoCredentials
	}

	client, err := f.dial(ctx, cred.Host, f.timeout)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrConnect, cred.Host, err)
	}
	defer func() {
		if err := client.Quit(); err != nil {
			f.logger.Printf("Error closing connection to %s: %v", cred.Host, err)
		}
	}()
	// Unblock a stalled transfer when the caller gives up.
	if a, ok := client.(aborter); ok {
		stop := context.AfterFunc(ctx, func() {
			if err := a.Abort(); err != nil {
				f.logger.Printf("Error aborting transfer from %s: %v", cred.Host, err)
			}
		})
		defer stop()
	}

	if err := client.Login(cred.Username, cred.Password); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLogin, cred, err)
	}

	remoteDir, remoteName := path.Split(cred.RemoteFilename)
	if remoteDir = strings.TrimSuffix(remoteDir, "/"); remoteDir != "" {
		if err := client.ChangeDir(remoteDir); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrChangeDir, remoteDir, err)
		}
	}

	names, err := client.NameList(".")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrList, cred.Host, err)
	}
	match := BestMatch(names, remoteName)
	if match != remoteName {
		f.logger.Printf("Using remote file %s for %s", match, remoteName)
	}

	target := filepath.Join(saveDir, remoteName)
	size, err := download(client, match, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s:%s: %w", ErrRetrieve, cred.Host, match, err)
	}
	if size == 0 {
		return "", fmt.Errorf("%w: %s:%s", ErrEmptyFile, cred.Host, match)
	}

	f.logger.Printf("Downloaded %d bytes to %s", size, target)
	return target, nil
}

// aborter is implemented by clients whose connection can be torn down while
// another goroutine is using it.
type aborter interface {
	Abort() error
}

// TempPrefix starts the name of an in-progress download. Such files are not
// pending work.
const TempPrefix = ".download-"

// download retrieves name into a temporary file next to target and renames
// it over target once a non-empty transfer completed. target is left alone
// on failure or when nothing was received.
func download(client Client, name, target string) (int64, error) {
	out, err := os.CreateTemp(filepath.Dir(target), TempPrefix+filepath.Base(target)+".*")
	if err != nil {
		return 0, err
	}
	tmp := out.Name()
	defer os.Remove(tmp)

	if err := client.Retrieve(name, out); err != nil {
		_ = out.Close()
		return 0, err
	}
	info, err := out.Stat()
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}

	if err := os.Rename(tmp, target); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// BestMatch picks the remote entry to download for the configured file name.
// An entry equal to want ignoring case wins; otherwise the last (in sorted
// order) entry whose name starts with want's stem, ignoring case. When
// nothing matches want itself is returned.
func BestMatch(names []string, want string) string {
	lowerWant := strings.ToLower(want)
	stem := strings.ToLower(strings.TrimSuffix(want, path.Ext(want)))

	var candidates []string
	for _, n := range names {
		base := path.Base(strings.TrimSpace(n))
		lower := strings.ToLower(base)
		if lower == lowerWant {
			return base
		}
		if stem != "" && strings.HasPrefix(lower, stem) {
			candidates = append(candidates, base)
		}
	}

	if len(candidates) == 0 {
		return want
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1]
}
