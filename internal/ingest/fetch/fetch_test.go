package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClient serves files from memory and records the calls it receives.
type fakeClient struct {
	files      map[string]string
	loginErr   error
	chdirErr   error
	listErr    error
	retrErr    error
	dir        string
	retrieved  string
	quitCalled int
}

func (c *fakeClient) Login(user, password string) error { return c.loginErr }

func (c *fakeClient) ChangeDir(dir string) error {
	if c.chdirErr != nil {
		return c.chdirErr
	}
	c.dir = dir
	return nil
}

func (c *fakeClient) NameList(dir string) ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	var names []string
	for name := range c.files {
		names = append(names, name)
	}
	return names, nil
}

func (c *fakeClient) Retrieve(name string, w io.Writer) error {
	if c.retrErr != nil {
		return c.retrErr
	}
	body, ok := c.files[name]
	if !ok {
		return errors.New("550 file not found")
	}
	c.retrieved = name
	_, err := io.WriteString(w, body)
	return err
}

func (c *fakeClient) Quit() error {
	c.quitCalled++
	return nil
}

func dialerFor(c *fakeClient) Dialer {
	return func(ctx context.Context, host string, timeout time.Duration) (Client, error) {
		return c, nil
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testCred() Credentials {
	return Credentials{
		Host:           "ftp.branch.local",
		Username:       "invrpt",
		Password:       "secret",
		RemoteFilename: "EXPORT/INVPRT.DAT",
	}
}

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
		exp   string
	}{
		{"exact", []string{"INVPRT.DAT", "INVPRT_OLD.DAT"}, "INVPRT.DAT", "INVPRT.DAT"},
		{"case insensitive exact", []string{"invprt.dat"}, "INVPRT.DAT", "invprt.dat"},
		{"stem prefix", []string{"README", "INVPRT_20240101.DAT"}, "INVPRT.DAT", "INVPRT_20240101.DAT"},
		{"last prefix match", []string{"INVPRT_A.DAT", "INVPRT_C.DAT", "INVPRT_B.DAT"}, "INVPRT.DAT", "INVPRT_C.DAT"},
		{"listing with paths", []string{"EXPORT/invprt.dat"}, "INVPRT.DAT", "invprt.dat"},
		{"no match falls back", []string{"OTHER.DAT"}, "INVPRT.DAT", "INVPRT.DAT"},
		{"empty listing", nil, "INVPRT.DAT", "INVPRT.DAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestMatch(tt.names, tt.want); got != tt.exp {
				t.Errorf("BestMatch(%v, %q) = %q, want %q", tt.names, tt.want, got, tt.exp)
			}
		})
	}
}

func TestFetch_DownloadsBestMatch(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{files: map[string]string{"invprt_0415.dat": "payload\n"}}

	f := New(dialerFor(client), time.Second, testLogger())
	got, err := f.Fetch(context.Background(), testCred(), dir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if want := filepath.Join(dir, "INVPRT.DAT"); got != want {
		t.Errorf("local path = %q, want %q", got, want)
	}
	if client.dir != "EXPORT" {
		t.Errorf("changed into %q, want EXPORT", client.dir)
	}
	if client.retrieved != "invprt_0415.dat" {
		t.Errorf("retrieved %q, want invprt_0415.dat", client.retrieved)
	}
	if client.quitCalled != 1 {
		t.Errorf("Quit called %d times, want 1", client.quitCalled)
	}

	body, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(body) != "payload\n" {
		t.Errorf("body = %q", body)
	}
}

func TestFetch_NoRemoteDir(t *testing.T) {
	client := &fakeClient{files: map[string]string{"INVPRT.DAT": "x"}}
	cred := testCred()
	cred.RemoteFilename = "INVPRT.DAT"

	f := New(dialerFor(client), time.Second, testLogger())
	if _, err := f.Fetch(context.Background(), cred, t.TempDir()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if client.dir != "" {
		t.Errorf("ChangeDir called with %q, want no call", client.dir)
	}
}

func TestFetch_EmptyFileRemoved(t *testing.T) {
	dir := t.TempDir()
	client := &fakeClient{files: map[string]string{"INVPRT.DAT": ""}}

	f := New(dialerFor(client), time.Second, testLogger())
	_, err := f.Fetch(context.Background(), testCred(), dir)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("empty download left %d files behind", len(entries))
	}
}

func TestFetch_FailureKeepsExistingFile(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		want   error
	}{
		{"retrieve", &fakeClient{files: map[string]string{"OTHER.DAT": "x"}}, ErrRetrieve},
		{"empty", &fakeClient{files: map[string]string{"INVPRT.DAT": ""}}, ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			existing := filepath.Join(dir, "INVPRT.DAT")
			if err := os.WriteFile(existing, []byte("pending rows\n"), 0644); err != nil {
				t.Fatal(err)
			}

			f := New(dialerFor(tt.client), time.Second, testLogger())
			if _, err := f.Fetch(context.Background(), testCred(), dir); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			body, err := os.ReadFile(existing)
			if err != nil {
				t.Fatalf("existing file is gone: %v", err)
			}
			if string(body) != "pending rows\n" {
				t.Errorf("existing file changed to %q", body)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 1 {
				t.Errorf("found %d files, want only the existing one", len(entries))
			}
		})
	}
}

func TestFetch_KeepsCause(t *testing.T) {
	client := &fakeClient{loginErr: fmt.Errorf("read tcp: %w", os.ErrDeadlineExceeded)}

	f := New(dialerFor(client), time.Second, testLogger())
	_, err := f.Fetch(context.Background(), testCred(), t.TempDir())
	if !errors.Is(err, ErrLogin) {
		t.Fatalf("expected ErrLogin, got %v", err)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("cause lost from %v", err)
	}
	if !IsTransient(err) {
		t.Error("a timed out login should be transient")
	}
}

// stallingClient blocks in Retrieve until Abort is called.
type stallingClient struct {
	fakeClient
	entered chan struct{}
	aborted chan struct{}
	once    sync.Once
}

func (c *stallingClient) Retrieve(name string, w io.Writer) error {
	close(c.entered)
	<-c.aborted
	return net.ErrClosed
}

func (c *stallingClient) Abort() error {
	c.once.Do(func() { close(c.aborted) })
	return nil
}

func TestFetch_CancelAbortsTransfer(t *testing.T) {
	client := &stallingClient{
		fakeClient: fakeClient{files: map[string]string{"INVPRT.DAT": "x"}},
		entered:    make(chan struct{}),
		aborted:    make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dial := func(ctx context.Context, host string, timeout time.Duration) (Client, error) {
		return client, nil
	}
	f := New(dial, time.Second, testLogger())
	dir := t.TempDir()

	errc := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, testCred(), dir)
		errc <- err
	}()

	<-client.entered
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrRetrieve) {
			t.Errorf("expected ErrRetrieve, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not return after cancel")
	}
	if client.quitCalled != 1 {
		t.Errorf("Quit called %d times, want 1", client.quitCalled)
	}
}

func TestFetch_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		client *fakeClient
		want   error
	}{
		{"login", &fakeClient{loginErr: boom}, ErrLogin},
		{"change dir", &fakeClient{chdirErr: boom}, ErrChangeDir},
		{"list", &fakeClient{listErr: boom}, ErrList},
		{"retrieve", &fakeClient{files: map[string]string{"INVPRT.DAT": "x"}, retrErr: boom}, ErrRetrieve},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			f := New(dialerFor(tt.client), time.Second, testLogger())

			_, err := f.Fetch(context.Background(), testCred(), dir)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if strings.Contains(err.Error(), "secret") {
				t.Errorf("error leaks password: %v", err)
			}
			if tt.client.quitCalled != 1 {
				t.Errorf("Quit called %d times, want 1", tt.client.quitCalled)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("expected no local files after failure, found %d", len(entries))
			}
		})
	}
}

func TestFetch_ConnectError(t *testing.T) {
	dial := func(ctx context.Context, host string, timeout time.Duration) (Client, error) {
		return nil, errors.New("connection refused")
	}

	f := New(dial, time.Second, testLogger())
	_, err := f.Fetch(context.Background(), testCred(), t.TempDir())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("connect failure should be transient")
	}
}

func TestFetch_MissingCredentials(t *testing.T) {
	f := New(dialerFor(&fakeClient{}), time.Second, testLogger())

	_, err := f.Fetch(context.Background(), Credentials{RemoteFilename: "INVPRT.DAT"}, t.TempDir())
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrConnect, true},
		{ErrRetrieve, true},
		{ErrEmptyFile, true},
		{context.DeadlineExceeded, true},
		{ErrLogin, false},
		{ErrChangeDir, false},
		{ErrNoCredentials, false},
		{errors.New("other"), false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCredentialsString(t *testing.T) {
	s := testCred().String()
	if strings.Contains(s, "secret") {
		t.Errorf("String() leaks password: %s", s)
	}
	if s != "invrpt@ftp.branch.local:EXPORT/INVPRT.DAT" {
		t.Errorf("String() = %q", s)
	}
}
