package internal

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeStream is an in-memory RemoteStream. Reads are served from a
// script of chunks; the final read returns the configured error.
type fakeStream struct {
	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	written bytes.Buffer
	resizes [][2]uint
	closed  bool
}

func newFakeStream(readErr error, chunks ...string) *fakeStream {
	fs := &fakeStream{readErr: readErr}
	for _, c := range chunks {
		fs.chunks = append(fs.chunks, []byte(c))
	}
	return fs
}

func (f *fakeStream) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chunks) == 0 {
		return 0, f.readErr
	}
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	n := copy(p, chunk)
	return n, nil
}

func (f *fakeStream) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) Resize(height, width uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]uint{height, width})
	return nil
}

func (f *fakeStream) writtenString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func TestRelay_RemoteOutputPassedThrough(t *testing.T) {
	stream := newFakeStream(io.EOF, "hello ", "world")
	var output bytes.Buffer

	if err := relay(stream, nil, &output, nil); err != nil {
		t.Fatalf("relay() error = %v", err)
	}
	if got := output.String(); got != "hello world" {
		t.Errorf("Output = %q, want %q", got, "hello world")
	}
}

func TestRelay_RemoteErrorPropagates(t *testing.T) {
	wantErr := errors.New("connection reset")
	stream := newFakeStream(wantErr, "partial")
	var output bytes.Buffer

	err := relay(stream, nil, &output, nil)
	if err == nil {
		t.Fatal("relay() error = nil, want wrapped stream error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("relay() error = %v, want wrapped %v", err, wantErr)
	}
	if got := output.String(); got != "partial" {
		t.Errorf("Output before failure = %q, want %q", got, "partial")
	}
}

// blockingStream never returns from Read until released, so the input
// goroutine has time to drain its side.
type blockingStream struct {
	fakeStream
	release chan struct{}
	once    sync.Once
}

func (b *blockingStream) Read(p []byte) (int, error) {
	<-b.release
	return 0, io.EOF
}

func (b *blockingStream) Unblock() {
	b.once.Do(func() { close(b.release) })
}

func TestRelay_InputForwardedAndRecorded(t *testing.T) {
	stream := &blockingStream{release: make(chan struct{})}

	dbPath := filepath.Join(t.TempDir(), "logs.db")
	logger := NewSessionLogger(dbPath, true)
	sessionID, err := logger.OpenSession(testMeta())
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	input := bytes.NewReader([]byte("echo hi\r"))
	var output bytes.Buffer

	done := make(chan error, 1)
	go func() { done <- relay(stream, input, &output, logger) }()

	// The input side runs concurrently; wait for the bytes to land on
	// the stream before letting the remote side finish.
	deadline := time.After(2 * time.Second)
	for stream.writtenString() != "echo hi\r" {
		select {
		case <-deadline:
			t.Fatalf("Forwarded input = %q, want %q", stream.writtenString(), "echo hi\r")
		case <-time.After(5 * time.Millisecond):
		}
	}
	stream.Unblock()

	if err := <-done; err != nil {
		t.Fatalf("relay() error = %v", err)
	}
	logger.CloseSession("normal")

	assertMessages(t, dbPath, sessionID, []string{"echo hi"})
}

func TestRelay_InputEOFKeepsSessionAlive(t *testing.T) {
	stream := &blockingStream{release: make(chan struct{})}
	input := bytes.NewReader([]byte("ls\r")) // exhausted immediately
	var output bytes.Buffer

	done := make(chan error, 1)
	go func() { done <- relay(stream, input, &output, nil) }()

	// Input EOF must not end the relay; only the remote side does.
	select {
	case err := <-done:
		t.Fatalf("relay() returned %v before remote closed", err)
	case <-time.After(50 * time.Millisecond):
	}

	stream.Unblock()
	if err := <-done; err != nil {
		t.Fatalf("relay() error = %v", err)
	}
}

func TestAttachInteractive_ClosesStream(t *testing.T) {
	// Under `go test` stdin is not a terminal, so the raw-mode and
	// SIGWINCH paths are skipped and no input is forwarded.
	stream := newFakeStream(io.EOF, "bye")

	if err := AttachInteractive(stream, nil); err != nil {
		t.Fatalf("AttachInteractive() error = %v", err)
	}

	stream.mu.Lock()
	closed := stream.closed
	stream.mu.Unlock()
	if !closed {
		t.Error("AttachInteractive() did not close the stream")
	}
}

func TestSyncRemoteSize_BadFdSwallowed(t *testing.T) {
	stream := newFakeStream(io.EOF)
	syncRemoteSize(stream, -1)

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if len(stream.resizes) != 0 {
		t.Errorf("Resize called %d times for invalid fd, want 0", len(stream.resizes))
	}
}
