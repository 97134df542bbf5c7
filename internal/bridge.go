package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

const (
	remoteChunkSize = 8192
	stdinChunkSize  = 1024
)

// RemoteStream is the live bidirectional byte channel to a running
// container's pseudo-terminal. The container layer hands one out; the
// bridge only uses it and closes it, it never creates or destroys the
// underlying container.
type RemoteStream interface {
	io.ReadWriteCloser

	// Resize sets the remote pseudo-terminal dimensions. Best effort:
	// the bridge swallows failures, a stale size is cosmetic.
	Resize(height, width uint) error
}

// AttachInteractive relays bytes between the local terminal and the
// remote stream until the remote side closes. When stdin is a real
// terminal it is switched to raw mode for the duration of the call and
// the remote terminal size tracks the local one across SIGWINCH.
//
// Every byte the user types is handed to logger (when non-nil) before
// it is forwarded, unmodified, to the remote stream. Remote output is
// passed through to stdout untouched and unrecorded.
//
// On every exit path the stream is closed, the previous terminal state
// is restored and the SIGWINCH registration is removed.
func AttachInteractive(stream RemoteStream, logger *SessionLogger) error {
	defer stream.Close()

	stdinFd := int(os.Stdin.Fd())
	var input io.Reader

	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)

		syncRemoteSize(stream, stdinFd)

		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		defer func() {
			signal.Stop(winch)
			close(winch)
		}()
		go func() {
			for range winch {
				syncRemoteSize(stream, stdinFd)
			}
		}()

		input = os.Stdin
	}

	return relay(stream, input, os.Stdout, logger)
}

// relay copies remote output to output and, when input is non-nil,
// input bytes to the remote stream (through the logger first). It
// returns when the remote stream closes or fails; input exhaustion
// alone does not end the session, the remote side decides when it is
// over.
func relay(stream RemoteStream, input io.Reader, output io.Writer, logger *SessionLogger) error {
	remoteDone := make(chan error, 1)

	go func() {
		buf := make([]byte, remoteChunkSize)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				// Interactive session: write through immediately.
				if _, werr := output.Write(buf[:n]); werr != nil {
					remoteDone <- fmt.Errorf("write remote output: %w", werr)
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					remoteDone <- nil
				} else {
					remoteDone <- fmt.Errorf("read remote stream: %w", err)
				}
				return
			}
		}
	}()

	if input != nil {
		go func() {
			buf := make([]byte, stdinChunkSize)
			for {
				n, err := input.Read(buf)
				if n > 0 {
					if logger != nil {
						logger.LogInput(buf[:n])
					}
					if _, werr := stream.Write(buf[:n]); werr != nil {
						return
					}
				}
				if err != nil {
					// A real terminal never yields EOF here; any error
					// means input is gone. Stop forwarding but keep the
					// session alive until the remote closes.
					return
				}
			}
		}()
	}

	return <-remoteDone
}

// syncRemoteSize propagates the local terminal dimensions to the
// remote pseudo-terminal. Failures are swallowed.
func syncRemoteSize(stream RemoteStream, fd int) {
	width, height, err := term.GetSize(fd)
	if err != nil {
		return
	}
	if err := stream.Resize(uint(height), uint(width)); err != nil {
		LogDebug("Remote resize failed: %v", err)
	}
}
