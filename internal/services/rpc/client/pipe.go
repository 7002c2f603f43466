package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/platform/timeouts"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
)

// PipeOption configures a PipeSession.
type PipeOption func(*PipeSession)

// WithCallTimeout bounds each request/response exchange.
func WithCallTimeout(timeout time.Duration) PipeOption {
	return func(s *PipeSession) {
		if timeout > 0 {
			s.callTimeout = timeout
		}
	}
}

// WithTerminateGrace bounds how long Close waits before killing the server.
func WithTerminateGrace(grace time.Duration) PipeOption {
	return func(s *PipeSession) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

type lineResult struct {
	line []byte
	err  error
}

// PipeSession talks to a server process it spawned over the process's
// standard input and output.
type PipeSession struct {
	envelopeClient

	cmd         *exec.Cmd
	stdin       io.WriteCloser
	lines       chan lineResult
	exited      chan struct{}
	waitErr     error
	callTimeout time.Duration
	grace       time.Duration

	mu        sync.Mutex
	broken    error
	closeOnce sync.Once
	closeErr  error
}

// StartPipe spawns cmd and returns a session speaking the line protocol over
// its standard streams. The command must not have Stdin or Stdout set.
func StartPipe(cmd *exec.Cmd, opts ...PipeOption) (*PipeSession, error) {
	if cmd == nil {
		return nil, fmt.Errorf("server command is required")
	}
	s := &PipeSession{
		cmd:         cmd,
		lines:       make(chan lineResult),
		exited:      make(chan struct{}),
		callTimeout: timeouts.ClientCall,
		grace:       timeouts.TerminateGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.exchange = s.roundTrip

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open server stdin: %w", err)
	}
	s.stdin = stdin
	stdoutReader, stdoutWriter := io.Pipe()
	cmd.Stdout = stdoutWriter
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.WaitDelay = s.grace

	if err := cmd.Start(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("start server: %v", err), err)
	}
	go func() {
		s.waitErr = cmd.Wait()
		_ = stdoutWriter.Close()
		close(s.exited)
	}()
	go s.readLines(bufio.NewReader(stdoutReader))
	return s, nil
}

func (s *PipeSession) readLines(r *bufio.Reader) {
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			s.lines <- lineResult{line: line}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.lines <- lineResult{err: err}
			close(s.lines)
			return
		}
	}
}

// roundTrip writes one frame and, unless notify is set, waits for the next
// line. Requests on a session are serialized, matching the server's
// one-at-a-time read loop.
func (s *PipeSession) roundTrip(ctx context.Context, req protocol.Request, notify bool) (protocol.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return protocol.Response{}, s.broken
	}

	if err := protocol.WriteFrame(s.stdin, req); err != nil {
		return protocol.Response{}, s.fail(apperrors.Wrap(apperrors.CodeTransport, err.Error(), err))
	}
	if notify {
		return protocol.Response{}, nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return protocol.Response{}, s.fail(apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("%s: no response: %v", req.Method, ctx.Err()), ctx.Err()))
	case result, ok := <-s.lines:
		if !ok || result.err != nil {
			err := result.err
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return protocol.Response{}, s.fail(apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("%s: read response: %v", req.Method, err), err))
		}
		resp, err := decodeResponse(result.line)
		if err != nil {
			return protocol.Response{}, s.fail(err)
		}
		return resp, nil
	}
}

// fail marks the session unusable. A stream that lost its framing cannot be
// resynchronized.
func (s *PipeSession) fail(err *apperrors.Error) error {
	s.broken = err
	return err
}

// Close ends the session: it closes the server's input, asks the process to
// terminate and kills it if it has not exited within the grace period.
func (s *PipeSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(terminateSignal())
		}
		select {
		case <-s.exited:
		case <-time.After(s.grace):
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
		go drain(s.lines)
		var exitErr *exec.ExitError
		if s.waitErr != nil && !errors.As(s.waitErr, &exitErr) {
			s.closeErr = fmt.Errorf("wait for server: %w", s.waitErr)
		}
	})
	return s.closeErr
}

func drain(lines <-chan lineResult) {
	for range lines {
	}
}

func terminateSignal() os.Signal {
	if runtime.GOOS == "windows" {
		return os.Interrupt
	}
	return syscall.SIGTERM
}
