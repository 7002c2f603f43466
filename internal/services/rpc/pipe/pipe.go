// Package pipe serves the line protocol over a duplex byte stream such as a
// process's standard input and output.
//
// One goroutine reads frames; requests are processed and answered strictly in
// read order, and each response line is flushed before the next frame is
// handled.
package pipe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
)

// DefaultMaxFrameSize bounds a single request line.
const DefaultMaxFrameSize = 1 << 20

const readBufferSize = 64 << 10

// Option configures a Server.
type Option func(*Server)

// WithMaxFrameSize overrides the maximum accepted line length in bytes.
func WithMaxFrameSize(size int) Option {
	return func(s *Server) {
		if size > 0 {
			s.maxFrameSize = size
		}
	}
}

// WithLogger routes transport logs to logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logf = logger.Printf
		}
	}
}

// Server answers line protocol requests read from a stream.
type Server struct {
	handler      *protocol.Handler
	maxFrameSize int
	logf         func(format string, args ...any)
}

// New creates a pipe server that hands decoded requests to handler.
func New(handler *protocol.Handler, opts ...Option) *Server {
	s := &Server{
		handler:      handler,
		maxFrameSize: DefaultMaxFrameSize,
		logf:         log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type frame struct {
	data    []byte
	tooLong bool
	err     error
}

// Serve reads frames from r and writes responses to w until r reaches end of
// stream or ctx is canceled. Malformed frames are answered with an error
// response and never end the session. The returned error is nil on a clean
// end of stream or cancellation.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	if s == nil || s.handler == nil {
		return fmt.Errorf("pipe server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan frame)
	go s.readFrames(ctx, bufio.NewReaderSize(r, readBufferSize), frames)

	out := bufio.NewWriter(w)
	for {
		var next frame
		select {
		case <-ctx.Done():
			return nil
		case next = <-frames:
		}

		if next.err != nil {
			if errors.Is(next.err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read frame: %w", next.err)
		}

		resp, ok := s.process(ctx, next)
		if !ok {
			continue
		}
		if err := protocol.WriteFrame(out, resp); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flush frame: %w", err)
		}
	}
}

func (s *Server) process(ctx context.Context, next frame) (protocol.Response, bool) {
	if next.tooLong {
		return protocol.Failure(nil, apperrors.Newf(apperrors.CodeParseError, "frame exceeds %d bytes", s.maxFrameSize)), true
	}
	req, decodeErr := protocol.DecodeRequest(next.data)
	if decodeErr != nil {
		s.logf("rejected frame: code=%s message=%s", decodeErr.Code, decodeErr.Message)
		return protocol.Failure(req.ID, decodeErr), true
	}
	return s.handler.Handle(ctx, req)
}

// readFrames delivers non-blank lines until the reader fails. It stops early
// when ctx ends, though a blocked read only returns once the stream does.
func (s *Server) readFrames(ctx context.Context, r *bufio.Reader, frames chan<- frame) {
	for {
		data, tooLong, err := readLine(r, s.maxFrameSize)
		if err != nil && len(data) == 0 && !tooLong {
			send(ctx, frames, frame{err: err})
			return
		}
		if tooLong || len(bytes.TrimSpace(data)) > 0 {
			if !send(ctx, frames, frame{data: data, tooLong: tooLong}) {
				return
			}
		}
		if err != nil {
			send(ctx, frames, frame{err: err})
			return
		}
	}
}

func send(ctx context.Context, frames chan<- frame, f frame) bool {
	select {
	case <-ctx.Done():
		return false
	case frames <- f:
		return true
	}
}

// readLine returns the next line without its terminator. Lines longer than
// max are consumed and reported as too long. A final line without a
// terminator is returned together with io.EOF.
func readLine(r *bufio.Reader, max int) ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > max+1 {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line = bytes.TrimRight(line, "\r\n")
		return line, tooLong, err
	}
}
