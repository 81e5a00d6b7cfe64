package analysis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

const (
	maxLineBytes   = 16 << 20
	readBufferSize = 64 << 10
)

// Reader decodes one JSON event per line. Blank lines are ignored; malformed
// lines and lines longer than 16 MiB are logged and skipped.
type Reader struct {
	br      *bufio.Reader
	buf     []byte
	maxLine int
	logger  *zap.Logger
	line    int
	skipped int
}

// NewReader returns a reader over r. A nil logger discards the skip reports.
func NewReader(r io.Reader, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reader{
		br:      bufio.NewReaderSize(r, readBufferSize),
		maxLine: maxLineBytes,
		logger:  logger,
	}
}

// Next returns the next event, or io.EOF when the input is exhausted.
// Events without an id get their line number as id.
func (r *Reader) Next() (*Event, error) {
	for {
		line, tooLong, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		if err != nil {
			return nil, ewrap.Wrapf(err, "read events at line %d", r.line+1)
		}

		r.line++

		if tooLong {
			r.skipped++
			r.logger.Warn("oversized event line skipped", zap.Int("line", r.line), zap.Int("limit", r.maxLine))

			continue
		}

		raw := bytes.TrimSpace(line)
		if len(raw) == 0 {
			continue
		}

		ev := &Event{}

		err = json.Unmarshal(raw, ev)
		if err != nil {
			r.skipped++
			r.logger.Warn("malformed event line skipped", zap.Int("line", r.line), zap.Error(err))

			continue
		}

		if ev.ID == "" {
			ev.ID = strconv.Itoa(r.line)
		}

		return ev, nil
	}
}

// readLine returns the next line without its terminator. The slice is reused
// by the next call. A line longer than maxLine is read to its end and dropped
// with tooLong set. io.EOF is returned only when no byte is left.
func (r *Reader) readLine() (line []byte, tooLong bool, err error) {
	r.buf = r.buf[:0]
	read := false

	for {
		chunk, readErr := r.br.ReadSlice('\n')
		read = read || len(chunk) > 0
		chunk = bytes.TrimSuffix(chunk, []byte{'\n'})

		if !tooLong {
			if len(r.buf)+len(chunk) > r.maxLine {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, chunk...)
			}
		}

		switch {
		case readErr == nil:
			return r.buf, tooLong, nil
		case errors.Is(readErr, bufio.ErrBufferFull):
			continue
		case errors.Is(readErr, io.EOF):
			if !read {
				return nil, false, io.EOF
			}

			return r.buf, tooLong, nil
		default:
			return nil, false, readErr
		}
	}
}

// Skipped returns the number of malformed lines seen so far.
func (r *Reader) Skipped() int { return r.skipped }

// Each calls fn for every event until the input is exhausted, fn fails or
// ctx is done.
func (r *Reader) Each(ctx context.Context, fn func(*Event) error) error {
	for {
		if ctx.Err() != nil {
			return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, ctx.Err().Error())
		}

		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(ev)
		if err != nil {
			return err
		}
	}
}
