package main

import (
	"errors"
	"io"
	"os"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/hyp3rd/histcache/pkg/analysis"
)

// fileSource reads the events of several JSON-lines files in order. "-" reads stdin.
type fileSource struct {
	paths  []string
	logger *zap.Logger

	idx     int
	file    io.ReadCloser
	reader  *analysis.Reader
	skipped int
}

func newFileSource(paths []string, logger *zap.Logger) *fileSource {
	return &fileSource{paths: paths, logger: logger}
}

// Next returns the next event, moving to the following file at the end of each one.
func (s *fileSource) Next() (*analysis.Event, error) {
	for {
		if s.reader == nil {
			if s.idx >= len(s.paths) {
				return nil, io.EOF
			}

			err := s.open(s.paths[s.idx])
			if err != nil {
				return nil, err
			}

			s.idx++
		}

		ev, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			s.closeCurrent()

			continue
		}

		return ev, err
	}
}

// Skipped returns the number of malformed lines skipped so far.
func (s *fileSource) Skipped() int {
	if s.reader != nil {
		return s.skipped + s.reader.Skipped()
	}

	return s.skipped
}

// Close releases the file being read, if any.
func (s *fileSource) Close() {
	s.closeCurrent()
}

func (s *fileSource) open(path string) error {
	if path == "-" {
		s.file = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return ewrap.Wrapf(err, "open events %s", path)
		}

		s.file = f
	}

	s.reader = analysis.NewReader(s.file, s.logger.With(zap.String("file", path)))
	s.logger.Info("reading events", zap.String("file", path))

	return nil
}

func (s *fileSource) closeCurrent() {
	if s.reader != nil {
		s.skipped += s.reader.Skipped()
		s.reader = nil
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
}
