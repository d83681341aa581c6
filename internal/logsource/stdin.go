package logsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	// DefaultStdinBuffer is the default channel buffer size for stdin lines.
	DefaultStdinBuffer = 50_000

	// DefaultStdinMaxLineSize is the default maximum size (in bytes) of a single stdin line.
	DefaultStdinMaxLineSize = 1024 * 1024
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
	// Key is attached to every envelope, typically the service being piped in.
	Key string
}

// StdinSource reads service log lines from stdin.
type StdinSource struct {
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	stopOnce sync.Once
	key      string
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	c := StdinConfig{BufferSize: DefaultStdinBuffer, MaxLineSize: DefaultStdinMaxLineSize}
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			c.BufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			c.MaxLineSize = conf[0].MaxLineSize
		}
		c.Key = conf[0].Key
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, c.BufferSize),
		cancel: cancel,
		key:    c.Key,
	}
	go s.read(ctx, r, c.MaxLineSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	// The scanner blocks in its own goroutine so cancellation is observed
	// between lines without a goroutine per line.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Warnf("logsource: stdin line exceeded max size (%d bytes), stopping stdin source", maxLineSize)
				return
			}
			log.Errorf("logsource: stdin scanner error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			env := model.IngestEnvelope{
				Source: s.Name(),
				Kind:   model.SourceServiceLog,
				Key:    s.key,
				Line:   line,
			}
			select {
			case s.ch <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.stopOnce.Do(s.cancel) }
func (s *StdinSource) Name() string                       { return "stdin" }
