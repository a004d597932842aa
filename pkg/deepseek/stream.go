package deepseek

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/rhuss/deepspeak/pkg/debug"
)

const (
	// StreamDoneSentinel marks the normal end of an event stream.
	StreamDoneSentinel = "[DONE]"

	dataPrefix   = "data:"
	maxLineBytes = 1 << 20
)

// errStreamClosed is the cancellation cause recorded when the consumer
// closes a stream itself.
var errStreamClosed = errors.New("deepseek: stream closed by consumer")

// DecodeOption configures DecodeStream.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	skipMalformed bool
	onChoice      func(model string)
	onDone        func(err error)
	onRelease     func()
}

// WithSkipMalformed makes the decoder log and skip lines that are not valid
// JSON instead of ending the stream with a MalformedChunkError.
func WithSkipMalformed() DecodeOption {
	return func(c *decodeConfig) { c.skipMalformed = true }
}

// withHooks registers callbacks run by the producer for every emitted choice
// and once when reading stops, plus one run once the consumer has seen the
// end of the stream or closed it.
func withHooks(onChoice func(model string), onDone func(err error), onRelease func()) DecodeOption {
	return func(c *decodeConfig) {
		c.onChoice = onChoice
		c.onDone = onDone
		c.onRelease = onRelease
	}
}

// ChoiceStream is a lazily produced, single-pass sequence of streamed
// choices. It must be consumed by one goroutine:
//
//	for s.Next() {
//		c := s.Choice()
//		...
//	}
//	if err := s.Err(); err != nil { ... }
//
// A background goroutine reads ahead into an unbounded buffer, so reading
// never waits for the consumer. Callers that stop before the end must call
// Close (or cancel the context passed to DecodeStream) to release the body.
type ChoiceStream struct {
	out       <-chan Choice
	done      chan struct{}
	cancel    context.CancelCauseFunc
	onRelease func()
	release   sync.Once

	// err is written by the producer before done is closed.
	err error

	cur     Choice
	lastErr error
}

// DecodeStream starts decoding an event-stream body into choices. The body
// is closed when the stream ends, when ctx is cancelled, or on Close.
//
// Each line has a leading "data:" prefix removed and is trimmed. A line equal
// to StreamDoneSentinel ends the stream, blank lines are skipped, and any
// other line is decoded as a ChatResponse whose first choice is emitted.
// Chunks without choices produce nothing. End of input without the sentinel
// is a normal end.
func DecodeStream(ctx context.Context, body io.ReadCloser, opts ...DecodeOption) *ChoiceStream {
	var cfg decodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancelCause(ctx)

	in := make(chan Choice)
	out := make(chan Choice)

	s := &ChoiceStream{
		out:       out,
		done:      make(chan struct{}),
		cancel:    cancel,
		onRelease: cfg.onRelease,
	}

	go s.produce(ctx, body, in, cfg)
	go pump(ctx, in, out)

	return s
}

// Next advances to the next choice. It returns false when the stream has
// ended, failed, or was cancelled; Err then tells which.
func (s *ChoiceStream) Next() bool {
	c, ok := <-s.out
	if !ok {
		<-s.done
		s.lastErr = s.err
		s.cur = Choice{}
		s.finish()
		return false
	}
	s.cur = c
	return true
}

// Choice returns the choice produced by the last successful call to Next.
func (s *ChoiceStream) Choice() Choice {
	return s.cur
}

// Err returns the error that ended the stream, if any. It is nil for a
// normal end (sentinel or end of input) and after Close. Valid once Next has
// returned false.
func (s *ChoiceStream) Err() error {
	if errors.Is(s.lastErr, errStreamClosed) {
		return nil
	}
	return s.lastErr
}

// Close stops reading and releases the body. Buffered choices are
// discarded. It is safe to call more than once.
func (s *ChoiceStream) Close() error {
	s.cancel(errStreamClosed)
	<-s.done
	s.finish()
	return nil
}

// finish releases the stream context once the consumer is done with it.
func (s *ChoiceStream) finish() {
	s.release.Do(func() {
		s.cancel(errStreamClosed)
		if s.onRelease != nil {
			s.onRelease()
		}
	})
}

// produce reads lines until the sentinel, end of input, a decode failure,
// or cancellation. It never blocks on the consumer, only on the pump, which
// is always ready to receive.
func (s *ChoiceStream) produce(ctx context.Context, body io.ReadCloser, in chan<- Choice, cfg decodeConfig) {
	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { body.Close() }) }

	// Closing the body unblocks a read in flight when ctx ends.
	stop := context.AfterFunc(ctx, closeBody)

	defer func() {
		stop()
		closeBody()
		close(in)
		if cfg.onDone != nil {
			cfg.onDone(s.err)
		}
		close(s.done)
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	for {
		if ctx.Err() != nil {
			s.err = context.Cause(ctx)
			return
		}
		if !scanner.Scan() {
			break
		}

		raw := scanner.Text()
		debug.Trace("streaming", "stream line", "line", raw)

		line := strings.TrimSpace(strings.TrimPrefix(raw, dataPrefix))
		if line == StreamDoneSentinel {
			debug.Log("streaming", "stream sentinel received")
			return
		}
		if line == "" {
			continue
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			if cfg.skipMalformed {
				slog.Warn("skipping malformed stream chunk",
					"error", err.Error(),
					"data", debug.Truncate(line, 200),
				)
				continue
			}
			s.err = &MalformedChunkError{Line: debug.Truncate(line, 200), Err: err}
			return
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		select {
		case in <- chunk.Choices[0]:
			if cfg.onChoice != nil {
				cfg.onChoice(chunk.Model)
			}
		case <-ctx.Done():
			s.err = context.Cause(ctx)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			s.err = context.Cause(ctx)
			return
		}
		s.err = fmt.Errorf("deepseek: reading stream: %w", err)
	}
}

// pump moves choices from in to out through an unbounded FIFO. It closes out
// once in is closed and the buffer is drained, or as soon as ctx ends.
func pump(ctx context.Context, in <-chan Choice, out chan<- Choice) {
	defer close(out)

	var queue []Choice
	for in != nil || len(queue) > 0 {
		var (
			send chan<- Choice
			next Choice
		)
		if len(queue) > 0 {
			send = out
			next = queue[0]
		}

		select {
		case c, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, c)
		case send <- next:
			queue[0] = Choice{}
			queue = queue[1:]
		case <-ctx.Done():
			return
		}
	}
}
