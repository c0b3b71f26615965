package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"

	maxEventSize = 1 << 20
)

var errNoCompletionSignal = errors.New("stream ended before completion signal")

// eventStream reads fragments from an OpenAI-style server-sent event body.
type eventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
	closed  bool
}

func newEventStream(body io.ReadCloser) *eventStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	return &eventStream{
		body:    body,
		scanner: scanner,
	}
}

// Next implements Stream. Chunks without text are skipped.
func (s *eventStream) Next(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.closed {
		return "", io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", s.fail(err)
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", s.fail(fmt.Errorf("read stream: %w", err))
			}
			return "", s.fail(errNoCompletionSignal)
		}

		line := s.scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			// blank separators, comments and event names
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if data == doneMarker {
			s.err = io.EOF
			return "", io.EOF
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", s.fail(fmt.Errorf("parse chunk: %w", err))
		}
		if chunk.Error != nil {
			return "", s.fail(fmt.Errorf("provider error: %s", chunk.Error.Message))
		}

		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		return chunk.Choices[0].Delta.Content, nil
	}
}

func (s *eventStream) fail(cause error) error {
	s.err = llm.StreamInterrupted(cause)
	return s.err
}

// Close implements Stream.
func (s *eventStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.body.Close()
}
