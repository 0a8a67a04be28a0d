package routing

import (
	"errors"
	"io"

	"github.com/upb/llm-gateway/services/providers"
)

type streamState int

const (
	stateIdle streamState = iota
	stateStreaming
	stateDone
	stateFailed
)

// Stream enforces the chunk contract over an adapter stream: exactly one
// terminal chunk with empty content and Done=true, no chunk after the
// terminal one, and no chunk after a failure. Recv returns io.EOF once the
// terminal chunk has been delivered, and repeats the original error after
// a failure.
type Stream struct {
	src     providers.ChatStream
	state   streamState
	pending *providers.StreamChunk
	err     error
}

func newStream(src providers.ChatStream) *Stream {
	return &Stream{src: src, state: stateIdle}
}

// Recv produces the next chunk or signals completion/error.
func (s *Stream) Recv() (providers.StreamChunk, error) {
	switch s.state {
	case stateDone:
		return providers.StreamChunk{}, io.EOF
	case stateFailed:
		return providers.StreamChunk{}, s.err
	}
	s.state = stateStreaming

	if s.pending != nil {
		chunk := *s.pending
		s.pending = nil
		s.state = stateDone
		return chunk, nil
	}

	chunk, err := s.src.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Source ended without a terminal chunk; synthesize one.
			s.state = stateDone
			return providers.StreamChunk{Done: true}, nil
		}
		s.state = stateFailed
		s.err = err
		return providers.StreamChunk{}, err
	}

	if chunk.Done {
		if chunk.Content != "" {
			// Split trailing content off the terminal chunk so the
			// terminal always has empty text.
			s.pending = &providers.StreamChunk{Done: true}
			return providers.StreamChunk{Content: chunk.Content}, nil
		}
		s.state = stateDone
		return chunk, nil
	}
	return chunk, nil
}

// Close releases the underlying adapter stream. It is safe to call at any
// point, including mid-stream abandonment.
func (s *Stream) Close() error {
	if s.state != stateFailed {
		s.state = stateDone
	}
	return s.src.Close()
}
