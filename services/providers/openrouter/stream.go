package openrouter

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/upb/llm-gateway/services/providers"
)

// sseStream parses a server-sent-events completion stream into chunks.
// The protocol terminates with a "data: [DONE]" line.
type sseStream struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	done     bool
}

func newSSEStream(provider string, body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{
		provider: provider,
		body:     body,
		scanner:  scanner,
	}
}

type wireDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Recv returns the next content chunk. The terminal "[DONE]" event maps to
// a chunk with empty content and Done=true; further calls return io.EOF.
func (s *sseStream) Recv() (providers.StreamChunk, error) {
	if s.done {
		return providers.StreamChunk{}, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.done = true
			return providers.StreamChunk{Done: true}, nil
		}

		var delta wireDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			s.done = true
			return providers.StreamChunk{}, providers.NewProviderError(s.provider, "failed to decode stream event", 0, err)
		}
		if len(delta.Choices) == 0 || delta.Choices[0].Delta.Content == "" {
			continue
		}
		return providers.StreamChunk{Content: delta.Choices[0].Delta.Content}, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return providers.StreamChunk{}, providers.NewProviderError(s.provider, "stream read failed", 0, err)
	}
	// Stream ended without a [DONE] marker; the caller synthesizes the
	// terminal chunk.
	return providers.StreamChunk{}, io.EOF
}

// Close releases the underlying response body.
func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
