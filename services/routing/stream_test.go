package routing

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-gateway/services/providers"
)

func TestStreamRecv(t *testing.T) {
	t.Run("delivers chunks then exactly one terminal", func(t *testing.T) {
		src := &scriptedStream{events: []streamEvent{
			{chunk: providers.StreamChunk{Content: "Hel"}},
			{chunk: providers.StreamChunk{Content: "lo"}},
			{chunk: providers.StreamChunk{Done: true}},
		}}
		stream := newStream(src)

		var contents []string
		for {
			chunk, err := stream.Recv()
			require.NoError(t, err)
			if chunk.Done {
				assert.Empty(t, chunk.Content)
				break
			}
			contents = append(contents, chunk.Content)
		}
		assert.Equal(t, []string{"Hel", "lo"}, contents)

		// Nothing follows the terminal chunk.
		_, err := stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("synthesizes a terminal when the source just ends", func(t *testing.T) {
		src := &scriptedStream{events: []streamEvent{
			{chunk: providers.StreamChunk{Content: "partial"}},
		}}
		stream := newStream(src)

		chunk, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "partial", chunk.Content)

		chunk, err = stream.Recv()
		require.NoError(t, err)
		assert.True(t, chunk.Done)
		assert.Empty(t, chunk.Content)

		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("splits content off a terminal chunk", func(t *testing.T) {
		src := &scriptedStream{events: []streamEvent{
			{chunk: providers.StreamChunk{Content: "tail", Done: true}},
		}}
		stream := newStream(src)

		chunk, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "tail", chunk.Content)
		assert.False(t, chunk.Done)

		chunk, err = stream.Recv()
		require.NoError(t, err)
		assert.True(t, chunk.Done)
		assert.Empty(t, chunk.Content)

		_, err = stream.Recv()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("repeats the error after a failure", func(t *testing.T) {
		srcErr := errors.New("connection reset")
		src := &scriptedStream{events: []streamEvent{
			{chunk: providers.StreamChunk{Content: "a"}},
			{err: srcErr},
		}}
		stream := newStream(src)

		chunk, err := stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "a", chunk.Content)

		_, err = stream.Recv()
		assert.ErrorIs(t, err, srcErr)

		// A failed stream never yields a terminal chunk, only the error.
		_, err = stream.Recv()
		assert.ErrorIs(t, err, srcErr)
	})
}

func TestStreamClose(t *testing.T) {
	src := &scriptedStream{events: []streamEvent{
		{chunk: providers.StreamChunk{Content: "a"}},
	}}
	stream := newStream(src)

	require.NoError(t, stream.Close())
	assert.True(t, src.closed)

	// A closed stream behaves as done.
	_, err := stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
