// Package chunker splits a file into fixed-size byte ranges and
// reassembles them. Splitting is deterministic for a given input and
// chunk size, so a manifest can be re-derived and verified.
package chunker

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	boxochunker "github.com/ipfs/boxo/chunker"
)

// DefaultChunkSize is the chunk size used for video assets.
const DefaultChunkSize = 5 * 1024 * 1024

// ErrInvalidChunkSize is returned for a chunk size <= 0.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Split reads r to the end and returns its content as ordered chunks of
// chunkSize bytes. The final chunk may be shorter. An empty input
// yields zero chunks.
func Split(r io.Reader, chunkSize int) ([][]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	splitter := boxochunker.NewSizeSplitter(r, int64(chunkSize))

	var chunks [][]byte
	for {
		chunk, err := splitter.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading chunk %d: %w", len(chunks), err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// SplitBytes is Split over an in-memory payload.
func SplitBytes(data []byte, chunkSize int) ([][]byte, error) {
	return Split(bytes.NewReader(data), chunkSize)
}

// Join concatenates ordered chunks back into the original byte stream.
func Join(chunks [][]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// JoinTo streams ordered chunks into w.
func JoinTo(w io.Writer, chunks [][]byte) error {
	for i, c := range chunks {
		if _, err := w.Write(c); err != nil {
			return fmt.Errorf("writing chunk %d: %w", i, err)
		}
	}
	return nil
}
