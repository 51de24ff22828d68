// Package payload generates the deterministic upload bodies of the cycle1
// protocol.
package payload

import (
	"bytes"
	"io"
)

// BlockSize is the size of every chunk except the last one.
const BlockSize = 4000

// block is BlockSize bytes of printable ASCII: 50 lines of 80 characters.
var block = bytes.Repeat(append(bytes.Repeat([]byte("0123456789"), 7),
	[]byte("012345678\n")...), BlockSize/80)

// Source produces a fixed number of bytes as a sequence of chunks. The last
// chunk is always shorter than BlockSize: when the total is a multiple of
// BlockSize it is an empty chunk, which is still returned. A Source is not
// safe for concurrent use; create a new one to restart the sequence.
type Source struct {
	remaining int64
	done      bool

	// pending is the unread part of the current chunk, for Read.
	pending []byte
}

// New returns a Source producing total bytes.
func New(total int64) *Source {
	if total < 0 {
		total = 0
	}
	return &Source{remaining: total}
}

// Next returns the next chunk. The second return value is false once the
// final chunk has been returned. Every chunk is a fresh copy that the caller
// owns.
func (s *Source) Next() ([]byte, bool) {
	if s.done {
		return nil, false
	}
	chunk := make([]byte, s.take())
	copy(chunk, block)
	return chunk, true
}

// take consumes the size of the next chunk.
func (s *Source) take() int64 {
	n := int64(BlockSize)
	if s.remaining < n {
		n = s.remaining
		s.done = true
	}
	s.remaining -= n
	return n
}

// Len returns the number of bytes not yet returned.
func (s *Source) Len() int64 {
	return s.remaining + int64(len(s.pending))
}

// Read implements io.Reader. It copies straight from the pattern, so it
// does not allocate.
func (s *Source) Read(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if len(s.pending) == 0 {
			if s.done {
				break
			}
			n := s.take()
			s.pending = block[:n:n]
		}
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		p = p[n:]
		total += n
	}
	if total == 0 && len(s.pending) == 0 && s.done {
		return 0, io.EOF
	}
	return total, nil
}

// Chunks returns every chunk for total bytes.
func Chunks(total int64) [][]byte {
	var chunks [][]byte
	s := New(total)
	for chunk, ok := s.Next(); ok; chunk, ok = s.Next() {
		chunks = append(chunks, chunk)
	}
	return chunks
}
