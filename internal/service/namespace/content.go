package namespace

import (
	"bytes"
	"fmt"
	"io"
)

// replayable makes upload content readable once per attempt. Seekable
// readers are rewound in place; anything else is buffered in memory.
type replayable struct {
	r    io.ReadSeeker
	size int64

	// stored holds the blob keys written by the current attempt
	stored []string
}

// newReplayable measures the content when size is not positive
func newReplayable(r io.Reader, size int64) (*replayable, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		if size <= 0 {
			end, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, fmt.Errorf("measure upload content: %w", err)
			}
			size = end
		}
		p := &replayable{r: rs, size: size}
		if err := p.rewind(); err != nil {
			return nil, err
		}
		return p, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if size <= 0 {
		size = int64(len(data))
	}
	return &replayable{r: bytes.NewReader(data), size: size}, nil
}

// rewind positions the content at its start for the next attempt
func (p *replayable) rewind() error {
	if _, err := p.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload content: %w", err)
	}
	return nil
}
