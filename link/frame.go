package link

import "strings"

const (
	// Delimiter terminates every application frame on the wire.
	Delimiter = '|'

	// Heartbeat is the liveness-only byte sent during idle periods. It is
	// stripped from the inbound stream before frame splitting.
	Heartbeat = ' '
)

// frameBuffer accumulates received bytes and yields complete
// delimiter-terminated frames.
//
// Invariant: everything before the last delimiter seen so far has been
// yielded; everything after it stays buffered until its delimiter arrives,
// possibly split across many socket reads.
type frameBuffer struct {
	pending strings.Builder
}

// Append strips heartbeat bytes from chunk, appends the rest to the buffer
// and returns every complete frame in arrival order. Empty frames
// (consecutive delimiters) are dropped.
func (b *frameBuffer) Append(chunk []byte) []string {
	for _, c := range chunk {
		if c != Heartbeat {
			b.pending.WriteByte(c)
		}
	}

	data := b.pending.String()
	last := strings.LastIndexByte(data, Delimiter)
	if last < 0 {
		return nil
	}

	var frames []string
	for _, f := range strings.Split(data[:last], string(Delimiter)) {
		if f != "" {
			frames = append(frames, f)
		}
	}

	b.pending.Reset()
	b.pending.WriteString(data[last+1:])

	return frames
}

// Len returns the number of buffered, not yet delimited bytes.
func (b *frameBuffer) Len() int {
	return b.pending.Len()
}

// Reset drops any partially received frame. Called when the socket is
// replaced, so a fragment from the old socket can never prefix a frame from
// the new one.
func (b *frameBuffer) Reset() {
	b.pending.Reset()
}
