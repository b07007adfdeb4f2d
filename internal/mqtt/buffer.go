package mqtt

import "log/slog"

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 256

// bufferedMsg is a message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds the newest messages published while offline, oldest
// first. The caller synchronizes access.
type ringBuffer struct {
	slots  []bufferedMsg
	oldest int
	n      int

	dropped uint64 // lifetime total
	lost    int    // dropped since the last drain
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, max(size, 1))}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.slots)
	if r.n < size {
		r.slots[(r.oldest+r.n)%size] = msg
		r.n++
		return
	}

	if r.lost == 0 {
		slog.Warn("mqtt offline buffer full, discarding oldest", "size", size)
	}
	r.lost++
	r.dropped++
	r.slots[r.oldest] = msg
	r.oldest = (r.oldest + 1) % size
}

// drainAll empties the buffer and returns its messages in publish order.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}

	out := make([]bufferedMsg, 0, r.n)
	end := r.oldest + r.n
	if end <= len(r.slots) {
		out = append(out, r.slots[r.oldest:end]...)
	} else {
		out = append(out, r.slots[r.oldest:]...)
		out = append(out, r.slots[:end-len(r.slots)]...)
	}

	clear(r.slots)
	r.oldest, r.n, r.lost = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}
