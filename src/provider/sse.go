package provider

import "bytes"

var eventDelimiter = []byte("\n\n")

// eventReader incrementally assembles server-sent events from a byte stream.
// Push appends raw bytes; Next pops the earliest complete event. A trailing
// partial event stays buffered across Push calls, so chunk boundaries that
// split an event mid-line are harmless.
type eventReader struct {
	buf []byte
}

// Push appends raw bytes from the transport.
func (r *eventReader) Push(p []byte) {
	r.buf = append(r.buf, p...)
}

// Next returns the next complete event, without its trailing delimiter.
// The second return value is false when no complete event is buffered.
func (r *eventReader) Next() (string, bool) {
	idx := bytes.Index(r.buf, eventDelimiter)
	if idx < 0 {
		return "", false
	}
	event := string(r.buf[:idx])
	r.buf = r.buf[idx+len(eventDelimiter):]
	return event, true
}

// Flush returns any remaining buffered bytes as a final event. Providers
// are not required to terminate the last event with a delimiter.
func (r *eventReader) Flush() (string, bool) {
	if len(r.buf) == 0 {
		return "", false
	}
	event := string(r.buf)
	r.buf = nil
	return event, true
}
