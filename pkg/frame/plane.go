package frame

import "io"

// Plane is one channel of pixel data with a read cursor.
// Producers may leave the cursor anywhere; readers call Rewind first.
type Plane struct {
	// Stride is the number of bytes per row.
	Stride int

	data []byte
	pos  int
}

// NewPlane wraps data as a plane with the cursor at the start.
func NewPlane(data []byte, stride int) *Plane {
	return &Plane{Stride: stride, data: data}
}

// Len returns the total number of bytes in the plane.
func (p *Plane) Len() int {
	return len(p.data)
}

// Position returns the cursor offset.
func (p *Plane) Position() int {
	return p.pos
}

// Seek moves the cursor, clamped to the plane bounds.
func (p *Plane) Seek(pos int) {
	switch {
	case pos < 0:
		p.pos = 0
	case pos > len(p.data):
		p.pos = len(p.data)
	default:
		p.pos = pos
	}
}

// Rewind moves the cursor back to the start.
func (p *Plane) Rewind() {
	p.pos = 0
}

// Remaining returns the number of unread bytes.
func (p *Plane) Remaining() int {
	return len(p.data) - p.pos
}

// Read copies unread bytes into b and advances the cursor.
func (p *Plane) Read(b []byte) (int, error) {
	if p.pos >= len(p.data) {
		return 0, io.EOF
	}
	n := copy(b, p.data[p.pos:])
	p.pos += n
	return n, nil
}

// ReadAll returns a copy of every unread byte and moves the cursor to the end.
func (p *Plane) ReadAll() []byte {
	out := make([]byte, p.Remaining())
	copy(out, p.data[p.pos:])
	p.pos = len(p.data)
	return out
}

// Bytes exposes the backing slice without moving the cursor.
// Callers must not keep it past the frame's release.
func (p *Plane) Bytes() []byte {
	return p.data
}
