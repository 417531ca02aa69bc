package frame

import (
	"sync"
	"sync/atomic"
)

// Pool hands out plane buffers for one frame geometry and tracks how many
// frames are still held by consumers.
type Pool struct {
	width  int
	height int
	format Format

	bufs sync.Pool
	seq  atomic.Uint64

	outstanding atomic.Int64
	released    atomic.Int64
}

// NewPool creates a pool for frames of the given size and format.
func NewPool(width, height int, format Format) *Pool {
	p := &Pool{width: width, height: height, format: format}
	size := p.bufferSize()
	p.bufs.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

func (p *Pool) bufferSize() int {
	ySize := p.width * p.height
	if p.format == FormatI420 {
		cw, ch := (p.width+1)/2, (p.height+1)/2
		return ySize + 2*cw*ch
	}
	return ySize
}

// Get returns a new frame backed by a pooled buffer. fill is called with
// the frame's planes in order before the frame is returned.
func (p *Pool) Get(fill func(planes [][]byte)) *Frame {
	bp := p.bufs.Get().(*[]byte)
	buf := *bp

	var f *Frame
	release := func(*Frame) {
		p.outstanding.Add(-1)
		p.released.Add(1)
		p.bufs.Put(bp)
	}

	ySize := p.width * p.height
	if p.format == FormatI420 {
		cw, ch := (p.width+1)/2, (p.height+1)/2
		y := buf[:ySize]
		u := buf[ySize : ySize+cw*ch]
		v := buf[ySize+cw*ch:]
		if fill != nil {
			fill([][]byte{y, u, v})
		}
		f = NewYUV420(p.width, p.height, y, u, v, release)
	} else {
		y := buf[:ySize]
		if fill != nil {
			fill([][]byte{y})
		}
		f = New(p.width, p.height, y, release)
	}
	f.Seq = p.seq.Add(1)
	p.outstanding.Add(1)
	return f
}

// Outstanding returns the number of frames handed out and not yet released.
func (p *Pool) Outstanding() int64 {
	return p.outstanding.Load()
}

// Released returns the total number of frames released back to the pool.
func (p *Pool) Released() int64 {
	return p.released.Load()
}
