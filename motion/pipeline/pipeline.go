// Package pipeline implements the bounded single-producer/single-consumer
// ring buffer of motion blocks shared between the planner (task side) and
// the ramp generator (ISR side).
package pipeline

import (
	"sync/atomic"

	"multistepper/motion/block"
)

// Pipeline is a fixed-capacity ring buffer of MotionBlock. The put index is
// advanced only by the task (planner/block manager); the get index is
// advanced only by the ISR (ramp generator). Both are atomics so each side
// observes the other's index with acquire semantics without locks.
type Pipeline struct {
	buf    []block.MotionBlock
	putPos atomic.Uint32
	getPos atomic.Uint32
	bufLen uint32
}

// New allocates a pipeline with the given capacity.
func New(capacity int) *Pipeline {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pipeline{
		buf:    make([]block.MotionBlock, capacity),
		bufLen: uint32(capacity),
	}
}

// Clear resets the pipeline to empty. Callers must ensure the ISR is paused
// or the pipeline is already drained before calling this.
func (p *Pipeline) Clear() {
	p.getPos.Store(p.putPos.Load())
}

// Size returns the pipeline's fixed capacity.
func (p *Pipeline) Size() int {
	return int(p.bufLen)
}

// Count returns the number of blocks currently queued.
func (p *Pipeline) Count() int {
	put := p.putPos.Load()
	get := p.getPos.Load()
	if get <= put {
		return int(put - get)
	}
	return int(p.bufLen - get + put)
}

// Remaining returns Size() minus Count(). This includes the slot that
// CanAccept always keeps empty, so Add accepts one block fewer than this.
func (p *Pipeline) Remaining() int {
	return p.Size() - p.Count()
}

// CanAccept reports whether the task side may add another block. One slot
// is always kept empty so put never catches up to get.
func (p *Pipeline) CanAccept() bool {
	put := p.putPos.Load()
	get := p.getPos.Load()
	if put == get {
		return true
	}
	if put > get {
		if put != p.bufLen-1 || get != 0 {
			return true
		}
	} else if get-put > 1 {
		return true
	}
	return false
}

// CanGet reports whether the ISR side has a block available.
func (p *Pipeline) CanGet() bool {
	return p.putPos.Load() != p.getPos.Load()
}

// Add appends a block to the pipeline. Returns false if the pipeline is
// full. Task-side only.
func (p *Pipeline) Add(b block.MotionBlock) bool {
	if !p.CanAccept() {
		return false
	}
	put := p.putPos.Load()
	p.buf[put] = b
	next := put + 1
	if next >= p.bufLen {
		next = 0
	}
	p.putPos.Store(next)
	return true
}

// Remove discards the head block without returning it. ISR-side only.
func (p *Pipeline) Remove() bool {
	if !p.CanGet() {
		return false
	}
	get := p.getPos.Load()
	next := get + 1
	if next >= p.bufLen {
		next = 0
	}
	p.getPos.Store(next)
	return true
}

// PeekGet returns a pointer to the head block (the one the ISR is or would
// be executing) without removing it, or nil if the pipeline is empty.
// ISR-side only; the returned pointer is only safe to mutate with fields
// the ISR owns (is_executing and its own working state).
func (p *Pipeline) PeekGet() *block.MotionBlock {
	if !p.CanGet() {
		return nil
	}
	return &p.buf[p.getPos.Load()]
}

// nthFromPut mirrors MotionRingBufferPosn::getNthFromPut: N=0 is the most
// recently put block, N=1 the one before it, and so on. Returns -1 if N is
// out of range or would collide with the get position (i.e. refers to a
// slot not currently occupied).
func (p *Pipeline) nthFromPut(n uint32) int {
	if !p.CanGet() {
		return -1
	}
	if n >= uint32(p.Count()) {
		return -1
	}
	put := p.putPos.Load()
	get := p.getPos.Load()
	nthPos := int64(put) - 1 - int64(n)
	if nthPos < 0 {
		nthPos += int64(p.bufLen)
	}
	if uint32(nthPos+1) == get || (uint32(nthPos+1) == p.bufLen && get == 0) {
		return -1
	}
	return int(nthPos)
}

// nthFromGet mirrors MotionRingBufferPosn::getNthFromGet: N=0 is the next
// block to be got, N=1 the one after that. Returns -1 if N is out of range
// or would collide with the put position.
func (p *Pipeline) nthFromGet(n uint32) int {
	if !p.CanGet() {
		return -1
	}
	if n >= uint32(p.Count()) {
		return -1
	}
	get := p.getPos.Load()
	put := p.putPos.Load()
	nthPos := get + n
	if nthPos >= p.bufLen {
		nthPos -= p.bufLen
	}
	if nthPos == put {
		return -1
	}
	return int(nthPos)
}

// PeekNthFromPut returns the Nth block back from the most recently put one
// (0 is the newest), used by the planner's reverse look-ahead pass. Returns
// nil if N is out of range.
func (p *Pipeline) PeekNthFromPut(n uint32) *block.MotionBlock {
	idx := p.nthFromPut(n)
	if idx < 0 {
		return nil
	}
	return &p.buf[idx]
}

// PeekNthFromGet returns the Nth block forward from the next one to be got
// (0 is the head), used by the planner's forward pass. Returns nil if N is
// out of range.
func (p *Pipeline) PeekNthFromGet(n uint32) *block.MotionBlock {
	idx := p.nthFromGet(n)
	if idx < 0 {
		return nil
	}
	return &p.buf[idx]
}
