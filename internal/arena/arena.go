// Package arena implements the process-wide bump/free pool that
// backs every transient object in the compiler: tokens, AST nodes,
// type objects, and scratch strings (spec.md §3.5, §4.1).
//
// The algorithm is a direct port of original_source's
// src/common/common.c cc_malloc/cc_free/cc_reset_pool: a singly
// linked list of block headers embedded at the front of the pool,
// first-fit search, splitting on allocation when the remainder is
// large enough to host another header plus 4 bytes, and coalescing
// of adjacent free blocks on every free. Go has no raw pointer
// arithmetic into a byte slice the way the C original casts
// `(char*)cur + sizeof(header)`, so headers live in a parallel slice
// indexed by block number rather than packed into the bytes
// themselves; the addressing, splitting, and coalescing logic is
// otherwise unchanged.
package arena

import "fmt"

const headerSize = 8 // accounted size of a block header, mirrors C's sizeof(cc_block_header_t)
const alignment = 4
const minRemainder = headerSize + 4

// OOMError signals allocator exhaustion. The spec calls this fatal:
// callers are expected to treat it as an unrecoverable process exit,
// not a retryable condition.
type OOMError struct {
	Requested int
}

func (e *OOMError) Error() string {
	return fmt.Sprintf("arena: out of memory (requested %d bytes)", e.Requested)
}

type block struct {
	size int // usable size, not counting headerSize
	free bool
	next int // index into a.blocks, -1 if none
}

// Block is an opaque handle to a live allocation. It carries no data
// itself; callers keep their own []byte view acquired from Alloc.
type Block struct {
	index int
}

// Arena is a fixed-size first-fit allocator with coalescing. It is
// not safe for concurrent use; every compiler stage is single
// threaded (spec.md §5).
type Arena struct {
	pool      []byte
	blocks    []block
	head      int // index of first block, -1 if pool is empty/uninitialized
	live      int // bytes currently allocated (not headers), the "pool offset" in the original
	highWater int
}

// New allocates a pool of the given size and initializes it as one
// large free block, as cc_reset_pool does.
func New(size int) *Arena {
	a := &Arena{pool: make([]byte, size)}
	a.Reset()
	return a
}

// Reset discards all blocks, as the C reset does between stages or
// between top-level declarations when the caller can prove no
// pointers remain (spec.md §4.1).
func (a *Arena) Reset() {
	a.blocks = []block{{size: len(a.pool), free: true, next: -1}}
	a.head = 0
	a.live = 0
	a.highWater = 0
}

func alignSize(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Alloc returns a byte slice of at least size bytes, aligned to 4
// bytes. On exhaustion it returns an *OOMError; the caller (or a
// wrapper at the stage boundary) treats this as fatal and aborts the
// process, per spec.md §4.1 and §7.
func (a *Arena) Alloc(size int) ([]byte, Block, error) {
	if size <= 0 {
		return nil, Block{}, fmt.Errorf("arena: invalid alloc size %d", size)
	}
	size = alignSize(size)

	prev := -1
	cur := a.head
	for cur != -1 {
		if a.blocks[cur].free && a.blocks[cur].size >= size {
			remaining := a.blocks[cur].size - size
			if remaining >= minRemainder {
				// Appending can reallocate a.blocks's backing array, so the
				// split is built and appended before cur's fields are
				// touched — a pointer taken into a.blocks before this
				// append would silently write through a stale backing
				// array once it grows.
				split := block{size: remaining - headerSize, free: true, next: a.blocks[cur].next}
				a.blocks = append(a.blocks, split)
				splitIdx := len(a.blocks) - 1
				a.blocks[cur].next = splitIdx
				a.blocks[cur].size = size
			}
			a.blocks[cur].free = false
			a.live += a.blocks[cur].size
			if a.live > a.highWater {
				a.highWater = a.live
			}
			start := a.blockOffset(cur)
			end := start + a.blocks[cur].size
			return a.pool[start:end:end], Block{index: cur}, nil
		}
		prev = cur
		cur = a.blocks[cur].next
	}
	_ = prev
	return nil, Block{}, &OOMError{Requested: size}
}

// blockOffset computes a block's byte offset by walking from the
// head, mirroring pointer arithmetic in the C original without
// requiring a parallel offset field to stay in sync across splits.
func (a *Arena) blockOffset(target int) int {
	offset := 0
	cur := a.head
	for cur != -1 && cur != target {
		offset += headerSize + a.blocks[cur].size
		cur = a.blocks[cur].next
	}
	return offset
}

// Free marks a block free and coalesces adjacent free blocks.
func (a *Arena) Free(b Block) {
	if b.index < 0 || b.index >= len(a.blocks) {
		return
	}
	blk := &a.blocks[b.index]
	if blk.free {
		return
	}
	blk.free = true
	if a.live >= blk.size {
		a.live -= blk.size
	} else {
		a.live = 0
	}
	a.coalesce()
}

func (a *Arena) coalesce() {
	cur := a.head
	for cur != -1 {
		b := &a.blocks[cur]
		if b.next == -1 {
			break
		}
		next := &a.blocks[b.next]
		if b.free && next.free {
			b.size += headerSize + next.size
			b.next = next.next
			continue // re-check cur against its new next
		}
		cur = b.next
	}
}

// HighWater returns the running high-water mark tracked for
// diagnostics (spec.md §4.1).
func (a *Arena) HighWater() int { return a.highWater }

// Cap returns the pool's total byte capacity.
func (a *Arena) Cap() int { return len(a.pool) }
