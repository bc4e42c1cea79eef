// Package bufpool provides pooled growable byte buffers for the read and
// write paths of a Connection.
//
// It is a thin wrapper around bytebufferpool.Pool that adds the get/put
// counters surfaced by Stats for diagnostics.
package bufpool

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Pool hands out *bytebufferpool.ByteBuffer instances sized for HTTP
// read/write buffers and tracks basic reuse statistics.
type Pool struct {
	pool  bytebufferpool.Pool
	gets  atomic.Uint64
	puts  atomic.Uint64
}

// Global is the pool every Connection, ByteTokenizer and Serializer uses.
var Global = &Pool{}

// Get returns a buffer from the pool, reset to zero length.
func (p *Pool) Get() *bytebufferpool.ByteBuffer {
	p.gets.Add(1)
	return p.pool.Get()
}

// Put returns a buffer to the pool. The buffer must not be used again by
// the caller afterwards.
func (p *Pool) Put(b *bytebufferpool.ByteBuffer) {
	p.puts.Add(1)
	p.pool.Put(b)
}

// Stats reports cumulative get/put counts for diagnostics and metrics.
type Stats struct {
	Gets uint64
	Puts uint64
}

// Stats returns a snapshot of the pool's cumulative counters.
func (p *Pool) Stats() Stats {
	return Stats{Gets: p.gets.Load(), Puts: p.puts.Load()}
}
