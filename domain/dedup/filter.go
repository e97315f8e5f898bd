// Package dedup implements the two-way set associative duplicate filter
// described for the tunnel's packet engine: a fixed table of buckets, each
// remembering the two most recently seen distinct checksums that hashed to
// it.
package dedup

// DefaultBuckets is the table's fixed size, prime so the mod-hash
// spreads sequential checksums.
const DefaultBuckets = 1021

type bucket struct {
	slot0, slot1 uint32
	has0, has1   bool
}

// Filter is a bounded, concurrency-unsafe duplicate detector. The engine
// owns it exclusively from its single-threaded event loop, matching the
// rest of the core's no-locking design.
type Filter struct {
	buckets []bucket
}

// New creates a Filter with the given bucket count. n <= 0 uses
// DefaultBuckets.
func New(n int) *Filter {
	if n <= 0 {
		n = DefaultBuckets
	}
	return &Filter{buckets: make([]bucket, n)}
}

// IsDup reports whether chksum was seen among the bucket's two most recent
// entries, then shifts chksum into slot 0 regardless of the outcome (slot 0
// ages into slot 1; the previous slot 1 is discarded).
func (f *Filter) IsDup(chksum uint32) bool {
	b := &f.buckets[chksum%uint32(len(f.buckets))]
	dup := (b.has0 && b.slot0 == chksum) || (b.has1 && b.slot1 == chksum)

	b.slot1, b.has1 = b.slot0, b.has0
	b.slot0, b.has0 = chksum, true

	return dup
}
