// Package util contains internal helpers shared by the index and policy
// packages: nibble/bit arithmetic for the radix trie and cache-line
// padding for the policy's contended touch counter.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

// CacheLineSize is a reasonable default for most modern CPUs.
// std has runtime/internal/sys.CacheLineSize but it's unexported.
// 64 works well in practice.
const CacheLineSize = 64

// CacheLinePad is a dummy field used to separate a hot, contended counter
// from whatever precedes it in a struct, reducing false sharing across
// goroutines that hammer the counter concurrently.
type CacheLinePad struct{ _ [CacheLineSize]byte }
