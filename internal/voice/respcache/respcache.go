// Package respcache caches computed voice responses keyed by
// (intent, window version, sorted params), bounded by an LRU so a kiosk or
// voice assistant retrying the same query doesn't recompute it on every
// request within the same window version. Built on
// github.com/hashicorp/golang-lru/v2, adopted from the corpus the way
// prysmaticlabs/prysm uses it for bounded object caches — the teacher's own
// internal/cache.Cache has no eviction policy at all, which is the wrong
// shape for a cache that must not grow without bound across many distinct
// query shapes.
package respcache

import (
	"hash/maphash"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSize = 100

var seed = maphash.MakeSeed()

// Params is the decoded, validated set of query-string parameters passed to
// an intent's Run function. Defined here (rather than in package voice) so
// both package voice and this cache can depend on it without an import
// cycle between them.
type Params map[string]string

// Response is what every intent produces.
type Response struct {
	SpeechText string
	SSML       string
	Payload    map[string]any
}

// Cache is a fixed-size LRU of Response keyed by a hash of the request
// shape that produced it.
type Cache struct {
	lru *lru.Cache[uint64, Response]
}

func New() *Cache {
	c, err := lru.New[uint64, Response](defaultSize)
	if err != nil {
		// Only possible if defaultSize <= 0, which it never is.
		panic(err)
	}
	return &Cache{lru: c}
}

func (c *Cache) Get(intent string, version int64, params Params) (Response, bool) {
	return c.lru.Get(key(intent, version, params))
}

func (c *Cache) Set(intent string, version int64, params Params, resp Response) {
	c.lru.Add(key(intent, version, params), resp)
}

func key(intent string, version int64, params Params) uint64 {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(intent)
	h.WriteByte('|')
	writeInt64(&h, version)
	for _, k := range keys {
		h.WriteByte('|')
		h.WriteString(k)
		h.WriteByte('=')
		h.WriteString(params[k])
	}
	return h.Sum64()
}

func writeInt64(h *maphash.Hash, v int64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	h.Write(buf[:])
}
