// Package xid generates short prefixed identifiers for entities, like
// "inv_9f2c1a84d3b07e5f". The prefix makes ids self-describing in logs and
// API payloads.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a new identifier with the given entity prefix.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; give up loudly.
		panic(fmt.Sprintf("xid: rand read failed: %v", err))
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
