// Package xid mints prefixed identifiers for records created at runtime:
// saved addresses, stored payment methods and support tickets. An id is a
// timestamp plus a random suffix, unique enough for a single-process demo.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const suffixBytes = 8

// New returns an id of the form "<prefix>-<unix nanos>-<random hex>". If
// the random source fails the timestamp alone still yields a usable id.
func New(prefix string) string {
	now := time.Now().UnixNano()
	suffix := make([]byte, suffixBytes)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%s-%d", prefix, now)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now, hex.EncodeToString(suffix))
}
