// Package id provides unique identifier generation for upload tasks.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// seq disambiguates IDs when crypto/rand is unavailable.
var seq atomic.Uint64

// Generate creates a new unique upload task ID.
// Format: upl-<unix millis>-<random>
// Example: upl-1701432000123-a1b2c3d4e5f6
func Generate() string {
	millis := time.Now().UnixMilli()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("upl-%d-%d", millis, seq.Add(1))
	}
	return fmt.Sprintf("upl-%d-%s", millis, hex.EncodeToString(random))
}
