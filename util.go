// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package certdns

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ToInt64 reinterprets the bits of an unsigned timestamp so that the full
// range survives a signed database column.  Values beyond 1<<63-1 map to
// negative numbers and back.
func ToInt64(value uint64) int64 {
	return int64(value)
}

// ToUint64 undoes ToInt64.
func ToUint64(value int64) uint64 {
	return uint64(value)
}

// Now is the current unix time in seconds.
func Now() uint64 {
	return uint64(time.Now().Unix())
}

// NewID returns a random 32-character lowercase hex identifier.
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
