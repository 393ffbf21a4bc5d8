// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package certdns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimestampRoundTrip(t *testing.T) {
	for _, value := range []uint64{0, 1, math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64, 0xdeadbeefcafebabe} {
		require.Equal(t, value, ToUint64(ToInt64(value)))
	}
}

func TestTimestampMaxIsNegative(t *testing.T) {
	require.Equal(t, int64(-1), ToInt64(math.MaxUint64))
}

func TestNewID(t *testing.T) {
	id := NewID()
	require.Len(t, id, 32)
	require.NotEqual(t, id, NewID())
}
