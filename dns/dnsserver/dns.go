// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnsserver

import (
	"context"

	"github.com/miekg/dns"
)

// Resolver answers a single question.  A nil answer without error means the
// name exists but carries no records of the queried type; the server answers
// with an empty authoritative answer either way.
type Resolver interface {
	Search(ctx context.Context, name string, qtype uint16) ([]dns.RR, error)
}
