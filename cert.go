// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package certdns

// State of the singleton Cert row.
type State int32

const (
	StateOk       State = 0
	StateUpdating State = 1
)

func (s State) String() string {
	switch s {
	case StateOk:
		return "ok"
	case StateUpdating:
		return "updating"
	default:
		return "invalid"
	}
}

// Cert is the singleton row holding the service's own certificate.  Update
// is the bit-reinterpreted unix time of the latest acquisition (see ToInt64)
// and doubles as the fencing token of the update lock: a worker may only
// complete the job whose timestamp it wrote.  Cert and Private hold
// PEM-encoded material once the first issuance has succeeded.
type Cert struct {
	ID      string
	Update  int64
	State   State
	Cert    *string
	Private *string
	Domain  string
}

// NewCert creates an updating row owned by the given tenant, with the
// acquisition timestamp set to the current time.
func NewCert(domain *Domain) *Cert {
	return &Cert{
		ID:     NewID(),
		Update: ToInt64(Now()),
		State:  StateUpdating,
		Domain: domain.ID,
	}
}

// Same reports whether the other row carries the same signing material.
func (c *Cert) Same(other *Cert) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.ID == other.ID && equalPtr(c.Cert, other.Cert) && equalPtr(c.Private, other.Private)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
