// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package certdns

import (
	"golang.org/x/crypto/bcrypt"
)

// Domain is a registered tenant.  Its id doubles as the leftmost DNS label
// under which the tenant's TXT record is served, and Username/Password are
// the tenant's API credentials.  Password holds a bcrypt hash; the cleartext
// is only ever present in the DomainDTO handed out at registration.
type Domain struct {
	ID       string
	Username string
	Password string
	Txt      *string
}

// NewDomain creates a tenant with random credentials.  The cleartext
// password is discarded; use a DomainDTO when the caller needs it.
func NewDomain() (*Domain, error) {
	dto := NewDomainDTO()
	return dto.Domain()
}

// DomainDTO is the registration response.  Unlike Domain, it carries the
// cleartext password.
type DomainDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func NewDomainDTO() DomainDTO {
	return DomainDTO{
		ID:       NewID(),
		Username: NewID(),
		Password: NewID(),
	}
}

// Domain converts the DTO into the persistable form, hashing the password.
func (dto DomainDTO) Domain() (*Domain, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &Domain{
		ID:       dto.ID,
		Username: dto.Username,
		Password: string(hash),
	}, nil
}
