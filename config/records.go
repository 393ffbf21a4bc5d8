// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Records holds preconfigured resource records, keyed by lowercase
// fully-qualified owner name and record type.
type Records map[string]map[uint16][]dns.RR

// ParseRecords converts configured record entries into resource records.
// Each entry is a string list: type, TTL, and one or more values.  Any
// invalid entry fails the whole parse; a server must not start with a
// partial zone.
func ParseRecords(entries map[string][][]string) (Records, error) {
	records := make(Records, len(entries))

	for name, list := range entries {
		fqdn := strings.ToLower(dns.Fqdn(name))
		if _, ok := dns.IsDomainName(fqdn); !ok {
			return nil, fmt.Errorf("records: invalid name %q", name)
		}

		for _, entry := range list {
			rrs, rrtype, err := parseEntry(fqdn, entry)
			if err != nil {
				return nil, fmt.Errorf("records: %s: %w", name, err)
			}

			byType := records[fqdn]
			if byType == nil {
				byType = make(map[uint16][]dns.RR)
				records[fqdn] = byType
			}
			byType[rrtype] = append(byType[rrtype], rrs...)
		}
	}

	return records, nil
}

func parseEntry(fqdn string, entry []string) ([]dns.RR, uint16, error) {
	if len(entry) < 3 {
		return nil, 0, fmt.Errorf("entry needs type, ttl and at least one value")
	}

	ttl, err := strconv.ParseUint(entry[1], 10, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid ttl %q: %w", entry[1], err)
	}

	values := entry[2:]
	var rrs []dns.RR

	switch rrtype := strings.ToUpper(entry[0]); rrtype {
	case "A":
		for _, value := range values {
			ip := net.ParseIP(value)
			if ip = ip.To4(); ip == nil {
				return nil, 0, fmt.Errorf("invalid IPv4 address %q", value)
			}
			rrs = append(rrs, &dns.A{
				Hdr: header(fqdn, dns.TypeA, uint32(ttl)),
				A:   ip,
			})
		}
		return rrs, dns.TypeA, nil

	case "TXT":
		for _, value := range values {
			rrs = append(rrs, &dns.TXT{
				Hdr: header(fqdn, dns.TypeTXT, uint32(ttl)),
				Txt: []string{value},
			})
		}
		return rrs, dns.TypeTXT, nil

	case "CNAME":
		for _, value := range values {
			target := strings.ToLower(dns.Fqdn(value))
			if _, ok := dns.IsDomainName(target); !ok {
				return nil, 0, fmt.Errorf("invalid CNAME target %q", value)
			}
			rrs = append(rrs, &dns.CNAME{
				Hdr:    header(fqdn, dns.TypeCNAME, uint32(ttl)),
				Target: target,
			})
		}
		return rrs, dns.TypeCNAME, nil

	default:
		return nil, 0, fmt.Errorf("unsupported record type %q", entry[0])
	}
}

func header(fqdn string, rrtype uint16, ttl uint32) dns.RR_Header {
	return dns.RR_Header{
		Name:   fqdn,
		Rrtype: rrtype,
		Class:  dns.ClassINET,
		Ttl:    ttl,
	}
}
