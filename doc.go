// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package certdns and its subpackages implement a standalone DNS-01 certificate
service.  It answers DNS queries for ACME challenge TXT records on behalf of
registered tenants, obtains and renews a TLS certificate for its own API via
an external certificate authority, and terminates TLS with that certificate,
optionally behind a load balancer speaking the PROXY protocol.

This top-level package provides the persisted record types (Domain, Cert) and
the facade contracts which the subsystems share.


Subpackages

The cert subpackage drives certificate issuance.  It uses the Cert row as a
crash-safe distributed lock, so several process instances can share one
database without duplicating work: whoever flips the row to its updating
state owns the job, and an abandoned job is reclaimed after an hour.

The dns/dnsserver subpackage implements a simple, authoritative DNS server.
It expects a resolver to be plugged in.

The dns/authority subpackage implements just such a resolver.  It combines
statically configured records with dynamic per-tenant TXT data, including the
_acme-challenge proof published by the cert subsystem during renewal.

The api subpackage serves the registration/update HTTP routes and the
Prometheus metrics endpoint.  Its TLS listener resolves signing material from
the database per accepted connection, hot-swapping certificates without
disturbing established connections.  The api/proxy subpackage recovers the
true peer address from a PROXY protocol v1/v2 preamble.

The store/pgstore and store/memstore subpackages are interchangeable facade
implementations; the server runs on PostgreSQL, the tests mostly on memory.


Operation

A single Domain row owns the service's own certificate.  During renewal the
cert manager writes the ACME DNS-01 proof into that row's txt column, where
the DNS authority serves it to the certificate authority's validators.  Once
the order is finalized, the issued chain and key are persisted in the Cert
row and picked up by the TLS resolver on the next accepted connection.

*/
package certdns
