// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnsserver

import (
	"context"
	"log/slog"
	"net"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "dns_request_duration_seconds",
	Help: "The DNS request latencies in seconds.",
}, []string{"name"})

type Config struct {
	Addr string // Defaults to ":dns"

	Logger *slog.Logger // Defaults to slog.Default()

	// If provided, this channel will be closed once the listener is ready.
	Ready chan struct{}
}

// Serve answers queries on a UDP socket until the context is done.  Every
// query gets an authoritative reply; resolver misses and resolver errors
// yield an empty answer with a success code, so that negative results are
// never cached.
func Serve(ctx context.Context, resolver Resolver, serverConfig *Config) (err error) {
	var config Config

	if serverConfig != nil {
		config = *serverConfig
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, m *dns.Msg) {
		handle(ctx, w, m, resolver, config.Logger)
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errors := make(chan error, 2) // context, listener

	var pc net.PacketConn

	pc, err = net.ListenPacket("udp", config.Addr)
	if err != nil {
		return
	}

	go func() {
		defer pc.Close()
		<-ctx.Done()
		errors <- ctx.Err()
	}()

	go func() {
		errors <- dns.ActivateAndServe(nil, pc, handler)
	}()

	config.Logger.Info("listening", "component", "dnsserver", "addr", pc.LocalAddr().String())

	if config.Ready != nil {
		close(config.Ready)
	}

	err = <-errors
	return
}

func handle(ctx context.Context, w dns.ResponseWriter, questMsg *dns.Msg, resolver Resolver, logger *slog.Logger) {
	defer func() {
		if x := recover(); x != nil {
			logger.Error("dnsserver: panic", "value", x)
		}
	}()

	defer func() {
		if err := w.Close(); err != nil {
			logger.Error("dnsserver: close", "error", err)
		}
	}()

	var replyMsg dns.Msg
	replyCode := dns.RcodeServerFailure

	defer func() {
		if replyCode != dns.RcodeSuccess {
			logger.Debug("dnsserver: refusing", "remote", w.RemoteAddr(), "rcode", dns.RcodeToString[replyCode])
		}

		if err := w.WriteMsg(replyMsg.SetRcode(questMsg, replyCode)); err != nil {
			logger.Error("dnsserver: write", "error", err)
		}
	}()

	if len(questMsg.Question) != 1 {
		replyCode = dns.RcodeNotImplemented
		return
	}

	q := questMsg.Question[0]

	if q.Qclass != dns.ClassINET {
		replyCode = dns.RcodeNotImplemented
		return
	}

	logger.Debug("dnsserver: query", "remote", w.RemoteAddr(), "type", dns.TypeToString[q.Qtype], "name", q.Name)

	timer := prometheus.NewTimer(requestDuration.WithLabelValues(q.Name))
	answer, err := resolver.Search(ctx, q.Name, q.Qtype)
	timer.ObserveDuration()
	if err != nil {
		logger.Error("dnsserver: search", "name", q.Name, "error", err)
		answer = nil
	}

	replyMsg.Authoritative = true
	replyMsg.Answer = answer
	replyCode = dns.RcodeSuccess
}
