// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/tsavola/certdns"
)

const (
	headerAPIUser = "X-Api-User"
	headerAPIKey  = "X-Api-Key"
)

func newHandler(facade certdns.Facade, logger *slog.Logger) http.Handler {
	h := &handler{facade, logger.With("component", "api")}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /update", h.update)
	return withMetrics(mux)
}

type handler struct {
	facade certdns.Facade
	logger *slog.Logger
}

// register creates a tenant and returns its credentials.  This is the only
// time the cleartext password leaves the server.
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	dto := certdns.NewDomainDTO()

	domain, err := dto.Domain()
	if err != nil {
		h.internalError(w, "register", err)
		return
	}

	if err := h.facade.CreateDomain(r.Context(), domain); err != nil {
		h.internalError(w, "register", err)
		return
	}

	h.logger.Info("tenant registered", "id", domain.ID)
	writeJSON(w, http.StatusCreated, dto)
}

type updateRequest struct {
	Txt string `json:"txt"`
}

// update sets the authenticated tenant's TXT value.  An empty value clears
// the record.
func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	username := r.Header.Get(headerAPIUser)
	password := r.Header.Get(headerAPIKey)
	if username == "" || password == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	domain, err := h.facade.FindDomain(r.Context(), username)
	if err != nil {
		h.internalError(w, "update", err)
		return
	}
	if domain == nil || bcrypt.CompareHashAndPassword([]byte(domain.Password), []byte(password)) != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var request updateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if request.Txt == "" {
		domain.Txt = nil
	} else {
		domain.Txt = &request.Txt
	}

	if err := h.facade.UpdateDomain(r.Context(), domain); err != nil {
		h.internalError(w, "update", err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}

func (h *handler) internalError(w http.ResponseWriter, route string, err error) {
	h.logger.Error("request failed", "route", route, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
