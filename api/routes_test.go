// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsavola/certdns"
	"github.com/tsavola/certdns/store/memstore"
)

func TestRegister(t *testing.T) {
	store := memstore.NewStore()
	handler := newHandler(store, testLogger)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/register", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var dto certdns.DomainDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	require.Len(t, dto.ID, 32)
	require.Len(t, dto.Password, 32)

	domain, err := store.FindDomain(context.Background(), dto.ID)
	require.NoError(t, err)
	require.NotNil(t, domain)
	require.NotEqual(t, dto.Password, domain.Password)
}

func registerTenant(t *testing.T, handler http.Handler) certdns.DomainDTO {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/register", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var dto certdns.DomainDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	return dto
}

func TestUpdate(t *testing.T) {
	store := memstore.NewStore()
	handler := newHandler(store, testLogger)
	dto := registerTenant(t, handler)

	r := httptest.NewRequest("POST", "/update", strings.NewReader(`{"txt": "proof"}`))
	r.Header.Set(headerAPIUser, dto.ID)
	r.Header.Set(headerAPIKey, dto.Password)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	domain, err := store.FindDomain(context.Background(), dto.ID)
	require.NoError(t, err)
	require.NotNil(t, domain.Txt)
	require.Equal(t, "proof", *domain.Txt)

	// Empty value clears the record.
	r = httptest.NewRequest("POST", "/update", strings.NewReader(`{"txt": ""}`))
	r.Header.Set(headerAPIUser, dto.ID)
	r.Header.Set(headerAPIKey, dto.Password)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	domain, err = store.FindDomain(context.Background(), dto.ID)
	require.NoError(t, err)
	require.Nil(t, domain.Txt)
}

func TestUpdateUnauthorized(t *testing.T) {
	store := memstore.NewStore()
	handler := newHandler(store, testLogger)
	dto := registerTenant(t, handler)

	for name, headers := range map[string][2]string{
		"missing headers": {"", ""},
		"unknown tenant":  {"nobody", dto.Password},
		"wrong password":  {dto.ID, "wrong"},
	} {
		r := httptest.NewRequest("POST", "/update", strings.NewReader(`{"txt": "proof"}`))
		if headers[0] != "" {
			r.Header.Set(headerAPIUser, headers[0])
		}
		if headers[1] != "" {
			r.Header.Set(headerAPIKey, headers[1])
		}

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestUpdateBadBody(t *testing.T) {
	store := memstore.NewStore()
	handler := newHandler(store, testLogger)
	dto := registerTenant(t, handler)

	r := httptest.NewRequest("POST", "/update", strings.NewReader("not json"))
	r.Header.Set(headerAPIUser, dto.ID)
	r.Header.Set(headerAPIKey, dto.Password)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	handler := newHandler(memstore.NewStore(), testLogger)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/nonexistent", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
