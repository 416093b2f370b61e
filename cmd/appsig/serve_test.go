// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/nonce"
	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

var testCreds = secret.Secret{
	AppID:     "app1",
	AppSecret: "s3cr3t",
	CipherKey: "0123456789abcdef",
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zaptest.NewLogger(t)

	static, err := secret.NewStaticResolver(testCreds)
	require.NoError(t, err)

	resolver, err := secret.NewCachingResolver(context.Background(), static)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, resolver.Close())
	})

	metrics := signature.NewMetrics()

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics)

	verifier, err := signature.NewVerifier(resolver, nonce.NewMemoryStore(),
		signature.WithLogger(logger),
		signature.WithMetrics(metrics),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(verifier, registry, logger))
	t.Cleanup(srv.Close)

	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(data)
}

func postSigned(t *testing.T, url string, body []byte) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)

	m, err := message.NewHTTP(req)
	require.NoError(t, err)

	require.NoError(t, m.Sign(testCreds, signature.NewGenerator()))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	code, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestSecureData(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, data := postSigned(t, srv.URL+"/api/v2/secure-data", []byte(`{"x":1}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"appId":"app1","data":{"x":1}}`, string(data))

	resp, data = postSigned(t, srv.URL+"/api/v2/secure-data", []byte("plain text"))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"appId":"app1","data":"plain text"}`, string(data))

	resp, data = postSigned(t, srv.URL+"/api/v2/secure-data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.JSONEq(t, `{"appId":"app1"}`, string(data))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/v2/secure-data", strings.NewReader(`{"x":1}`))
	require.NoError(t, err)

	unsigned, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer unsigned.Body.Close() //nolint:errcheck

	var rejection struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	}

	require.NoError(t, json.NewDecoder(unsigned.Body).Decode(&rejection))
	assert.Equal(t, http.StatusUnauthorized, unsigned.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, rejection.Code)

	code, metrics := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, metrics, `appsig_verifications_total{reason="Accepted"} 3`)
	assert.Contains(t, metrics, `appsig_verifications_total{reason="MissingField"} 1`)
}
