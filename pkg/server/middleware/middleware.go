// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package middleware provides an HTTP middleware which verifies request signatures.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

// Response is the JSON body written for rejected requests.
type Response struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// AppIDFromContext returns the verified app ID of the request.
func AppIDFromContext(ctx context.Context) (string, bool) {
	return message.AppIDFromContext(ctx)
}

// Option customizes the middleware.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger for rejected requests.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Verify returns a middleware which rejects requests without a valid signature.
func Verify(verifier message.Verifier, opt ...Option) func(http.Handler) http.Handler {
	opts := options{
		logger: zap.NewNop(),
	}

	for _, o := range opt {
		o(&opts)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			msg, err := message.NewHTTP(r)
			if err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, message.ErrBodyTooLarge) {
					status = http.StatusRequestEntityTooLarge
				}

				opts.logger.Debug("failed to read request body", zap.Error(err))

				writeError(w, status, http.StatusText(status))

				return
			}

			result := msg.Verify(r.Context(), verifier)
			if !result.Accepted() {
				opts.logger.Debug("request rejected",
					zap.String("app_id", msg.AppID()),
					zap.String("path", r.URL.Path),
					zap.Stringer("result", result),
				)

				writeError(w, StatusCode(result), result.PublicMessage())

				return
			}

			next.ServeHTTP(w, r.WithContext(message.ContextWithAppID(r.Context(), msg.AppID())))
		})
	}
}

// StatusCode maps a rejected result to the HTTP status code.
func StatusCode(result signature.Result) int {
	switch result.Reason {
	case signature.ReasonAccepted:
		return http.StatusOK
	case signature.ReasonDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Response{Code: status, Msg: msg}) //nolint:errcheck,errchkjson
}
