// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package interceptor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/interop/grpc_testing"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/nonce"
	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/server/interceptor"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

const method = "/grpc.testing.TestService/UnaryCall"

var creds = secret.Secret{
	AppID:     "app1",
	AppSecret: "s3cr3t",
	CipherKey: "0123456789abcdef",
}

type brokenStore struct{}

func (brokenStore) Reserve(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

type serverStream struct {
	grpc.ServerStream

	ctx context.Context //nolint:containedctx
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}

func newInterceptor(t *testing.T, store nonce.Store) *interceptor.Interceptor {
	t.Helper()

	resolver, err := secret.NewStaticResolver(creds)
	require.NoError(t, err)

	verifier, err := signature.NewVerifier(resolver, store)
	require.NoError(t, err)

	return interceptor.New(verifier, interceptor.Options{
		SkipMethods: []string{"/grpc.health.v1.Health/Check"},
	})
}

func signedContext(t *testing.T, req any) context.Context {
	t.Helper()

	payload, err := message.ProtoPayload(req)
	require.NoError(t, err)

	msg := message.NewGRPC(metadata.New(nil), method)
	require.NoError(t, msg.Sign(creds, signature.NewGenerator(), payload))

	return metadata.NewIncomingContext(context.Background(), msg.Metadata)
}

func echoAppID(ctx context.Context, _ any) (any, error) {
	appID, _ := message.AppIDFromContext(ctx)

	return appID, nil
}

func TestUnary(t *testing.T) {
	t.Parallel()

	unary := newInterceptor(t, nonce.NewMemoryStore()).Unary()
	info := &grpc.UnaryServerInfo{FullMethod: method}

	req := &grpc_testing.SimpleRequest{
		ResponseSize: 42,
		Payload:      &grpc_testing.Payload{Body: []byte("hello")},
	}

	ctx := signedContext(t, req)

	resp, err := unary(ctx, req, info, echoAppID)
	require.NoError(t, err)
	assert.Equal(t, "app1", resp)

	_, err = unary(ctx, req, info, echoAppID)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "request has already been processed", status.Convert(err).Message())

	tampered := &grpc_testing.SimpleRequest{
		ResponseSize: 43,
		Payload:      &grpc_testing.Payload{Body: []byte("hello")},
	}

	_, err = unary(signedContext(t, req), tampered, info, echoAppID)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "invalid signature", status.Convert(err).Message())

	_, err = unary(context.Background(), req, info, echoAppID)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing appId", status.Convert(err).Message())

	_, err = unary(signedContext(t, req), "not a proto message", info, echoAppID)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUnarySkipMethods(t *testing.T) {
	t.Parallel()

	unary := newInterceptor(t, nonce.NewMemoryStore()).Unary()

	resp, err := unary(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, echoAppID)
	require.NoError(t, err)
	assert.Equal(t, "", resp)
}

func TestUnaryDependencyUnavailable(t *testing.T) {
	t.Parallel()

	unary := newInterceptor(t, brokenStore{}).Unary()
	req := &grpc_testing.SimpleRequest{}

	_, err := unary(signedContext(t, req), req, &grpc.UnaryServerInfo{FullMethod: method}, echoAppID)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestStream(t *testing.T) {
	t.Parallel()

	stream := newInterceptor(t, nonce.NewMemoryStore()).Stream()
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.testing.TestService/StreamingOutputCall"}

	var appID string

	handler := func(_ any, ss grpc.ServerStream) error {
		appID, _ = message.AppIDFromContext(ss.Context())

		return nil
	}

	require.NoError(t, stream(nil, &serverStream{ctx: signedContext(t, nil)}, info, handler))
	assert.Equal(t, "app1", appID)

	err := stream(nil, &serverStream{ctx: context.Background()}, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestCode(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		reason signature.Reason
		code   codes.Code
	}{
		{signature.ReasonAccepted, codes.OK},
		{signature.ReasonDependencyUnavailable, codes.Unavailable},
		{signature.ReasonNonceReused, codes.Unauthenticated},
		{signature.ReasonIntegrityMismatch, codes.Unauthenticated},
	} {
		assert.Equal(t, tt.code, interceptor.Code(signature.Result{Reason: tt.reason}), tt.reason.String())
	}
}
