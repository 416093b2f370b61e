// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package interceptor provides gRPC server interceptors which verify request signatures.
package interceptor

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

// Options are the options for the interceptor.
type Options struct {
	Logger *zap.Logger

	// SkipMethods are the full method names which are served without a signature.
	SkipMethods []string
}

// Interceptor provides Unary and Stream server interceptors.
type Interceptor struct {
	verifier    message.Verifier
	logger      *zap.Logger
	skipMethods map[string]struct{}
}

// New creates a new server interceptor.
func New(verifier message.Verifier, options Options) *Interceptor {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	skipMethods := make(map[string]struct{}, len(options.SkipMethods))

	for _, method := range options.SkipMethods {
		skipMethods[method] = struct{}{}
	}

	return &Interceptor{
		verifier:    verifier,
		logger:      options.Logger,
		skipMethods: skipMethods,
	}
}

// Unary returns a new unary server interceptor which verifies requests.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if i.skip(info.FullMethod) {
			return handler(ctx, req)
		}

		payload, err := message.ProtoPayload(req)
		if err != nil {
			return nil, err
		}

		ctx, err = i.verify(ctx, info.FullMethod, payload)
		if err != nil {
			return nil, err
		}

		return handler(ctx, req)
	}
}

// Stream returns a new stream server interceptor which verifies requests.
//
// The stream messages are not part of the signature.
func (i *Interceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if i.skip(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx, err := i.verify(ss.Context(), info.FullMethod, nil)
		if err != nil {
			return err
		}

		return handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
	}
}

func (i *Interceptor) skip(method string) bool {
	_, ok := i.skipMethods[method]

	return ok
}

func (i *Interceptor) verify(ctx context.Context, method string, payload []byte) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}

	msg := message.NewGRPC(md, method)

	result := msg.Verify(ctx, i.verifier, payload)
	if !result.Accepted() {
		i.logger.Debug("request rejected",
			zap.String("app_id", msg.AppID()),
			zap.String("method", method),
			zap.Stringer("result", result),
		)

		return nil, status.Error(Code(result), result.PublicMessage())
	}

	return message.ContextWithAppID(ctx, msg.AppID()), nil
}

// Code maps a verification result to the gRPC status code.
func Code(result signature.Result) codes.Code {
	switch result.Reason {
	case signature.ReasonAccepted:
		return codes.OK
	case signature.ReasonDependencyUnavailable:
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

type serverStream struct {
	grpc.ServerStream

	ctx context.Context //nolint:containedctx
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}
