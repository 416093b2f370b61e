// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package interceptor provides a GRPC client interceptor that signs requests.
package interceptor

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/secret"
)

// SkipInterceptorContextKey is a context key used to skip interceptor to avoid infinite recursion.
type SkipInterceptorContextKey struct{}

// CredentialsFunc is a function which is called to get the app credentials.
type CredentialsFunc func(ctx context.Context, cc *grpc.ClientConn) (*secret.Secret, error)

// StaticCredentials returns a CredentialsFunc which always returns creds.
func StaticCredentials(creds secret.Secret) CredentialsFunc {
	return func(context.Context, *grpc.ClientConn) (*secret.Secret, error) {
		return &creds, nil
	}
}

// Signature is a gRPC client interceptor which signs requests.
type Signature struct {
	signer         message.Signer
	creds          *secret.Secret
	credsFunc      CredentialsFunc
	renewCredsFunc CredentialsFunc
	initErr        error
	initOnce       sync.Once
	credsMu        sync.Mutex
}

// NewSignature returns a new Signature interceptor.
//
// renewCredsFunc is a function which is called when the current credentials are rejected
// (e.g. got a response with codes.Unauthenticated), it might be nil.
func NewSignature(signer message.Signer, credsFunc, renewCredsFunc CredentialsFunc) *Signature {
	return &Signature{
		signer:         signer,
		credsFunc:      credsFunc,
		renewCredsFunc: renewCredsFunc,
	}
}

// Unary returns a new unary client interceptor which signs requests.
//
// The deterministic encoding of the request message is bound to the signature.
func (c *Signature) Unary() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		payload, err := message.ProtoPayload(req)
		if err != nil {
			return err
		}

		return c.intercept(ctx, cc, method, payload, func(ctx context.Context) error {
			return invoker(ctx, method, req, reply, cc, opts...)
		})
	}
}

// Stream returns a new streaming client interceptor which signs requests.
//
// Stream messages are not bound to the signature.
func (c *Signature) Stream() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		var stream grpc.ClientStream

		err := c.intercept(ctx, cc, method, nil, func(ctx context.Context) error {
			var streamErr error

			stream, streamErr = streamer(ctx, desc, cc, method, opts...)

			return streamErr
		})
		if err != nil {
			return nil, err
		}

		return stream, nil
	}
}

func (c *Signature) intercept(ctx context.Context, cc *grpc.ClientConn, method string, payload []byte, fn func(context.Context) error) error {
	if ctx.Value(SkipInterceptorContextKey{}) != nil {
		return fn(ctx)
	}

	ctx = context.WithValue(ctx, SkipInterceptorContextKey{}, struct{}{})

	c.initializeOnce(ctx, cc)

	if c.initErr != nil {
		return c.initErr
	}

	unsignedCtx := ctx

	signedCtx, err := c.sign(unsignedCtx, method, payload)
	if err != nil {
		return err
	}

	// every attempt is signed again, a retried signature would be rejected as a replay
	err = fn(signedCtx)
	if status.Code(err) == codes.Unauthenticated && c.renewCredsFunc != nil {
		return c.retry(unsignedCtx, cc, method, payload, fn)
	}

	return err
}

func (c *Signature) retry(ctx context.Context, cc *grpc.ClientConn, method string, payload []byte, fn func(context.Context) error) error {
	creds, err := c.renewCredsFunc(ctx, cc)
	if err != nil {
		return err
	}

	c.setCredentials(creds)

	ctx, err = c.sign(ctx, method, payload)
	if err != nil {
		return err
	}

	return fn(ctx)
}

func (c *Signature) sign(ctx context.Context, method string, payload []byte) (context.Context, error) {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.New(nil)
	}

	msg := message.NewGRPC(md, method)

	if err := msg.Sign(c.credentials(), c.signer, payload); err != nil {
		return nil, err
	}

	return metadata.NewOutgoingContext(ctx, msg.Metadata), nil
}

func (c *Signature) credentials() secret.Secret {
	c.credsMu.Lock()
	defer c.credsMu.Unlock()

	return *c.creds
}

func (c *Signature) setCredentials(creds *secret.Secret) {
	c.credsMu.Lock()
	defer c.credsMu.Unlock()

	c.creds = creds
}

func (c *Signature) initializeOnce(ctx context.Context, cc *grpc.ClientConn) {
	c.initOnce.Do(func() {
		var err error

		creds, credsErr := c.credsFunc(ctx, cc)
		if credsErr != nil {
			if c.renewCredsFunc == nil {
				c.initErr = credsErr

				return
			}

			var renewErr error

			creds, renewErr = c.renewCredsFunc(ctx, cc)
			if renewErr != nil {
				err = multierror.Append(err, credsErr, renewErr)
			}
		}

		c.creds = creds
		c.initErr = err
	})
}
