// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package message

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// ProtoPayload returns the bytes of a gRPC request which are bound to its signature.
//
// Both sides must marshal the message the same way, so the deterministic encoding is used.
func ProtoPayload(req any) ([]byte, error) {
	if req == nil {
		return nil, nil
	}

	msg, ok := req.(proto.Message)
	if !ok {
		return nil, status.Errorf(codes.Internal, "unsupported request type %T", req)
	}

	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}
