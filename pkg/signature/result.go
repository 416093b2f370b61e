// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package signature

import (
	"errors"
	"fmt"
)

// Reason is the outcome of a verification.
type Reason int

// Verification outcomes.
const (
	ReasonAccepted Reason = iota
	ReasonMissingField
	ReasonTimestampOutOfRange
	ReasonNonceReused
	ReasonDecryptionFailed
	ReasonMalformedClaims
	ReasonFieldMismatch
	ReasonIntegrityMismatch
	ReasonDependencyUnavailable
)

// ErrRejected is wrapped by the errors returned from Result.Err.
var ErrRejected = errors.New("signature rejected")

// String implements fmt.Stringer.
func (r Reason) String() string {
	switch r {
	case ReasonAccepted:
		return "Accepted"
	case ReasonMissingField:
		return "MissingField"
	case ReasonTimestampOutOfRange:
		return "TimestampOutOfRange"
	case ReasonNonceReused:
		return "NonceReused"
	case ReasonDecryptionFailed:
		return "DecryptionFailed"
	case ReasonMalformedClaims:
		return "MalformedClaims"
	case ReasonFieldMismatch:
		return "FieldMismatch"
	case ReasonIntegrityMismatch:
		return "IntegrityMismatch"
	case ReasonDependencyUnavailable:
		return "DependencyUnavailable"
	}

	return fmt.Sprintf("Reason(%d)", int(r))
}

// Result is the outcome of Verifier.Verify.
type Result struct {
	// Field names the missing or mismatching field for ReasonMissingField and ReasonFieldMismatch.
	Field  string
	Reason Reason
}

func accepted() Result {
	return Result{Reason: ReasonAccepted}
}

func rejected(reason Reason) Result {
	return Result{Reason: reason}
}

func rejectedField(reason Reason, field string) Result {
	return Result{Reason: reason, Field: field}
}

// Accepted returns true if the signature is valid.
func (r Result) Accepted() bool {
	return r.Reason == ReasonAccepted
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if r.Field != "" {
		return fmt.Sprintf("%s(%s)", r.Reason, r.Field)
	}

	return r.Reason.String()
}

// Err returns nil for an accepted result, an error wrapping ErrRejected otherwise.
func (r Result) Err() error {
	if r.Accepted() {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrRejected, r)
}

// PublicMessage is the reason which is safe to return to the caller.
//
// Outcomes which depend on the app credentials share one message, so that an unknown app ID
// can't be told apart from a wrong secret.
func (r Result) PublicMessage() string {
	switch r.Reason {
	case ReasonAccepted:
		return "signature verified"
	case ReasonMissingField:
		return fmt.Sprintf("missing %s", r.Field)
	case ReasonTimestampOutOfRange:
		return "request timestamp is out of the allowed range"
	case ReasonNonceReused:
		return "request has already been processed"
	case ReasonDependencyUnavailable:
		return "signature verification is temporarily unavailable"
	case ReasonDecryptionFailed, ReasonMalformedClaims, ReasonFieldMismatch, ReasonIntegrityMismatch:
	}

	return "invalid signature"
}
