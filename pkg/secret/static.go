// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package secret

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// StaticResolver resolves secrets from a fixed set.
type StaticResolver struct {
	secrets map[string]Secret
}

// NewStaticResolver validates the secrets and builds a StaticResolver.
//
// All invalid entries are reported at once.
func NewStaticResolver(secrets ...Secret) (*StaticResolver, error) {
	var err error

	r := &StaticResolver{
		secrets: make(map[string]Secret, len(secrets)),
	}

	for _, s := range secrets {
		if validateErr := s.Validate(); validateErr != nil {
			err = multierror.Append(err, validateErr)

			continue
		}

		if _, ok := r.secrets[s.AppID]; ok {
			err = multierror.Append(err, fmt.Errorf("app %q: duplicate entry", s.AppID))

			continue
		}

		r.secrets[s.AppID] = s
	}

	if err != nil {
		return nil, err
	}

	return r, nil
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(ctx context.Context, appID string) (*Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, ok := r.secrets[appID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, appID)
	}

	return &s, nil
}

// Len returns the number of known applications.
func (r *StaticResolver) Len() int {
	return len(r.secrets)
}
