// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package message

import "context"

type appIDContextKey struct{}

// ContextWithAppID returns a context carrying the verified app ID.
func ContextWithAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, appIDContextKey{}, appID)
}

// AppIDFromContext returns the verified app ID stored in the context.
func AppIDFromContext(ctx context.Context) (string, bool) {
	appID, ok := ctx.Value(appIDContextKey{}).(string)

	return appID, ok
}
