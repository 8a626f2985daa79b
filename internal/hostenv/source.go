// Package hostenv attaches to the host browser and feeds raw observations to
// the lifecycle machine: the page URL, DOM snapshots keyed by concept, and
// intercepted network response bodies. It is strictly observe-only; nothing in
// this package navigates, clicks, types, or mutates page state.
package hostenv

import (
	"context"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Sink receives host observations. *lifecycle.Machine satisfies this.
type Sink interface {
	Tick(ctx context.Context, urlSnap types.URLSnapshot, domSnap types.DOMSnapshot)
	OnDOMMutation(ctx context.Context, urlSnap types.URLSnapshot, domSnap types.DOMSnapshot)
	OnNetworkBody(ctx context.Context, body []byte)
}

// Source is one attached host environment. Run blocks until the context is
// cancelled or the browser connection is lost for good.
type Source interface {
	Run(ctx context.Context) error
	Close() error
}
