// Package transport carries protocol frames between clients and the
// dispatcher. Transports are interchangeable: the dispatcher never knows
// whether a request arrived over stdio or a websocket.
package transport

import (
	"context"

	"github.com/oakmont/parcelscout/pkg/protocol"
)

// Handler processes one decoded request and returns its response. The
// dispatcher satisfies this.
type Handler func(ctx context.Context, req *protocol.Request) *protocol.Response

// Transport accepts protocol frames and feeds them to a handler. Run blocks
// until the context ends or the transport's input is exhausted.
type Transport interface {
	Run(ctx context.Context) error
}
