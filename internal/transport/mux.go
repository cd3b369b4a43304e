package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/frame"
	"github.com/roach88/filmreel/internal/reel"
)

// ErrNoSender is returned by Mux for protocols without a sender.
var ErrNoSender = errors.New("no sender for protocol")

// Mux dispatches each frame to the sender registered for its protocol.
type Mux map[frame.Protocol]reel.Sender

// Send implements reel.Sender.
func (m Mux) Send(ctx context.Context, proto frame.Protocol, req frame.Request) (doc.Value, error) {
	s, ok := m[proto]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w %s", ErrNoSender, proto)
	}
	return s.Send(ctx, proto, req)
}
