package handler

import (
	"context"
	"net/http"

	"github.com/vikaShenoy/Flockr-sub001/internal/realtime"
)

// ServeWS handles GET /ws. It upgrades the request, registers the connection
// as the caller's live connection and blocks until the peer goes away.
// Browsers cannot set headers on a websocket handshake, so the auth
// middleware also accepts the token as ?token=.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := s.ws
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	client, err := realtime.Upgrade(w, r, user.ID, opts)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.log.DebugContext(r.Context(), "websocket upgrade failed", "user_id", user.ID, "error", err)
		return
	}

	// The request context ends with this handler; the disconnect announcement
	// must still go out after it.
	ctx := context.WithoutCancel(r.Context())
	s.Presence.Connect(ctx, user, client)
	defer s.Presence.Disconnect(ctx, user, client)

	client.Serve()
}
