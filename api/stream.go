/*
stream.go - Live slider updates over a websocket

PROTOCOL:
  GET /api/allocations/{id}/stream upgrades to a websocket.
  - Server sends the current AllocationDTO right after the upgrade
  - Client sends {"sector": "...", "value": N} per slider move
  - Server answers every frame with the new AllocationDTO, or an
    ErrorResponse for an unknown sector (state unchanged)

  The session is shared with the REST endpoints; both go through
  Session.Do so moves from either side serialize.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/heatx/energy-engine/allocation"
)

// StreamAllocation serves the websocket for a session.
func (h *Handler) StreamAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originHosts(h.AllowedOrigins),
	})
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sess.ID).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	log := h.log.With().Str("session_id", sess.ID).Logger()
	log.Debug().Msg("Allocation stream opened")

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, toAllocationDTO(sess.ID, sess.State())); err != nil {
		return
	}

	for {
		var msg WeightUpdate
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				log.Debug().Msg("Allocation stream closed")
				return
			}
			log.Warn().Err(err).Msg("Allocation stream read failed")
			return
		}

		if err := wsjson.Write(ctx, conn, h.applyFrame(sess, msg)); err != nil {
			log.Warn().Err(err).Msg("Allocation stream write failed")
			return
		}
	}
}

func (h *Handler) applyFrame(sess *Session, msg WeightUpdate) any {
	s, err := allocation.ParseSector(msg.Sector)
	if err != nil {
		return ErrorResponse{Error: "Invalid weights", Details: err.Error()}
	}
	st, err := applyUpdates(sess, []sectorValue{{s, msg.Value}})
	if err != nil {
		return ErrorResponse{Error: "Invalid weights", Details: err.Error()}
	}
	return toAllocationDTO(sess.ID, st)
}

// originHosts turns "http://localhost:3000" into the "localhost:3000"
// host patterns websocket.Accept matches against. Wildcards are dropped;
// config.Validate refuses them since the API allows credentials.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
