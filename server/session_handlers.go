package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/syncprovider"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/rs/zerolog/log"
)

const socketWriteTimeout = 10 * time.Second

// SessionEvent is pushed down the session socket when the session's tokens change
type SessionEvent struct {
	Type         string `json:"type"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionHandler reports the caller's session
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.currentSession(r)
		if errors.Is(err, errors.ErrNoSession) {
			writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
			return
		}
		if err != nil {
			log.Err(err).Msg("failed to read session")
			writeJSONError(w, "server_error", "failed to read session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, s.sessionResponse(record))
	}
}

// RefreshHandler renews the caller's access token through the coordinator.
// A failed renewal ends the session.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.currentSession(r)
		if err != nil {
			s.clearSessionCookie(w, r)
			writeJSONError(w, "unauthorized", errors.ErrNoSession.Error(), http.StatusUnauthorized)
			return
		}

		accessToken, err := s.services.Coordinator.Refresh(r.Context(), record.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.clearSessionCookie(w, r)
			writeJSONError(w, "unauthorized", "session ended: "+err.Error(), http.StatusUnauthorized)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": accessToken,
			"expiresIn":   int64(s.services.Expiry.TimeLeft(accessToken).Seconds()),
		})
	}
}

// SessionSocketHandler keeps the session fresh for as long as the socket is
// open and pushes every renewed pair to the client.
func (s *Server) SessionSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.currentSession(r)
		if err != nil {
			writeJSONError(w, "unauthorized", errors.ErrNoSession.Error(), http.StatusUnauthorized)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response
			log.Debug().Err(err).Msg("session socket upgrade failed")
			return
		}
		defer conn.Close()

		// Only the writer goroutine writes to conn
		events := newEventQueue(socketEventBuffer)
		done := make(chan struct{})
		go events.run(done, func(ev SessionEvent) error {
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			return conn.WriteJSON(ev)
		})
		defer close(done)

		provider := syncprovider.New(record.ID, s.services.Store, s.services.Bus, s.services.Expiry, s.services.Coordinator,
			syncprovider.WithInterval(s.config.GetSyncInterval()),
			syncprovider.WithMetrics(s.services.Metrics),
			syncprovider.WithRenewedHook(func(pair token.Pair) {
				events.push(SessionEvent{Type: bus.EventTokenRefreshed, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
			}),
		)

		provider.Mount(context.WithoutCancel(r.Context()))
		defer provider.Unmount()

		// The client never sends anything meaningful; reading detects the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Str("session", record.ID).Msg("session socket closed")
				}
				return
			}
		}
	}
}
