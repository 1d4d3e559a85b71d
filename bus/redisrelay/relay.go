// Package redisrelay carries token refresh events between processes over Redis pub/sub.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/bus"
	"github.com/jrsteele09/go-session-gate/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 3 * time.Second

type message struct {
	Origin       string `json:"origin"`
	Name         string `json:"name"`
	SessionID    string `json:"sessionId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Relay forwards locally published events to Redis and republishes events
// from other relays on the local bus.
type Relay struct {
	id      string
	rdb     redis.UniversalClient
	bus     *bus.Bus
	channel string
	ready   chan struct{}
}

func New(rdb redis.UniversalClient, b *bus.Bus, prefix string) *Relay {
	return &Relay{
		id:      uuid.New().String(),
		rdb:     rdb,
		bus:     b,
		channel: prefix + "events",
		ready:   make(chan struct{}),
	}
}

// ID identifies this relay as the origin of the events it sends
func (r *Relay) ID() string {
	return r.id
}

// Ready is closed once the relay is subscribed on both sides
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run relays events until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	ps := r.rdb.Subscribe(ctx, r.channel)
	defer ps.Close()

	// Wait for the subscription confirmation so nothing published after Ready is missed
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("[redisrelay Run] subscribe %s: %w", r.channel, err)
	}

	sub := r.bus.Subscribe(func(ev bus.Event) {
		if ev.Origin != "" {
			return // relayed in, don't echo
		}
		r.send(ctx, ev)
	})
	defer r.bus.Unsubscribe(sub)

	close(r.ready)
	log.Debug().Str("relay", r.id).Str("channel", r.channel).Msg("redis relay running")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.receive(msg.Payload)
		}
	}
}

func (r *Relay) send(ctx context.Context, ev bus.Event) {
	payload, err := json.Marshal(message{
		Origin:       r.id,
		Name:         ev.Name,
		SessionID:    ev.SessionID,
		AccessToken:  ev.Pair.AccessToken,
		RefreshToken: ev.Pair.RefreshToken,
	})
	if err != nil {
		log.Err(err).Msg("redis relay: encode event")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(pubCtx, r.channel, payload).Err(); err != nil {
		log.Err(err).Str("session", ev.SessionID).Msg("redis relay: publish event")
	}
}

func (r *Relay) receive(payload string) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.Warn().Err(err).Msg("redis relay: dropping malformed event")
		return
	}
	if m.Origin == r.id || m.Origin == "" {
		return
	}

	r.bus.PublishEvent(bus.Event{
		Name:      m.Name,
		SessionID: m.SessionID,
		Pair:      token.Pair{AccessToken: m.AccessToken, RefreshToken: m.RefreshToken},
		Origin:    m.Origin,
	})
}
