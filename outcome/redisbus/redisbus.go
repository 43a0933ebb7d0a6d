// Package redisbus publishes outcome events to a Redis Pub/Sub channel,
// mirroring the teacher's use of a *redis.Client alongside Pulse streams in
// registry.go for distributing events to out-of-process subscribers.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/outcome"
)

// DefaultChannel is the Pub/Sub channel used when Options.Channel is empty.
const DefaultChannel = "htn.outcome.events"

// Publisher is an outcome.Reporter that publishes every event as JSON to a
// Redis Pub/Sub channel. Report publishes synchronously, one Redis round
// trip per event, and never fails the refinement loop: publish errors are
// swallowed after being handed to the configured error sink, since outcome
// reporting is best-effort.
type Publisher struct {
	client  *redis.Client
	channel string
	onErr   func(error)
}

// Options configures a Publisher.
type Options struct {
	Client  *redis.Client
	Channel string
	// OnError, if set, receives every publish error. Defaults to a no-op.
	OnError func(error)
}

// New constructs a Publisher from opts.
func New(opts Options) (*Publisher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("redisbus: redis client is required")
	}
	channel := opts.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	onErr := opts.OnError
	if onErr == nil {
		onErr = func(error) {}
	}
	return &Publisher{client: opts.Client, channel: channel, onErr: onErr}, nil
}

// wireEvent is the JSON wire shape of an outcome.Event.
type wireEvent struct {
	PlanID    string   `json:"plan_id"`
	Action    string   `json:"action"`
	Args      []string `json:"args"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Outcome   string   `json:"outcome"`
	Reason    string   `json:"reason,omitempty"`
}

// Report publishes evt to the configured channel. A marshal or publish
// error is handed to the configured OnError sink; Report itself never
// returns an error, satisfying outcome.Reporter's non-blocking contract.
func (p *Publisher) Report(ctx context.Context, evt outcome.Event) {
	payload := wireEvent{
		PlanID:    evt.PlanID,
		Action:    evt.Action,
		Args:      evt.Args,
		StartTime: isotime.FromMicrosAbs(evt.StartTime),
		EndTime:   isotime.FromMicrosAbs(evt.EndTime),
		Outcome:   evt.Outcome.String(),
		Reason:    evt.Reason,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.onErr(fmt.Errorf("redisbus: marshal outcome event: %w", err))
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.onErr(fmt.Errorf("redisbus: publish outcome event: %w", err))
	}
}

var _ outcome.Reporter = (*Publisher)(nil)
