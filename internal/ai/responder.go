// Package ai holds the placeholder responder. It stands in for a real
// model call: text in, text out, with an artificial "thinking" delay.
package ai

import (
	"context"
	"time"
)

type ResponderConfig struct {
	ReplyPrefix string
	ThinkDelay  time.Duration
}

// StubResponder produces a deterministic reply: the configured prefix
// followed by the user's own content. Callers treat it as opaque, so a
// real integration can replace it without touching the message flow.
type StubResponder struct {
	cfg ResponderConfig
}

func NewStubResponder(cfg ResponderConfig) *StubResponder {
	if cfg.ReplyPrefix == "" {
		cfg.ReplyPrefix = "AI回复: "
	}
	return &StubResponder{cfg: cfg}
}

// Reply blocks for the configured delay, then echoes the content behind
// the reply prefix. The delay is cut short if ctx is cancelled, which is
// the only timeout this call has.
func (r *StubResponder) Reply(ctx context.Context, content string) (string, error) {
	if r.cfg.ThinkDelay > 0 {
		timer := time.NewTimer(r.cfg.ThinkDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return r.cfg.ReplyPrefix + content, nil
}
