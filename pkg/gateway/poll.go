// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/clawtell/clawtell-go/pkg/agent"
	"github.com/clawtell/clawtell-go/pkg/api"
)

// pollLoop long-polls the relay until ctx is cancelled. Successful cycles
// chain immediately since the relay itself holds the connection open;
// failed cycles back off for the configured poll interval.
func (g *Gateway) pollLoop(ctx context.Context) {
	defer close(g.stopAck)

	g.log().WithFields(log.Fields{
		"timeout": g.conf.PollTimeout,
		"limit":   g.conf.PollLimit,
	}).Info("Poll loop started")

	for {
		if ctx.Err() != nil {
			g.log().Info("Poll loop exiting")
			return
		}

		resp, err := g.client.Poll(ctx, g.conf.PollTimeout, g.conf.PollLimit)
		if err != nil {
			if ctx.Err() != nil {
				g.log().Info("Poll loop exiting")
				return
			}

			g.log().WithError(err).Warn("Polling inbox errored")
			g.setError(err)

			select {
			case <-time.After(g.conf.PollInterval):
			case <-ctx.Done():
			}
			continue
		}

		g.dispatch(ctx, resp.Messages)
	}
}

// dispatch reconciles one polled batch: window-known ids are dropped, the
// rest is handed to the sink in order of first appearance. An id is
// reserved in the window before its handoff and released again if the
// handoff fails; successfully routed ids are acknowledged in one batch.
// Acknowledgment failures are logged, not retried; the next cycle
// re-fetches the affected messages and the window drops them silently.
func (g *Gateway) dispatch(ctx context.Context, messages []api.Message) {
	var processed []string

	for _, m := range messages {
		logger := g.log().WithField("message", m.ID)

		// The reservation races with the webhook receiver; losing it means
		// the message is already being surfaced on the other path.
		if !g.window.TryReserve(m.ID) {
			logger.Debug("Suppressing duplicate polled message")
			continue
		}

		msg := agent.FromAPI(m)
		if err := g.sink.Deliver(msg); err != nil {
			g.window.Release(m.ID)

			logger.WithError(err).Warn("Routing polled message errored, skipping acknowledgment")
			g.setError(err)
			continue
		}

		g.markInbound()
		processed = append(processed, m.ID)

		logger.WithField("from", msg.From).Info("Routed polled message")
	}

	if len(processed) == 0 {
		return
	}

	if ack, err := g.client.Ack(ctx, processed); err != nil {
		g.log().WithError(err).WithField("messages", len(processed)).Warn("Acknowledging messages errored")
		g.setError(err)
	} else {
		g.log().WithField("acked", ack.Acked).Debug("Acknowledged message batch")
	}
}
