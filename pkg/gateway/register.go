// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"strings"
	"time"
)

// registerWebhook announces the public webhook URL to the relay. Without a
// configured public URL nothing happens and the gateway stays poll-only;
// the same holds when registration fails, which is logged but never fatal.
func (g *Gateway) registerWebhook(ctx context.Context) {
	if g.conf.PublicURL == "" {
		g.log().Debug("No public URL configured, operating poll-only")
		return
	}

	secret := g.conf.WebhookSecret
	if secret == "" {
		var err error
		if secret, err = generateSecret(); err != nil {
			g.log().WithError(err).Warn("Generating webhook secret errored, operating poll-only")
			return
		}
		g.generatedSecret = secret
		g.log().Info("Generated webhook secret")
	}

	webhookURL := strings.TrimRight(g.conf.PublicURL, "/") + g.conf.WebhookPath

	regCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := g.client.RegisterGateway(regCtx, g.conf.Name, webhookURL, secret); err != nil {
		g.log().WithError(err).Warn("Webhook registration errored, relying on polling")
		g.setError(err)
		return
	}

	g.setWebhookActive(true)
	g.log().WithField("url", webhookURL).Info("Registered webhook with relay")
}
