// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"

	"github.com/clawtell/clawtell-go/pkg/agent"
	"github.com/clawtell/clawtell-go/pkg/api"
)

// Defaults for the Config fields.
const (
	DefaultWebhookPath   = "/webhook/clawtell"
	DefaultPollInterval  = 30 * time.Second
	DefaultPollTimeout   = 30
	DefaultPollLimit     = 50
	DefaultMaxBodySize   = 1 << 20
	DefaultSweepInterval = time.Minute
)

// Config describes one gateway account. All fields except Name are
// optional and fall back to documented defaults.
type Config struct {
	// Name is the account's registered tell name; it will be
	// canonicalized.
	Name string

	// WebhookPath is the HTTP path the webhook receiver answers on.
	WebhookPath string

	// WebhookSecret is the shared HMAC secret. If empty and a PublicURL
	// is configured, a secret is generated at startup and held in process
	// memory. If no secret ends up configured, signature checking is
	// skipped; that is a trust boundary, not a hardening guarantee.
	WebhookSecret string

	// PublicURL is the public base URL under which the webhook path is
	// reachable. If empty, no webhook is registered with the relay and
	// the gateway operates poll-only.
	PublicURL string

	// PollInterval is the pause after a failed poll cycle.
	PollInterval time.Duration

	// PollTimeout is the server-side long-poll wait in seconds.
	PollTimeout int

	// PollLimit is the maximum batch size of one poll.
	PollLimit int

	// WindowSize caps the seen-message window.
	WindowSize int

	// RateLimit and RateWindow parameterize the webhook receiver's
	// fixed-window limiter.
	RateLimit  int
	RateWindow time.Duration

	// MaxBodySize caps a webhook request body in bytes.
	MaxBodySize int64

	// SweepInterval is the cadence of the rate limit bucket sweep.
	SweepInterval time.Duration
}

func (conf *Config) applyDefaults() {
	conf.Name = api.CanonicalName(conf.Name)
	if conf.WebhookPath == "" {
		conf.WebhookPath = DefaultWebhookPath
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = DefaultPollInterval
	}
	if conf.PollTimeout <= 0 {
		conf.PollTimeout = DefaultPollTimeout
	}
	if conf.PollLimit <= 0 {
		conf.PollLimit = DefaultPollLimit
	}
	if conf.MaxBodySize <= 0 {
		conf.MaxBodySize = DefaultMaxBodySize
	}
	if conf.SweepInterval <= 0 {
		conf.SweepInterval = DefaultSweepInterval
	}
}

// Status is a snapshot of a gateway's runtime state.
type Status struct {
	Running       bool
	WebhookActive bool
	LastStartAt   time.Time
	LastStopAt    time.Time
	LastInboundAt time.Time
	LastError     string
}

// Gateway owns all inbound delivery state of one account: the webhook
// receiver, the poll loop, the shared seen-message window, the rate
// limiter and its sweep. It holds no cross-account state.
type Gateway struct {
	conf   Config
	client *api.Client
	sink   agent.Sink

	window  *Window
	limiter *RateLimiter
	cron    *Cron

	// generatedSecret holds a startup-generated webhook secret for the
	// process lifetime; empty if the operator supplied one or no webhook
	// is registered.
	generatedSecret string

	statusMutex sync.Mutex
	status      Status

	cancel  context.CancelFunc
	stopAck chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a Gateway for the given account. The sink receives each
// reconciled message at most once per window lifetime.
func New(conf Config, client *api.Client, sink agent.Sink) (*Gateway, error) {
	conf.applyDefaults()

	if conf.Name == "" {
		return nil, fmt.Errorf("gateway requires an account name")
	}
	if client == nil {
		return nil, fmt.Errorf("gateway requires an api.Client")
	}
	if sink == nil {
		return nil, fmt.Errorf("gateway requires a sink")
	}

	return &Gateway{
		conf:    conf,
		client:  client,
		sink:    sink,
		window:  NewWindow(conf.WindowSize),
		limiter: NewRateLimiter(conf.RateLimit, conf.RateWindow),
		stopAck: make(chan struct{}),
	}, nil
}

func (g *Gateway) log() *log.Entry {
	return log.WithField("gateway", g.conf.Name)
}

// AttachRouter binds the webhook receiver to its configured path on a
// shared router. Requests for other paths never reach the receiver.
func (g *Gateway) AttachRouter(router *mux.Router) {
	router.HandleFunc(g.conf.WebhookPath, g.ServeWebhook)
}

// Start probes the relay, attempts the webhook registration and launches
// the poll loop and the periodic sweep. A failed registration is not
// fatal; the gateway then relies on polling alone.
func (g *Gateway) Start() error {
	var err error
	g.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		g.cancel = cancel

		g.setRunning(true)

		g.probe(ctx)
		g.registerWebhook(ctx)

		g.cron = NewCron()
		if cronErr := g.cron.Register("ratelimit-sweep", g.limiter.Sweep, g.conf.SweepInterval); cronErr != nil {
			err = cronErr
			return
		}

		go g.pollLoop(ctx)

		g.log().Info("Gateway started")
	})
	return err
}

// Close cancels the poll loop, waits for it to exit and stops the sweep.
func (g *Gateway) Close() error {
	g.stopOnce.Do(func() {
		if g.cancel == nil {
			return
		}

		g.cancel()
		<-g.stopAck

		if g.cron != nil {
			g.cron.Stop()
		}

		g.setRunning(false)
		g.log().Info("Gateway stopped")
	})
	return nil
}

// Status returns a snapshot of the gateway's runtime state.
func (g *Gateway) Status() Status {
	g.statusMutex.Lock()
	defer g.statusMutex.Unlock()

	return g.status
}

// probe verifies the credential by fetching the own profile.
func (g *Gateway) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if profile, err := g.client.Me(probeCtx); err != nil {
		g.log().WithError(err).Warn("Probing relay account errored")
		g.setError(err)
	} else {
		g.log().WithField("name", profile.Name).Info("Authenticated against relay")
	}
}

func (g *Gateway) setRunning(running bool) {
	g.statusMutex.Lock()
	defer g.statusMutex.Unlock()

	g.status.Running = running
	if running {
		g.status.LastStartAt = time.Now()
	} else {
		g.status.LastStopAt = time.Now()
	}
}

func (g *Gateway) setWebhookActive(active bool) {
	g.statusMutex.Lock()
	defer g.statusMutex.Unlock()

	g.status.WebhookActive = active
}

func (g *Gateway) setError(err error) {
	g.statusMutex.Lock()
	defer g.statusMutex.Unlock()

	g.status.LastError = err.Error()
}

func (g *Gateway) markInbound() {
	g.statusMutex.Lock()
	defer g.statusMutex.Unlock()

	g.status.LastInboundAt = time.Now()
}

// secret returns the effective webhook secret: the operator-supplied one
// or the startup-generated one, possibly empty.
func (g *Gateway) secret() string {
	if g.conf.WebhookSecret != "" {
		return g.conf.WebhookSecret
	}
	return g.generatedSecret
}
