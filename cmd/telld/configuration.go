// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/gorilla/mux"

	"github.com/clawtell/clawtell-go/pkg/agent"
	"github.com/clawtell/clawtell-go/pkg/api"
	"github.com/clawtell/clawtell-go/pkg/gateway"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Core      coreConf
	Logging   logConf
	Gateway   gatewayConf
	WebSocket webSocketConf `toml:"websocket-agent"`
}

// coreConf describes the Core-configuration block.
type coreConf struct {
	Name    string
	ApiKey  string `toml:"api-key"`
	BaseUrl string `toml:"base-url"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// gatewayConf describes the Gateway-configuration block. Intervals are
// given in seconds.
type gatewayConf struct {
	Listen        string
	WebhookPath   string `toml:"webhook-path"`
	WebhookSecret string `toml:"webhook-secret"`
	PublicUrl     string `toml:"public-url"`
	PollInterval  uint   `toml:"poll-interval"`
	PollTimeout   int    `toml:"poll-timeout"`
	PollLimit     int    `toml:"poll-limit"`
	WindowSize    int    `toml:"window-size"`
	RateLimit     int    `toml:"rate-limit"`
	RateWindow    uint   `toml:"rate-window"`
}

// webSocketConf describes the WebSocketAgent-configuration block.
type webSocketConf struct {
	Enabled bool
	Path    string
}

func configureLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

// parseGateway creates the Gateway and its HTTP server based on the given
// TOML configuration.
func parseGateway(filename string) (gw *gateway.Gateway, srv *http.Server, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	if conf.Core.Name == "" {
		err = fmt.Errorf("core.name is empty")
		return
	}

	client, clientErr := api.NewClient(conf.Core.ApiKey, conf.Core.BaseUrl)
	if clientErr != nil {
		err = clientErr
		return
	}

	// Without any application agent every inbound delivery would fail and
	// the same messages would be re-fetched forever.
	if !conf.WebSocket.Enabled {
		err = fmt.Errorf("no application agent configured; enable the websocket-agent block")
		return
	}

	sink := agent.NewMuxSink()
	router := mux.NewRouter()

	wsAgent := agent.NewWebSocketAgent(func(to, body, subject string) error {
		_, sendErr := client.Send(context.Background(), to, body, subject)
		return sendErr
	})
	sink.Register(wsAgent)

	wsPath := conf.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	router.HandleFunc(wsPath, wsAgent.ServeHTTP)

	log.WithField("path", wsPath).Debug("Registered WebSocketAgent")

	gw, err = gateway.New(gateway.Config{
		Name:          conf.Core.Name,
		WebhookPath:   conf.Gateway.WebhookPath,
		WebhookSecret: conf.Gateway.WebhookSecret,
		PublicURL:     conf.Gateway.PublicUrl,
		PollInterval:  time.Duration(conf.Gateway.PollInterval) * time.Second,
		PollTimeout:   conf.Gateway.PollTimeout,
		PollLimit:     conf.Gateway.PollLimit,
		WindowSize:    conf.Gateway.WindowSize,
		RateLimit:     conf.Gateway.RateLimit,
		RateWindow:    time.Duration(conf.Gateway.RateWindow) * time.Second,
	}, client, sink)
	if err != nil {
		return
	}

	gw.AttachRouter(router)

	listen := conf.Gateway.Listen
	if listen == "" {
		listen = ":8080"
	}

	srv = &http.Server{
		Addr:    listen,
		Handler: router,
	}

	return
}
