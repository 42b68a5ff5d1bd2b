// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/clawtell/clawtell-go/pkg/agent"
	"github.com/clawtell/clawtell-go/pkg/api"
	"github.com/clawtell/clawtell-go/pkg/gateway"
)

// exchange messages between an user and the relay over the filesystem.
// Incoming messages become files named after sender and message id; a new
// file dropped into the directory is sent to the agent it is named after.
type exchange struct {
	directory  string
	client     *api.Client
	gw         *gateway.Gateway
	watcher    *fsnotify.Watcher
	knownFiles sync.Map

	closeChan   chan os.Signal
	messageChan chan agent.Message
}

// startExchange for the "exchange" CLI option.
func startExchange(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	ex := &exchange{
		directory:   args[0],
		client:      newClient(),
		closeChan:   make(chan os.Signal),
		messageChan: make(chan agent.Message),
	}

	signal.Notify(ex.closeChan, os.Interrupt)

	profile, err := ex.client.Me(context.Background())
	if err != nil {
		printFatal(err, "Fetching own profile errored")
	}

	// Poll-only gateway; no public URL means no webhook registration.
	ex.gw, err = gateway.New(gateway.Config{Name: profile.Name}, ex.client, agent.SinkFunc(func(msg agent.Message) error {
		ex.messageChan <- msg
		return nil
	}))
	if err != nil {
		printFatal(err, "Creating gateway errored")
	}

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = ex.watcher.Add(ex.directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	if err = ex.gw.Start(); err != nil {
		printFatal(err, "Starting gateway errored")
	}

	ex.handler()
}

// cleanFilepath creates a relative path from the initial path to a new file's path.
func (ex *exchange) cleanFilepath(f string) string {
	if rel, err := filepath.Rel(ex.directory, f); err != nil {
		log.WithField("path", f).WithError(err).Fatal("Failed to clean file path")
		return ""
	} else {
		return rel
	}
}

func (ex *exchange) handler() {
	defer func() {
		_ = ex.watcher.Close()
		_ = ex.gw.Close()
	}()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.sendNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case msg := <-ex.messageChan:
			ex.saveMessage(msg)
		}
	}
}

// sendNewFile sends a dropped file's contents to the agent named like the
// file. Reading is retried since the file may still be written to.
func (ex *exchange) sendNewFile(e fsnotify.Event) {
	base := filepath.Base(e.Name)
	receiver := api.CanonicalName(strings.TrimSuffix(base, filepath.Ext(base)))

	for i := 0; i < 5; i++ {
		if data, err := os.ReadFile(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading file errored, retrying..")
		} else if strings.TrimSpace(string(data)) == "" {
			log.WithField("file", e.Name).Warn("File is still empty, retrying..")
		} else if resp, err := ex.client.Send(context.Background(), receiver, string(data), ""); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"file": e.Name,
				"to":   receiver,
			}).Error("Sending message errored")
			return
		} else {
			log.WithFields(log.Fields{
				"file":    e.Name,
				"to":      receiver,
				"message": resp.MessageID,
			}).Info("Sent message")
			return
		}

		time.Sleep(time.Duration(1<<uint(i)) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}

// saveMessage writes a received message into the exchange directory.
func (ex *exchange) saveMessage(msg agent.Message) {
	filePath := path.Join(ex.directory, msg.From+"-"+msg.ID)
	logger := log.WithFields(log.Fields{
		"message": msg.ID,
		"file":    filePath,
	})

	ex.knownFiles.Store(ex.cleanFilepath(filePath), struct{}{})

	if err := os.WriteFile(filePath, []byte(msg.DisplayBody()), 0644); err != nil {
		logger.WithError(err).Error("Writing file errored")
		return
	}

	logger.Info("Saved received message")
}
