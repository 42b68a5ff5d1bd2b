// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clawtell/clawtell-go/pkg/agent"
	"github.com/clawtell/clawtell-go/pkg/api"
)

// pollRelay stubs the relay endpoints a polling gateway talks to. Scripted
// poll batches are served in order; afterwards poll requests block until
// the client gives up.
type pollRelay struct {
	mutex   sync.Mutex
	batches [][]api.Message
	acks    [][]string
}

func (relay *pollRelay) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.Profile{Name: "alice"})
	})

	mux.HandleFunc("/api/messages/poll", func(w http.ResponseWriter, r *http.Request) {
		relay.mutex.Lock()
		var batch []api.Message
		if len(relay.batches) > 0 {
			batch = relay.batches[0]
			relay.batches = relay.batches[1:]
		}
		relay.mutex.Unlock()

		if batch == nil {
			<-r.Context().Done()
			return
		}
		_ = json.NewEncoder(w).Encode(api.PollResponse{Messages: batch})
	})

	mux.HandleFunc("/api/messages/ack", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MessageIDs []string `json:"messageIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		relay.mutex.Lock()
		relay.acks = append(relay.acks, req.MessageIDs)
		relay.mutex.Unlock()

		_ = json.NewEncoder(w).Encode(api.AckResponse{Success: true, Acked: len(req.MessageIDs)})
	})

	return mux
}

func (relay *pollRelay) ackedBatches() [][]string {
	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	acks := make([][]string, len(relay.acks))
	copy(acks, relay.acks)
	return acks
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()

	for i := 0; i < 200; i++ {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition was not met in time")
}

func TestPollLoopReconciliation(t *testing.T) {
	relay := &pollRelay{
		batches: [][]api.Message{
			{{ID: "m-1", From: "bob", Body: "one"}, {ID: "m-2", From: "bob", Body: "two"}},
			// m-2 overlaps with the first batch and must not re-surface.
			{{ID: "m-2", From: "bob", Body: "two"}, {ID: "m-3", From: "carol", Body: "three"}},
		},
	}

	srv := httptest.NewServer(relay.handler())
	defer srv.Close()

	client, err := api.NewClient("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	gw, err := New(Config{Name: "alice", PollTimeout: 1}, client, sink)
	if err != nil {
		t.Fatal(err)
	}

	if err := gw.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = gw.Close() }()

	waitFor(t, func() bool { return len(sink.delivered()) == 3 })

	msgs := sink.delivered()
	for i, expected := range []string{"m-1", "m-2", "m-3"} {
		if msgs[i].ID != expected {
			t.Fatalf("message %d: expected %s, got %s", i, expected, msgs[i].ID)
		}
	}

	waitFor(t, func() bool { return len(relay.ackedBatches()) == 2 })

	acks := relay.ackedBatches()
	if len(acks[0]) != 2 || acks[0][0] != "m-1" || acks[0][1] != "m-2" {
		t.Fatalf("unexpected first ack batch %v", acks[0])
	}
	if len(acks[1]) != 1 || acks[1][0] != "m-3" {
		t.Fatalf("unexpected second ack batch %v", acks[1])
	}

	status := gw.Status()
	if !status.Running {
		t.Fatal("expected the gateway running")
	}
	if status.LastInboundAt.IsZero() {
		t.Fatal("expected a recorded inbound timestamp")
	}
}

func TestDispatchSkipsAckOnSinkFailure(t *testing.T) {
	relay := &pollRelay{}
	srv := httptest.NewServer(relay.handler())
	defer srv.Close()

	client, err := api.NewClient("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	var delivered []string
	sink := agent.SinkFunc(func(msg agent.Message) error {
		if msg.ID == "m-2" {
			return errors.New("consumer unavailable")
		}
		delivered = append(delivered, msg.ID)
		return nil
	})

	gw, err := New(Config{Name: "alice"}, client, sink)
	if err != nil {
		t.Fatal(err)
	}

	gw.dispatch(context.Background(), []api.Message{
		{ID: "m-1", From: "bob", Body: "one"},
		{ID: "m-2", From: "bob", Body: "two"},
		{ID: "m-3", From: "bob", Body: "three"},
	})

	if len(delivered) != 2 || delivered[0] != "m-1" || delivered[1] != "m-3" {
		t.Fatalf("unexpected deliveries %v", delivered)
	}

	acks := relay.ackedBatches()
	if len(acks) != 1 {
		t.Fatalf("expected 1 ack batch, got %d", len(acks))
	}
	if len(acks[0]) != 2 || acks[0][0] != "m-1" || acks[0][1] != "m-3" {
		t.Fatalf("the failed message must not be acknowledged, got %v", acks[0])
	}

	// The failed message is absent from the window and may be retried.
	if gw.window.Seen("m-2") {
		t.Fatal("a failed handoff must not enter the window")
	}

	gw.dispatch(context.Background(), []api.Message{{ID: "m-1", From: "bob", Body: "one"}})
	if len(delivered) != 2 {
		t.Fatal("a window-known message must not surface again")
	}
}

func TestCrossPathSurfacingAtMostOnce(t *testing.T) {
	relay := &pollRelay{}
	srv := httptest.NewServer(relay.handler())
	defer srv.Close()

	client, err := api.NewClient("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	// A slow sink widens the race between reservation and handoff.
	var deliveries int32
	sink := agent.SinkFunc(func(msg agent.Message) error {
		atomic.AddInt32(&deliveries, 1)
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	gw, err := New(Config{Name: "alice"}, client, sink)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		atomic.StoreInt32(&deliveries, 0)
		id := fmt.Sprintf("m-%d", i)

		payload := map[string]interface{}{"messageId": id, "from": "bob", "body": "hello"}
		batch := []api.Message{{ID: id, From: "bob", Body: "hello"}}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			gw.ServeWebhook(httptest.NewRecorder(), webhookRequest("", payload))
		}()
		go func() {
			defer wg.Done()
			gw.dispatch(context.Background(), batch)
		}()
		wg.Wait()

		if n := atomic.LoadInt32(&deliveries); n != 1 {
			t.Fatalf("message %s surfaced %d times", id, n)
		}
	}
}

func TestGatewayCloseIdempotent(t *testing.T) {
	relay := &pollRelay{}
	srv := httptest.NewServer(relay.handler())
	defer srv.Close()

	client, err := api.NewClient("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	gw, err := New(Config{Name: "alice", PollTimeout: 1}, client, &recordingSink{})
	if err != nil {
		t.Fatal(err)
	}

	if err := gw.Start(); err != nil {
		t.Fatal(err)
	}

	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	if gw.Status().Running {
		t.Fatal("expected the gateway stopped")
	}
}
