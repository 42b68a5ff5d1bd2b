// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

// Package gateway reconciles inbound message delivery for one relay
// account. Messages arrive over two divergent transports, a pushed webhook
// and a long-poll loop; a shared seen-message window guarantees that each
// message id is surfaced to the consuming application's Sink at most once,
// although the transports together deliver at least once.
package gateway
