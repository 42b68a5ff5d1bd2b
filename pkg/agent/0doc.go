// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

// Package agent describes the boundary between a gateway and the consuming
// application: the Message model, the Sink contract for inbound delivery,
// and application agents implementing it, e.g., the WebSocketAgent.
package agent
