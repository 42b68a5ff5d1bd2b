// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Defaults for the webhook receiver's fixed-window rate limiter.
const (
	DefaultRateLimit  = 100
	DefaultRateWindow = time.Minute
)

// rateBucket counts requests of one source key within the current window.
type rateBucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window request counter per source key. Buckets
// are created lazily on a key's first request and removed by Sweep once
// their window has expired.
type RateLimiter struct {
	mutex sync.Mutex

	limit   int
	window  time.Duration
	buckets map[string]*rateBucket
}

// NewRateLimiter creates a RateLimiter allowing limit requests per key and
// window. Non-positive arguments fall back to the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}

	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateBucket),
	}
}

// Allow reports whether another request from key fits into its current
// window and counts it if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()

	bucket, ok := rl.buckets[key]
	if !ok || now.After(bucket.resetAt) {
		rl.buckets[key] = &rateBucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}

	if bucket.count >= rl.limit {
		return false
	}

	bucket.count++
	return true
}

// Sweep removes buckets whose window has expired. It is meant to run
// periodically, decoupled from request traffic.
func (rl *RateLimiter) Sweep() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	swept := 0
	for key, bucket := range rl.buckets {
		if now.After(bucket.resetAt) {
			delete(rl.buckets, key)
			swept++
		}
	}

	if swept > 0 {
		log.WithField("buckets", swept).Debug("Swept expired rate limit buckets")
	}
}

// Len returns the number of currently tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	return len(rl.buckets)
}
