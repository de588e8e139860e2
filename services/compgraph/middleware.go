// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compgraph

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "compgraph.request_id"
)

// RequestIDMiddleware assigns every request an ID, reusing a client-supplied
// X-Request-ID when present.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := c.GetHeader(RequestIDHeader)
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(RequestIDHeader, id)
	return id
}

// RateLimitMiddleware rejects requests beyond the limiter's rate with 429.
//
// Description:
//
//	One token bucket is shared by every client. A rejected request gets a
//	Retry-After header rounded up to whole seconds.
//
// Thread Safety: rate.Limiter is safe for concurrent use.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := limiter.Reserve()
		if !r.OK() {
			rejectRateLimited(c, 1)
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			rejectRateLimited(c, int(math.Ceil(delay.Seconds())))
			return
		}
		c.Next()
	}
}

func rejectRateLimited(c *gin.Context, retryAfter int) {
	requestID := getOrCreateRequestID(c)
	slog.Warn("request rate limited",
		slog.String("request_id", requestID),
		slog.String("path", c.Request.URL.Path),
	)
	c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded",
		Code:      "RATE_LIMITED",
		RequestID: requestID,
	})
}
