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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// RegisterRoutes registers all /v1/compgraph routes.
//
// Description:
//
//	rg should already carry any global middleware. Extra middleware, such
//	as RateLimitMiddleware, is applied to the analysis and snapshot routes
//	only; health checks are never limited.
//
// Endpoints:
//
//	POST   /v1/compgraph/analyze            - Analyze inline files or a root
//	POST   /v1/compgraph/snapshots          - Analyze and save a snapshot
//	GET    /v1/compgraph/snapshots          - List snapshots
//	GET    /v1/compgraph/snapshots/diff     - Compare two snapshots
//	GET    /v1/compgraph/snapshots/:id      - Load a snapshot
//	DELETE /v1/compgraph/snapshots/:id      - Delete a snapshot
//	GET    /v1/compgraph/health             - Liveness
//	GET    /v1/compgraph/ready              - Readiness
//
// Example:
//
//	svc, _ := compgraph.NewService(ctx, compgraph.DefaultServiceConfig(), nil)
//	v1 := router.Group("/v1")
//	compgraph.RegisterRoutes(v1, compgraph.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, middleware ...gin.HandlerFunc) {
	cg := rg.Group("/compgraph")
	cg.Use(RequestIDMiddleware())
	{
		cg.GET("/health", handlers.HandleHealth)
		cg.GET("/ready", handlers.HandleReady)

		limited := cg.Group("", middleware...)
		limited.POST("/analyze", handlers.HandleAnalyze)

		// diff must be registered before the :id wildcard.
		limited.GET("/snapshots/diff", handlers.HandleDiffSnapshots)
		limited.POST("/snapshots", handlers.HandleSaveSnapshot)
		limited.GET("/snapshots", handlers.HandleListSnapshots)
		limited.GET("/snapshots/:id", handlers.HandleGetSnapshot)
		limited.DELETE("/snapshots/:id", handlers.HandleDeleteSnapshot)
	}
}

// NewRouter builds a gin engine serving the compgraph API under /v1.
//
// Description:
//
//	Installs recovery and OpenTelemetry middleware globally and, when
//	cfg.RateLimit is positive, a token bucket limiter on the analysis and
//	snapshot routes.
func NewRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("compgraph"))

	var middleware []gin.HandlerFunc
	if svc.cfg.RateLimit > 0 {
		burst := svc.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		middleware = append(middleware, RateLimitMiddleware(rate.NewLimiter(rate.Limit(svc.cfg.RateLimit), burst)))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc), middleware...)
	return router
}
