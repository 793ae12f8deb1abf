// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics provides Prometheus collectors for the admin server.
// Metrics are organized by domain: HTTP requests, post writes, and image
// storage operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "piskovna"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// HTTP metrics - track request volume and latency
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// PostWrites counts create/update/delete calls by outcome.
	PostWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "posts",
			Name:      "writes_total",
			Help:      "Post writes by operation and result",
		},
		[]string{"operation", "result"},
	)

	// ImageOps counts image store operations. Failed deletes are the
	// signal that storage and database have drifted apart.
	ImageOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "operations_total",
			Help:      "Image store operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// OrphansDeleted counts image references removed because an edit
	// dropped them from a post.
	OrphansDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "images",
			Name:      "orphans_deleted_total",
			Help:      "Image references deleted after being removed from a post",
		},
	)
)

// ObserveImageOp records one image store operation.
func ObserveImageOp(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	ImageOps.WithLabelValues(op, result).Inc()
}

// ObservePostWrite records one post write.
func ObservePostWrite(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	PostWrites.WithLabelValues(op, result).Inc()
}
