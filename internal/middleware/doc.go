// Package middleware provides HTTP middleware for the PicFinder service.
//
// It includes request logging with log-injection hardening and Prometheus
// request metrics with bounded path cardinality.
package middleware
