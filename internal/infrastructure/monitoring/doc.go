/*
Package monitoring provides metrics collection for the guest host.

# Overview

Prometheus metrics for HTTP routes, the guest registry, the message
gateway and websocket peers. Collectors are registered on an injected
prometheus.Registerer so tests can use isolated registries.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "invoke-sync")
	// ... handle request ...
	timer.Stop("ok")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
