package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	ServiceAuth *ServiceAuthMiddleware
	Logging     *LoggingMiddleware
	Metrics     *MetricsMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	serviceTokenSecret string,
	logger *logrus.Logger,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		ServiceAuth: NewServiceAuthMiddleware(serviceTokenSecret, logger),
		Logging:     NewLoggingMiddleware(logger),
		Metrics:     NewMetricsMiddleware(requestsTotal, requestDuration),
	}
}
