package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	BackendRequests metric.Int64Counter
	BackendLatency  metric.Float64Histogram
	TokenRefreshes  metric.Int64Counter

	CartMutations     metric.Int64Counter
	Checkouts         metric.Int64Counter
	PaymentsConfirmed metric.Int64Counter
	SessionsCreated   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("backend_requests_total",
		metric.WithDescription("Total requests sent to the backend API"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("backend_request_duration_seconds",
		metric.WithDescription("Duration of backend API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return nil, err
	}

	refreshes, err := meter.Int64Counter("token_refreshes_total",
		metric.WithDescription("Access token refresh attempts"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	cartOps, err := meter.Int64Counter("cart_mutations_total",
		metric.WithDescription("Cart mutations forwarded to the backend"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, err
	}

	checkouts, err := meter.Int64Counter("checkouts_total",
		metric.WithDescription("Checkout attempts by gateway and result"),
		metric.WithUnit("{checkout}"),
	)
	if err != nil {
		return nil, err
	}

	payments, err := meter.Int64Counter("payments_confirmed_total",
		metric.WithDescription("Payments confirmed on return from a gateway"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := meter.Int64Counter("sessions_created_total",
		metric.WithDescription("Browser sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		BackendRequests:   requests,
		BackendLatency:    latency,
		TokenRefreshes:    refreshes,
		CartMutations:     cartOps,
		Checkouts:         checkouts,
		PaymentsConfirmed: payments,
		SessionsCreated:   sessions,
	}, nil
}
