package surveyforge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveyforge_vote_submissions_total",
		Help: "Vote submission attempts by outcome.",
	}, []string{"outcome"})

	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "surveyforge_ws_broadcasts_total",
		Help: "Websocket room broadcasts.",
	})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "surveyforge_ws_connections",
		Help: "Open websocket connections.",
	})

	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surveyforge_ratelimit_rejections_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"scope"})
)
