// monitor/monitor.go
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/gamebot/logger"
)

var (
	gamesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebot_games_started_total",
		Help: "Games started, by variant",
	}, []string{"variant"})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebot_games_finished_total",
		Help: "Games ended, by variant and final status",
	}, []string{"variant", "status"})

	playersJoined = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebot_players_joined_total",
		Help: "Player entries, by variant",
	}, []string{"variant"})

	wagersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebot_wagered_credits_total",
		Help: "Credits wagered, by variant",
	}, []string{"variant"})

	payoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamebot_payout_credits_total",
		Help: "Credits paid out to winners, by variant",
	}, []string{"variant"})

	activeGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gamebot_active_games",
		Help: "Games currently in progress",
	})

	commissionsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamebot_commissions_paid_total",
		Help: "Matured commission credits paid out",
	})
)

func GameStarted(variant string) {
	gamesStarted.WithLabelValues(variant).Inc()
	activeGames.Inc()
}

func GameFinished(variant, status string) {
	gamesFinished.WithLabelValues(variant, status).Inc()
	activeGames.Dec()
}

func PlayerJoined(variant string) {
	playersJoined.WithLabelValues(variant).Inc()
}

func WagerPlaced(variant string, amount int64) {
	wagersTotal.WithLabelValues(variant).Add(float64(amount))
}

func PayoutPaid(variant string, amount int64) {
	payoutsTotal.WithLabelValues(variant).Add(float64(amount))
}

func CommissionPaid(amount int64) {
	commissionsPaid.Add(float64(amount))
}

// Serve 在独立端口暴露 /metrics
func Serve(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Log.Infow("metrics server listening", "address", address)
		if err := http.ListenAndServe(address, mux); err != nil {
			logger.Log.Errorw("metrics server stopped", "error", err)
		}
	}()
}
