package state

import (
	"github.com/BOB-921223/whoisyourdaddy/internal/config"
	"github.com/BOB-921223/whoisyourdaddy/internal/metrics"
	"github.com/BOB-921223/whoisyourdaddy/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

type AppState struct {
	Cfg     *config.AppConfig
	RoomSvc *service.RoomService

	// 未启用指标时均为 nil
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func NewAppState(
	cfg *config.AppConfig,
	roomSvc *service.RoomService,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *AppState {
	return &AppState{
		Cfg:      cfg,
		RoomSvc:  roomSvc,
		Metrics:  m,
		Gatherer: gatherer,
	}
}
