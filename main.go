package main

import (
	"fmt"
	"os"

	"github.com/BOB-921223/whoisyourdaddy/internal/api/http"
	"github.com/BOB-921223/whoisyourdaddy/internal/config"
	"github.com/BOB-921223/whoisyourdaddy/internal/logger"
	"github.com/BOB-921223/whoisyourdaddy/internal/metrics"
	"github.com/BOB-921223/whoisyourdaddy/internal/service"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/game"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/words"
	"github.com/BOB-921223/whoisyourdaddy/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:           "whoisyourdaddy",
		Short:         "Undercover party game server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	// 加载配置
	cfg, err := config.InitConfig(cmd.Flags())
	if err != nil {
		return err
	}

	// 初始化日志器
	flush := logger.InitLogger(cfg.LogLevel)
	defer flush()

	bank, err := words.LoadBank(cfg.WordsFile)
	if err != nil {
		return err
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		m = metrics.New(reg)
		gatherer = reg
	}

	roomSvc := service.NewRoomService(service.Options{
		Words: bank,
		Timings: game.Timings{
			RevealSeconds:      cfg.Game.RevealSeconds,
			TurnSeconds:        cfg.Game.TurnSeconds,
			VoteSeconds:        cfg.Game.VoteSeconds,
			ResultSeconds:      cfg.Game.ResultSeconds,
			FinalResultSeconds: cfg.Game.FinalResultSeconds,
			TickInterval:       cfg.Game.TickInterval,
		},
		Metrics: m,
	})
	defer roomSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, roomSvc, m, gatherer)

	// 启动服务器
	return http.RunServer(appState)
}
