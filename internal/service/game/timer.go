package game

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// 计时任务种类，房间对每一种最多持有一个活动任务
const (
	TASK_REVEAL      = "Reveal"
	TASK_TURN        = "Turn"
	TASK_VOTE        = "Vote"
	TASK_RESULT      = "Result"
	TASK_LOBBY_RESET = "LobbyReset"
)

type scheduledTask struct {
	token  uint64
	cancel context.CancelFunc
}

// Scheduler 只在房间协程内调用；计时协程只负责把 Timeout 请求投递回房间
type Scheduler struct {
	roomCode string
	tick     time.Duration
	outCh    chan<- RequestWrapper

	seq   uint64
	tasks map[string]*scheduledTask
}

func newScheduler(roomCode string, tick time.Duration, outCh chan<- RequestWrapper) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}

	return &Scheduler{
		roomCode: roomCode,
		tick:     tick,
		outCh:    outCh,
		tasks:    make(map[string]*scheduledTask),
	}
}

// Countdown 每个 tick 投递一次剩余秒数，直到 0
func (s *Scheduler) Countdown(kind string, seconds int, stage string, turnSeq int) uint64 {
	return s.schedule(kind, seconds, stage, turnSeq, true)
}

// Delay 只在到期时投递一次 Remaining=0
func (s *Scheduler) Delay(kind string, seconds int, stage string, turnSeq int) uint64 {
	return s.schedule(kind, seconds, stage, turnSeq, false)
}

func (s *Scheduler) schedule(kind string, seconds int, stage string, turnSeq int, ticks bool) uint64 {
	s.Cancel(kind)

	if seconds < 1 {
		seconds = 1
	}

	s.seq++
	token := s.seq

	ctx, cancel := context.WithCancel(context.Background())
	s.tasks[kind] = &scheduledTask{
		token:  token,
		cancel: cancel,
	}

	base := TimeoutRequest{
		Kind:    kind,
		Token:   token,
		Stage:   stage,
		TurnSeq: turnSeq,
	}

	go s.run(ctx, base, seconds, ticks)

	zap.L().Debug(
		"启动计时任务",
		zap.String("room_code", s.roomCode),
		zap.String("kind", kind),
		zap.Uint64("token", token),
		zap.Int("seconds", seconds),
	)

	return token
}

func (s *Scheduler) run(ctx context.Context, base TimeoutRequest, seconds int, ticks bool) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for remaining := seconds - 1; remaining >= 0; remaining-- {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !ticks && remaining > 0 {
			continue
		}

		req := base
		req.Remaining = remaining

		select {
		case s.outCh <- RequestWrapper{ReqType: REQ_TIMEOUT, NativeData: &req}:
		case <-ctx.Done():
			return
		}
	}
}

// IsCurrent 判断超时事件是否来自该种类当前的任务
func (s *Scheduler) IsCurrent(req *TimeoutRequest) bool {
	task, ok := s.tasks[req.Kind]
	return ok && task.token == req.Token
}

func (s *Scheduler) Active(kind string) bool {
	_, ok := s.tasks[kind]
	return ok
}

func (s *Scheduler) Token(kind string) uint64 {
	if task, ok := s.tasks[kind]; ok {
		return task.token
	}

	return 0
}

// Finish 在任务投递最后一次事件后移除记录
func (s *Scheduler) Finish(kind string) {
	if task, ok := s.tasks[kind]; ok {
		task.cancel()
		delete(s.tasks, kind)
	}
}

func (s *Scheduler) Cancel(kinds ...string) {
	for _, kind := range kinds {
		task, ok := s.tasks[kind]
		if !ok {
			continue
		}

		task.cancel()
		delete(s.tasks, kind)

		zap.L().Debug(
			"取消计时任务",
			zap.String("room_code", s.roomCode),
			zap.String("kind", kind),
			zap.Uint64("token", task.token),
		)
	}
}

func (s *Scheduler) CancelAll() {
	for kind := range s.tasks {
		s.Cancel(kind)
	}
}
