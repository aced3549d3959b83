package game

import (
	"context"
	"sync"
	"time"

	"github.com/BOB-921223/whoisyourdaddy/internal/metrics"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/words"
	"go.uber.org/zap"
)

type MachineOptions struct {
	RoomCode string
	Host     *Client
	HostName string

	Words   words.Source
	Timings Timings
	Metrics *metrics.Metrics
}

// GameMachine 是一个房间的状态机，所有状态只在 Start 所在的协程中修改
type GameMachine struct {
	ctx     *GameContext
	handler StageHandler

	// 以下字段创建后不再修改，可以被其他协程读取
	roomCode  string
	hostID    string
	createdAt time.Time

	// 这是所有客户端请求汇总的通道
	reqCh chan RequestWrapper
	// 计时器投递的超时事件
	tmoCh chan RequestWrapper

	disbandCh   chan struct{}
	disbandOnce sync.Once
	stoppedCh   chan struct{}
}

func NewGameMachine(opts MachineOptions) *GameMachine {
	if opts.Words == nil {
		opts.Words = words.MustDefaultBank()
	}

	tmoCh := make(chan RequestWrapper, 64)

	host := &Player{
		ID:      opts.Host.ID,
		Name:    SanitizeNickname(opts.HostName, DefaultNickname(1)),
		IsHost:  true,
		IsReady: true,
		IsAlive: true,
		client:  opts.Host,
	}

	ctx := &GameContext{
		RoomCode:  opts.RoomCode,
		HostID:    host.ID,
		GameStage: STAGE_WAITING,
		Players:   []*Player{host},
		Game:      newGameData(),
		Words:     opts.Words,
		Timings:   opts.Timings,
		Metrics:   opts.Metrics,
		sched:     newScheduler(opts.RoomCode, opts.Timings.TickInterval, tmoCh),
	}

	gm := &GameMachine{
		ctx:       ctx,
		handler:   NewWaitStageHandler(),
		roomCode:  opts.RoomCode,
		hostID:    host.ID,
		createdAt: time.Now(),
		reqCh:     make(chan RequestWrapper, 64),
		tmoCh:     tmoCh,
		disbandCh: make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	gm.handler.SetOnSwitch(gm.onSwitch)

	return gm
}

func (gm *GameMachine) onSwitch(nextStage string) {
	gm.ctx.GameStage = nextStage
}

func (gm *GameMachine) RoomCode() string {
	return gm.roomCode
}

func (gm *GameMachine) HostID() string {
	return gm.hostID
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}

// Start 运行事件循环，直到房间被解散
func (gm *GameMachine) Start() {
	defer close(gm.stoppedCh)
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error(
				"房间协程异常退出",
				zap.String("room_code", gm.roomCode),
				zap.Any("panic", r),
			)
			gm.ctx.sched.CancelAll()
		}
	}()

	gm.init()

	for {
		var req RequestWrapper

		select {
		case req = <-gm.reqCh:
			zap.L().Debug(
				"接收到客户端请求",
				zap.String("room_code", gm.roomCode),
				zap.String("request_type", req.ReqType),
				zap.String("sender_id", req.SenderID),
			)
		case req = <-gm.tmoCh:
		case <-gm.disbandCh:
			gm.teardown()
			return
		}

		gm.handle(req)
		gm.settle()
	}
}

func (gm *GameMachine) init() {
	gm.handler.OnEnter(gm.ctx)
	gm.ctx.announceJoin(gm.ctx.GetHost())

	zap.L().Info(
		"房间已创建",
		zap.String("room_code", gm.roomCode),
		zap.String("host_id", gm.hostID),
	)
}

func (gm *GameMachine) teardown() {
	gm.ctx.sched.CancelAll()
	gm.ctx.BroadcastResp(WrapResponse(RESP_ROOM_DISBANDED, nil))
	gm.ctx.Players = nil

	zap.L().Info(
		"房间已解散",
		zap.String("room_code", gm.roomCode),
	)
}

func (gm *GameMachine) handle(req RequestWrapper) {
	if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		// 被取消或已被新任务替换的计时器
		if !gm.ctx.sched.IsCurrent(tmo) || tmo.Stage != gm.ctx.GameStage {
			zap.L().Debug(
				"丢弃过期的超时事件",
				zap.String("room_code", gm.roomCode),
				zap.String("kind", tmo.Kind),
				zap.Uint64("token", tmo.Token),
			)
			return
		}

		if tmo.Remaining == 0 {
			gm.ctx.sched.Finish(tmo.Kind)
		}
	}

	if cmd := TryUnwrapJoinRoomCommand(req); cmd != nil {
		player, err := onPlayerJoin(gm.ctx, cmd.Client, cmd.Nickname)
		cmd.ReplyCh <- err

		if err == nil {
			gm.ctx.announceJoin(player)
		}
		return
	}

	if cmd := TryUnwrapSnapshotCommand(req); cmd != nil {
		cmd.ReplyCh <- gm.snapshot()
		return
	}

	if TryUnwrapLeaveRoomRequest(req) != nil {
		gm.onLeave(req.SenderID)
		return
	}

	if err := gm.handler.OnHandle(gm.ctx, req); err != nil {
		zap.L().Debug(
			"忽略无效请求",
			zap.String("room_code", gm.roomCode),
			zap.String("stage", gm.handler.Stage()),
			zap.String("request_type", req.ReqType),
			zap.String("sender_id", req.SenderID),
			zap.Error(err),
		)
	}
}

func (gm *GameMachine) onLeave(playerID string) {
	player, idx := onPlayerLeave(gm.ctx, playerID)
	if player == nil {
		return
	}

	gm.ctx.BroadcastPlayerList()

	if gm.ctx.GameStage == STAGE_WAITING {
		return
	}

	if outcome := evaluateWin(gm.ctx, player.ID); outcome != OUTCOME_CONTINUE {
		winner, msg := leaveOutcomeMessage(outcome, player.Name)
		endGame(gm.ctx, winner, msg)
		return
	}

	gm.handler.OnPlayerExit(gm.ctx, player, idx)
}

// settle 一个请求可能连续触发多次阶段切换
func (gm *GameMachine) settle() {
	for gm.ctx.GameStage != gm.handler.Stage() {
		gm.switchStage()
		gm.handler.OnEnter(gm.ctx)
	}
}

func (gm *GameMachine) switchStage() {
	gm.handler.OnExit(gm.ctx)

	newHandler := newStageHandler(gm.ctx.GameStage)
	if newHandler == nil {
		zap.L().Error(
			"未知的游戏阶段，回到等待阶段",
			zap.String("room_code", gm.roomCode),
			zap.String("stage", gm.ctx.GameStage),
		)

		gm.ctx.GameStage = STAGE_WAITING
		newHandler = NewWaitStageHandler()
	}

	newHandler.SetOnSwitch(gm.onSwitch)

	zap.L().Debug(
		"切换游戏阶段",
		zap.String("room_code", gm.roomCode),
		zap.String("from", gm.handler.Stage()),
		zap.String("to", newHandler.Stage()),
	)

	gm.handler = newHandler
}

func (gm *GameMachine) snapshot() RoomSnapshot {
	hostName := ""
	if host := gm.ctx.GetHost(); host != nil {
		hostName = host.Name
	}

	return RoomSnapshot{
		RoomCode:  gm.roomCode,
		Stage:     gm.ctx.GameStage,
		HostName:  hostName,
		Players:   gm.ctx.PlayerList(),
		CreatedAt: gm.createdAt,
	}
}

// Submit 把请求交给房间协程
func (gm *GameMachine) Submit(ctx context.Context, req RequestWrapper) error {
	if gm.IsStopped() {
		return ErrRoomNotFound
	}

	select {
	case gm.reqCh <- req:
		return nil
	case <-gm.stoppedCh:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ErrRoomBusy
	}
}

// Join 等待房间协程处理加入命令并返回结果
func (gm *GameMachine) Join(ctx context.Context, client *Client, nickname string) error {
	cmd := &JoinRoomCommand{
		Client:   client,
		Nickname: nickname,
		ReplyCh:  make(chan error, 1),
	}

	req := RequestWrapper{
		ReqType:    REQ_JOIN_ROOM,
		SenderID:   client.ID,
		NativeData: cmd,
	}

	if err := gm.Submit(ctx, req); err != nil {
		return err
	}

	select {
	case err := <-cmd.ReplyCh:
		return err
	case <-gm.stoppedCh:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ErrRoomBusy
	}
}

func (gm *GameMachine) Snapshot(ctx context.Context) (RoomSnapshot, error) {
	cmd := &SnapshotCommand{
		ReplyCh: make(chan RoomSnapshot, 1),
	}

	req := RequestWrapper{
		ReqType:    REQ_SNAPSHOT,
		NativeData: cmd,
	}

	if err := gm.Submit(ctx, req); err != nil {
		return RoomSnapshot{}, err
	}

	select {
	case snap := <-cmd.ReplyCh:
		return snap, nil
	case <-gm.stoppedCh:
		return RoomSnapshot{}, ErrRoomNotFound
	case <-ctx.Done():
		return RoomSnapshot{}, ErrRoomBusy
	}
}

// Disband 可以重复调用，房间协程会通知所有玩家后退出
func (gm *GameMachine) Disband() {
	gm.disbandOnce.Do(func() {
		close(gm.disbandCh)
	})
}

func (gm *GameMachine) IsStopped() bool {
	select {
	case <-gm.stoppedCh:
		return true
	default:
		return false
	}
}

func (gm *GameMachine) Done() <-chan struct{} {
	return gm.stoppedCh
}
