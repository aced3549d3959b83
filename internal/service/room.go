package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BOB-921223/whoisyourdaddy/internal/metrics"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/dto"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/game"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/words"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// RoomService 是房间注册表，房间号和成员关系只在这里修改
type RoomService struct {
	state *roomServiceState

	words   words.Source
	timings game.Timings
	metrics *metrics.Metrics

	genCode        func() string
	requestTimeout time.Duration
}

type roomServiceState struct {
	mu sync.RWMutex

	// 房间号 -> 房间状态机
	rooms map[string]*game.GameMachine
	// 连接 ID -> 房间号，每个连接最多属于一个房间
	members map[string]string

	wg conc.WaitGroup

	cleanUpDone chan struct{}
	closeOnce   sync.Once
}

type Options struct {
	Words   words.Source
	Timings game.Timings
	Metrics *metrics.Metrics

	CleanupInterval time.Duration
	RequestTimeout  time.Duration
}

func NewRoomService(opts Options) *RoomService {
	if opts.Words == nil {
		opts.Words = words.MustDefaultBank()
	}

	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	state := &roomServiceState{
		rooms:       make(map[string]*game.GameMachine),
		members:     make(map[string]string),
		cleanUpDone: make(chan struct{}),
	}

	rs := &RoomService{
		state:          state,
		words:          opts.Words,
		timings:        opts.Timings,
		metrics:        opts.Metrics,
		genCode:        genRoomCode,
		requestTimeout: opts.RequestTimeout,
	}

	// 定期清理已经异常退出的房间
	go rs.startCleanupLoop(opts.CleanupInterval)

	return rs
}

// Close 解散所有房间并等待房间协程退出
func (rs *RoomService) Close() {
	rs.state.closeOnce.Do(func() {
		close(rs.state.cleanUpDone)

		rs.state.mu.Lock()
		for code := range rs.state.rooms {
			rs.removeRoomLocked(code)
		}
		rs.state.mu.Unlock()

		rs.state.wg.Wait()

		zap.S().Info("所有房间已关闭")
	})
}

func (rs *RoomService) CreateRoom(client *game.Client, nickname string) (string, error) {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	if _, ok := rs.state.members[client.ID]; ok {
		return "", game.ErrAlreadyInRoom
	}

	code, err := rs.nextRoomCodeLocked()
	if err != nil {
		zap.S().Warnf("连接 %s 创建房间失败：%v", client.ID, err)
		return "", err
	}

	gm := game.NewGameMachine(game.MachineOptions{
		RoomCode: code,
		Host:     client,
		HostName: nickname,
		Words:    rs.words,
		Timings:  rs.timings,
		Metrics:  rs.metrics,
	})

	rs.state.rooms[code] = gm
	rs.state.members[client.ID] = code

	// 房间协程启动后会向房主发送 roomJoined
	rs.state.wg.Go(gm.Start)

	rs.metrics.RoomOpened()

	zap.S().Infof("房间 %s 由连接 %s 创建", code, client.ID)

	return code, nil
}

func (rs *RoomService) nextRoomCodeLocked() (string, error) {
	for range MAX_CODE_ATTEMPTS {
		code := rs.genCode()
		if _, taken := rs.state.rooms[code]; !taken {
			return code, nil
		}

		zap.S().Debugf("房间号 %s 已被占用，重新生成", code)
	}

	return "", game.ErrNoRoomCode
}

func (rs *RoomService) JoinRoom(ctx context.Context, client *game.Client, roomCode string, nickname string) error {
	roomCode = strings.TrimSpace(roomCode)

	rs.state.mu.RLock()
	_, inRoom := rs.state.members[client.ID]
	gm := rs.state.rooms[roomCode]
	rs.state.mu.RUnlock()

	if inRoom {
		return game.ErrAlreadyInRoom
	}

	if gm == nil {
		return game.ErrRoomNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, rs.requestTimeout)
	defer cancel()

	// 等待房间协程期间不持有锁
	if err := gm.Join(ctx, client, nickname); err != nil {
		zap.S().Debugf("连接 %s 加入房间 %s 失败：%v", client.ID, roomCode, err)
		return err
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	// 加入过程中房间可能已被解散
	if rs.state.rooms[roomCode] != gm {
		return game.ErrRoomNotFound
	}

	rs.state.members[client.ID] = roomCode

	zap.S().Infof("连接 %s 加入房间 %s", client.ID, roomCode)

	return nil
}

// Handle 分发一条客户端事件，只有创建和加入房间的错误需要告知客户端
func (rs *RoomService) Handle(ctx context.Context, client *game.Client, wrapper game.RequestWrapper) error {
	rs.metrics.EventReceived(wrapper.ReqType)

	switch wrapper.ReqType {
	case game.REQ_CREATE_ROOM:
		req := game.TryUnwrapCreateRoomRequest(wrapper)
		if req == nil {
			return ErrBadRequest
		}

		_, err := rs.CreateRoom(client, req.Nickname)
		return err

	case game.REQ_JOIN_ROOM:
		req := game.TryUnwrapJoinRoomRequest(wrapper)
		if req == nil {
			return ErrBadRequest
		}

		return rs.JoinRoom(ctx, client, req.RoomCode, req.Nickname)

	case game.REQ_DISBAND_ROOM:
		rs.logIgnored(client.ID, wrapper.ReqType, rs.disbandBy(client.ID))

	case game.REQ_LEAVE_ROOM:
		rs.logIgnored(client.ID, wrapper.ReqType, rs.Leave(ctx, client.ID))

	default:
		rs.logIgnored(client.ID, wrapper.ReqType, rs.dispatch(ctx, client.ID, wrapper))
	}

	return nil
}

func (rs *RoomService) logIgnored(clientID string, reqType string, err error) {
	if err == nil {
		return
	}

	zap.L().Debug(
		"忽略客户端请求",
		zap.String("client_id", clientID),
		zap.String("request_type", reqType),
		zap.Error(err),
	)
}

func (rs *RoomService) dispatch(ctx context.Context, clientID string, wrapper game.RequestWrapper) error {
	rs.state.mu.RLock()
	code, ok := rs.state.members[clientID]
	gm := rs.state.rooms[code]
	rs.state.mu.RUnlock()

	if !ok || gm == nil {
		return game.ErrRoomNotFound
	}

	// 以成员关系为准，房间号不符的请求直接忽略
	if reqCode := game.RoomCodeOf(wrapper); reqCode != "" && reqCode != code {
		return game.ErrForbidden
	}

	wrapper.SenderID = clientID

	ctx, cancel := context.WithTimeout(ctx, rs.requestTimeout)
	defer cancel()

	return gm.Submit(ctx, wrapper)
}

func (rs *RoomService) disbandBy(clientID string) error {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	code, ok := rs.state.members[clientID]
	if !ok {
		return game.ErrRoomNotFound
	}

	if gm := rs.state.rooms[code]; gm == nil || gm.HostID() != clientID {
		return game.ErrForbidden
	}

	rs.removeRoomLocked(code)

	return nil
}

// Leave 房主离开等同于解散房间，其他玩家离开不会删除房间
func (rs *RoomService) Leave(ctx context.Context, clientID string) error {
	rs.state.mu.Lock()

	code, ok := rs.state.members[clientID]
	if !ok {
		rs.state.mu.Unlock()
		return nil
	}

	gm := rs.state.rooms[code]
	if gm == nil || gm.HostID() == clientID {
		rs.removeRoomLocked(code)
		rs.state.mu.Unlock()
		return nil
	}

	delete(rs.state.members, clientID)
	rs.state.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, rs.requestTimeout)
	defer cancel()

	return gm.Submit(ctx, game.RequestWrapper{
		ReqType:  game.REQ_LEAVE_ROOM,
		SenderID: clientID,
	})
}

// Disconnect 在连接断开时调用
func (rs *RoomService) Disconnect(clientID string) {
	if err := rs.Leave(context.Background(), clientID); err != nil {
		zap.S().Warnf("连接 %s 断开后通知房间失败：%v", clientID, err)
	}
}

// Disband 按房间号解散，房间不存在时什么也不做
func (rs *RoomService) Disband(roomCode string) {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	rs.removeRoomLocked(roomCode)
}

// removeRoomLocked 立即从注册表删除房间，随后由房间协程通知成员并退出
func (rs *RoomService) removeRoomLocked(roomCode string) {
	gm, ok := rs.state.rooms[roomCode]
	if !ok {
		return
	}

	delete(rs.state.rooms, roomCode)

	for clientID, code := range rs.state.members {
		if code == roomCode {
			delete(rs.state.members, clientID)
		}
	}

	gm.Disband()
	rs.metrics.RoomClosed()

	zap.S().Infof("房间 %s 已从注册表移除", roomCode)
}

func (rs *RoomService) HasRoom(roomCode string) bool {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	_, ok := rs.state.rooms[roomCode]
	return ok
}

func (rs *RoomService) RoomCount() int {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	return len(rs.state.rooms)
}

func (rs *RoomService) RoomOf(clientID string) (string, bool) {
	rs.state.mu.RLock()
	defer rs.state.mu.RUnlock()

	code, ok := rs.state.members[clientID]
	return code, ok
}

func (rs *RoomService) GetRoom(ctx context.Context, roomCode string) (dto.RoomSummary, error) {
	rs.state.mu.RLock()
	gm := rs.state.rooms[roomCode]
	rs.state.mu.RUnlock()

	if gm == nil {
		return dto.RoomSummary{}, game.ErrRoomNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, rs.requestTimeout)
	defer cancel()

	snap, err := gm.Snapshot(ctx)
	if err != nil {
		return dto.RoomSummary{}, err
	}

	return dto.NewRoomSummary(snap), nil
}

// ListRooms 返回所有房间的摘要，无法及时响应的房间会被跳过
func (rs *RoomService) ListRooms(ctx context.Context) []dto.RoomSummary {
	rs.state.mu.RLock()
	machines := make([]*game.GameMachine, 0, len(rs.state.rooms))
	for _, gm := range rs.state.rooms {
		machines = append(machines, gm)
	}
	rs.state.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, rs.requestTimeout)
	defer cancel()

	summaries := make([]dto.RoomSummary, 0, len(machines))
	for _, gm := range machines {
		snap, err := gm.Snapshot(ctx)
		if err != nil {
			zap.S().Debugf("获取房间 %s 快照失败：%v", gm.RoomCode(), err)
			continue
		}

		summaries = append(summaries, dto.NewRoomSummary(snap))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RoomCode < summaries[j].RoomCode
	})

	return summaries
}
