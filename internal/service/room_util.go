package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/BOB-921223/whoisyourdaddy/internal/service/game"
	"go.uber.org/zap"
)

const MAX_CODE_ATTEMPTS = 100

var ErrBadRequest = errors.New("無效的請求格式")

// genRoomCode 生成 1000-9999 之间的四位房间号
func genRoomCode() string {
	return fmt.Sprintf("%04d", 1000+rand.IntN(9000))
}

func isRoomValid(gm *game.GameMachine) bool {
	if gm == nil {
		return false
	}

	return !gm.IsStopped()
}

func (rs *RoomService) startCleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.state.cleanUpDone:
			return

		case <-ticker.C:
			rs.sweep()
		}
	}
}

// sweep 移除协程已经退出的房间
func (rs *RoomService) sweep() int {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	removed := 0

	for code, gm := range rs.state.rooms {
		if isRoomValid(gm) {
			continue
		}

		zap.S().Infof("房间 %s 状态失效，开始清理", code)

		rs.removeRoomLocked(code)
		removed++
	}

	return removed
}
