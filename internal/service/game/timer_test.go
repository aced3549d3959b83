package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTimeout(t *testing.T, ch <-chan RequestWrapper) *TimeoutRequest {
	t.Helper()

	select {
	case req := <-ch:
		tmo := TryUnwrapTimeoutRequest(req)
		require.NotNil(t, tmo)
		return tmo
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer event")
		return nil
	}
}

func TestScheduler_CountdownTicksToZero(t *testing.T) {
	ch := make(chan RequestWrapper, 16)
	s := newScheduler("1234", time.Millisecond, ch)

	token := s.Countdown(TASK_VOTE, 3, STAGE_VOTING, 0)

	for _, want := range []int{2, 1, 0} {
		tmo := recvTimeout(t, ch)
		assert.Equal(t, want, tmo.Remaining)
		assert.Equal(t, token, tmo.Token)
		assert.Equal(t, STAGE_VOTING, tmo.Stage)
		assert.True(t, s.IsCurrent(tmo))
	}

	s.Finish(TASK_VOTE)
	assert.False(t, s.Active(TASK_VOTE))
}

func TestScheduler_DelayFiresOnce(t *testing.T) {
	ch := make(chan RequestWrapper, 16)
	s := newScheduler("1234", time.Millisecond, ch)

	s.Delay(TASK_RESULT, 3, STAGE_CALCULATING, 0)

	tmo := recvTimeout(t, ch)
	assert.Equal(t, 0, tmo.Remaining)
	assert.Equal(t, TASK_RESULT, tmo.Kind)

	select {
	case <-ch:
		t.Fatal("delay task should fire exactly once")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestScheduler_RescheduleInvalidatesOldToken(t *testing.T) {
	ch := make(chan RequestWrapper, 16)
	s := newScheduler("1234", time.Hour, ch)

	first := s.Countdown(TASK_TURN, 30, STAGE_SPEAKING, 1)
	second := s.Countdown(TASK_TURN, 30, STAGE_SPEAKING, 2)

	assert.NotEqual(t, first, second)
	assert.False(t, s.IsCurrent(&TimeoutRequest{Kind: TASK_TURN, Token: first}))
	assert.True(t, s.IsCurrent(&TimeoutRequest{Kind: TASK_TURN, Token: second}))

	s.CancelAll()
}

func TestScheduler_CancelStopsDelivery(t *testing.T) {
	ch := make(chan RequestWrapper, 16)
	s := newScheduler("1234", 5*time.Millisecond, ch)

	token := s.Countdown(TASK_REVEAL, 10, STAGE_REVEAL, 0)
	s.Cancel(TASK_REVEAL)

	assert.False(t, s.Active(TASK_REVEAL))
	assert.False(t, s.IsCurrent(&TimeoutRequest{Kind: TASK_REVEAL, Token: token}))

	// 取消前最多可能已经投递了一个事件
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, len(ch), 1)
}
