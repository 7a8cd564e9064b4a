package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(h *ProctorHub, assessmentID uint) *MonitorClient {
	return &MonitorClient{Hub: h, Send: make(chan []byte, sendBuffer), AssessmentID: assessmentID}
}

func TestProctorHub_FiltersByAssessment(t *testing.T) {
	h := NewProctorHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	all := newTestMonitor(h, 0)
	one := newTestMonitor(h, 7)
	require.True(t, h.join(all))
	require.True(t, h.join(one))
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	h.Publish(ProctorEvent{Type: EventViolation, SessionID: "s-1", AssessmentID: 8})
	h.Publish(ProctorEvent{Type: EventSubmitted, SessionID: "s-2", AssessmentID: 7})

	var got ProctorEvent
	require.NoError(t, json.Unmarshal(<-all.Send, &got))
	assert.Equal(t, EventViolation, got.Type)
	require.NoError(t, json.Unmarshal(<-all.Send, &got))
	assert.Equal(t, EventSubmitted, got.Type)

	require.NoError(t, json.Unmarshal(<-one.Send, &got))
	assert.Equal(t, "s-2", got.SessionID)
	assert.Empty(t, one.Send)

	h.leave(one)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-one.Send
	assert.False(t, open)
}

func TestProctorHub_JoinAndLeaveAfterStop(t *testing.T) {
	h := NewProctorHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	early := newTestMonitor(h, 0)
	require.True(t, h.join(early))
	cancel()
	<-stopped
	<-h.Done()

	// 停止时关闭所有已注册监考端的发送通道
	_, open := <-early.Send
	assert.False(t, open)
	assert.Equal(t, 0, h.ClientCount())

	finished := make(chan bool, 1)
	go func() {
		h.leave(early)
		finished <- h.join(newTestMonitor(h, 0))
	}()
	select {
	case joined := <-finished:
		assert.False(t, joined)
	case <-time.After(time.Second):
		t.Fatal("hub channel send blocked after stop")
	}
}
