package filescan

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/mocks"
)

type mockSession struct {
	mock.Mock
}

func (s *mockSession) Chunk(data []byte) (Decision, error) {
	args := s.Called(data)
	return args.Get(0).(Decision), args.Error(1)
}

func (s *mockSession) Complete(filePath string) (Decision, error) {
	args := s.Called(filePath)
	return args.Get(0).(Decision), args.Error(1)
}

func (s *mockSession) Abort() {
	s.Called()
}

func newTestSession(policy FailurePolicy, members ...Session) (*ScanSession, *mocks.MockMonitor) {
	monitor := mocks.NewMockMonitor(false)
	var list []Member
	for i, s := range members {
		list = append(list, Member{Name: []string{"first", "second", "third"}[i], Session: s})
	}
	return NewScanSession(SessionOptions{
		FileName:      "report.pdf",
		Headers:       Headers{"Content-Type": {"application/pdf"}},
		Monitor:       monitor,
		FailurePolicy: policy,
	}, list...), monitor
}

func TestScanSessionAccept(t *testing.T) {
	s1, s2 := &mockSession{}, &mockSession{}
	s1.On("Chunk", []byte("cde")).Return(Accept, nil).Once()
	s2.On("Chunk", []byte("cde")).Return(Accept, nil).Once()
	s1.On("Complete", "/tmp/upload").Return(Accept, nil).Once()
	s2.On("Complete", "/tmp/upload").Return(Accept, nil).Once()

	session, monitor := newTestSession(FailClosed, s1, s2)
	assert.Equal(t, Receiving, session.State())
	assert.Equal(t, Accept, session.Chunk([]byte("abcdefg"), 2, 3))
	assert.Equal(t, Accept, session.Complete("/tmp/upload"))
	assert.Equal(t, Completed, session.State())
	assert.Equal(t, Accept, session.Decision())

	// Terminal states are sticky
	assert.Equal(t, Accept, session.Chunk([]byte("abc"), 0, 3))
	assert.Equal(t, Accept, session.Complete("/tmp/upload"))
	session.Abort()
	assert.Equal(t, Completed, session.State())

	s1.AssertExpectations(t)
	s2.AssertExpectations(t)
	s1.AssertNotCalled(t, "Abort")
	assert.Equal(t, float64(1), monitor.Counter("decisions.accept"))
	assert.True(t, monitor.HasMeasure("chunk-size"))
	assert.True(t, monitor.HasMeasure("complete"))
}

func TestScanSessionZeroLengthChunk(t *testing.T) {
	s1 := &mockSession{}
	s1.On("Chunk", []byte{}).Return(Accept, nil).Once()

	session, _ := newTestSession(FailClosed, s1)
	assert.Equal(t, Accept, session.Chunk([]byte("abc"), 3, 0))
	s1.AssertExpectations(t)
}

func TestScanSessionInvalidChunkView(t *testing.T) {
	views := []struct {
		data           []byte
		offset, length int
	}{
		{[]byte("abc"), -1, 1},
		{[]byte("abc"), 0, -1},
		{[]byte("abc"), 4, 0},
		{[]byte("abc"), 2, 2},
		{nil, 0, 1},
	}
	for _, v := range views {
		s1 := &mockSession{}
		s1.On("Abort").Return().Once()

		session, monitor := newTestSession(FailOpen, s1)
		assert.Equal(t, Reject, session.Chunk(v.data, v.offset, v.length))
		assert.Equal(t, Receiving, session.State())
		assert.True(t, monitor.HasMessage("ERROR-REPORT", "outside buffer"))
		assert.Equal(t, Reject, session.Complete(""))

		s1.AssertExpectations(t)
		s1.AssertNotCalled(t, "Chunk", mock.Anything)
		s1.AssertNotCalled(t, "Complete", mock.Anything)
	}
}

func TestScanSessionCachedReject(t *testing.T) {
	s1, s2 := &mockSession{}, &mockSession{}
	s1.On("Chunk", []byte("abc")).Return(Accept, nil).Once()
	s2.On("Chunk", []byte("abc")).Return(Accept, nil).Once()
	s1.On("Chunk", []byte("def")).Return(Reject, nil).Once()
	s1.On("Abort").Return().Once()
	s2.On("Abort").Return().Once()

	session, monitor := newTestSession(FailOpen, s1, s2)
	assert.Equal(t, Accept, session.Chunk([]byte("abc"), 0, 3))
	assert.Equal(t, Reject, session.Chunk([]byte("def"), 0, 3))
	assert.Equal(t, Reject, session.Decision())
	assert.Equal(t, Reject, session.Chunk([]byte("ghi"), 0, 3))
	assert.Equal(t, Reject, session.Complete("/tmp/upload"))
	assert.Equal(t, Completed, session.State())

	s1.AssertExpectations(t)
	s2.AssertExpectations(t)
	s2.AssertNotCalled(t, "Chunk", []byte("def"))
	s1.AssertNotCalled(t, "Complete", mock.Anything)
	s2.AssertNotCalled(t, "Complete", mock.Anything)
	assert.Equal(t, float64(1), monitor.Counter("decisions.reject"))
	assert.True(t, monitor.HasMessage("INFO", "Scan of report.pdf completed, decision: reject"))
}

func TestScanSessionAbort(t *testing.T) {
	s1 := &mockSession{}
	s1.On("Chunk", []byte("abc")).Return(Accept, nil).Once()
	s1.On("Abort").Return().Once()

	session, monitor := newTestSession(FailOpen, s1)
	assert.Equal(t, Accept, session.Chunk([]byte("abc"), 0, 3))
	session.Abort()
	session.Abort()
	assert.Equal(t, Aborted, session.State())
	assert.Equal(t, Reject, session.Decision())
	assert.Equal(t, Reject, session.Complete("/tmp/upload"))
	assert.Equal(t, Reject, session.Chunk([]byte("abc"), 0, 3))
	assert.Equal(t, Aborted, session.State())

	s1.AssertExpectations(t)
	s1.AssertNotCalled(t, "Complete", mock.Anything)
	assert.Equal(t, float64(1), monitor.Counter("aborted"))
	assert.Equal(t, float64(1), monitor.Counter("decisions.reject"))
	assert.True(t, monitor.HasMessage("INFO", "Scan of report.pdf aborted, decision: reject"))
}

func TestScanSessionAbortBeforeChunks(t *testing.T) {
	s1 := &mockSession{}
	s1.On("Abort").Return().Once()

	session, _ := newTestSession(FailClosed, s1)
	session.Abort()
	assert.Equal(t, Reject, session.Decision())
	s1.AssertExpectations(t)
}

func TestScanSessionAbortPanic(t *testing.T) {
	s1, s2 := &mockSession{}, &mockSession{}
	s1.On("Abort").Run(func(mock.Arguments) { panic("engine crashed") }).Once()
	s2.On("Abort").Return().Once()

	session, monitor := newTestSession(FailClosed, s1, s2)
	assert.NotPanics(t, session.Abort)
	assert.True(t, monitor.HasMessage("PANIC", "engine crashed"))
	assert.True(t, monitor.HasMessage("WARN", "panic while aborting scan of report.pdf"))
	s2.AssertExpectations(t)
}

func TestScanSessionEngineErrorInChunk(t *testing.T) {
	for _, policy := range []FailurePolicy{FailClosed, FailOpen} {
		s1, s2 := &mockSession{}, &mockSession{}
		s1.On("Chunk", []byte("abc")).Return(Accept, errors.New("engine went away")).Once()
		s1.On("Abort").Return().Once()
		s2.On("Chunk", []byte("abc")).Return(Accept, nil).Maybe()
		s2.On("Abort").Return().Maybe()
		s2.On("Complete", "").Return(Accept, nil).Maybe()

		session, monitor := newTestSession(policy, s1, s2)
		assert.Equal(t, policy.Decide(), session.Chunk([]byte("abc"), 0, 3))
		assert.Equal(t, policy.Decide(), session.Complete(""))
		assert.True(t, monitor.HasMessage("WARNING-REPORT", "scan engine error (internal) in 'first'"))
		assert.Equal(t, float64(1), monitor.Counter("engine-errors"))

		// A member that failed mid-stream isn't consulted again
		s1.AssertExpectations(t)
		s1.AssertNotCalled(t, "Complete", mock.Anything)
	}
}

func TestScanSessionEngineErrorReason(t *testing.T) {
	s1 := &mockSession{}
	s1.On("Complete", "").Return(Reject, runtime.NewEngineError(runtime.EngineUnavailable, "connection refused")).Once()

	session, monitor := newTestSession(FailOpen, s1)
	assert.Equal(t, Accept, session.Complete(""))
	assert.True(t, monitor.HasMessage("WARNING-REPORT", "scan engine error (engine-unavailable) in 'first'"))
	s1.AssertExpectations(t)
}

func TestScanSessionPanicInComplete(t *testing.T) {
	for _, policy := range []FailurePolicy{FailClosed, FailOpen} {
		s1 := &mockSession{}
		s1.On("Complete", "").Run(func(mock.Arguments) { panic("bad pointer") }).Once()

		session, monitor := newTestSession(policy, s1)
		assert.NotPanics(t, func() {
			assert.Equal(t, policy.Decide(), session.Complete(""))
		})
		assert.True(t, monitor.HasMessage("PANIC", "bad pointer"))
		assert.True(t, monitor.HasMessage("WARNING-REPORT", "panic in Complete()"))
	}
}

func TestScanSessionPanicInChunk(t *testing.T) {
	s1 := &mockSession{}
	s1.On("Chunk", []byte("abc")).Run(func(mock.Arguments) { panic("bad pointer") }).Once()
	s1.On("Abort").Return().Once()

	session, _ := newTestSession(FailClosed, s1)
	assert.Equal(t, Reject, session.Chunk([]byte("abc"), 0, 3))
	s1.AssertExpectations(t)
}

func TestScanSessionCompleteTimeout(t *testing.T) {
	for _, policy := range []FailurePolicy{FailClosed, FailOpen} {
		s1 := &mockSession{}
		s1.On("Complete", "").After(500*time.Millisecond).Return(Accept, nil).Once()

		monitor := mocks.NewMockMonitor(false)
		session := NewScanSession(SessionOptions{
			FileName:        "slow.bin",
			Monitor:         monitor,
			FailurePolicy:   policy,
			CompleteTimeout: 10 * time.Millisecond,
		}, Member{Name: "slow", Session: s1})

		start := time.Now()
		assert.Equal(t, policy.Decide(), session.Complete(""))
		assert.True(t, time.Since(start) < 400*time.Millisecond)
		assert.True(t, monitor.HasMessage("WARNING-REPORT", "scan engine error (timeout) in 'slow'"))
	}
}

func TestScanSessionHeadersAreCopied(t *testing.T) {
	headers := Headers{"X-User": {"alice"}}
	session := NewScanSession(SessionOptions{
		FileName: "report.pdf",
		Headers:  headers,
		Monitor:  mocks.NewMockMonitor(true),
	})
	headers["X-User"][0] = "mallory"
	headers["X-Other"] = []string{"value"}

	assert.Equal(t, "report.pdf", session.FileName())
	assert.Equal(t, "alice", session.Headers().Get("x-user"))
	assert.Empty(t, session.Headers().Get("X-Other"))

	h := session.Headers()
	h["X-User"][0] = "mallory"
	assert.Equal(t, "alice", session.Headers().Get("X-User"))
}

func TestScanSessionOnTerminal(t *testing.T) {
	calls := 0
	session := NewScanSession(SessionOptions{
		FileName:   "report.pdf",
		Monitor:    mocks.NewMockMonitor(true),
		onTerminal: func() { calls++ },
	})
	assert.Equal(t, Accept, session.Chunk([]byte("abc"), 0, 3))
	assert.Equal(t, 0, calls)
	assert.Equal(t, Accept, session.Complete(""))
	session.Abort()
	session.Complete("")
	require.Equal(t, 1, calls)
}

func TestScanSessionNoMembers(t *testing.T) {
	session := NewScanSession(SessionOptions{})
	assert.Equal(t, Accept, session.Chunk([]byte("abc"), 1, 1))
	assert.Equal(t, Accept, session.Complete(""))
}
