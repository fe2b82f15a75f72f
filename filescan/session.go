package filescan

import (
	"fmt"
	"sync"
	"time"

	"github.com/demiflat/orbeon-forms/runtime"
	"github.com/demiflat/orbeon-forms/runtime/monitoring"
)

// Member is a Session started by a named provider, a ScanSession combines the
// decisions of all its members.
type Member struct {
	Name    string
	Session Session
	// Monitor for messages about this member, defaults to the monitor of the
	// ScanSession tagged with the provider name.
	Monitor runtime.Monitor
}

// SessionOptions configures a ScanSession.
type SessionOptions struct {
	FileName string
	Headers  Headers
	Monitor  runtime.Monitor
	// FailurePolicy resolves engine errors and panics from members.
	FailurePolicy FailurePolicy
	// CompleteTimeout limits the time each member may spend in Complete(),
	// zero means no limit.
	CompleteTimeout time.Duration

	// called once the session reaches a terminal state
	onTerminal func()
}

type member struct {
	name    string
	session Session
	monitor runtime.Monitor
	done    bool
}

// A ScanSession decides whether a single upload is acceptable. It is what the
// host drives as bytes of the upload arrive.
//
// A ScanSession is Receiving until Complete() or Abort() is called, after
// which it is Completed or Aborted, respectively. Calls after that are no-ops
// returning the last decision. Once a chunk is rejected the decision is
// cached, and further chunks are not passed on to the members.
//
// Members see the lifecycle described by Session, regardless of what order
// the host calls methods on the ScanSession in.
type ScanSession struct {
	m               sync.Mutex
	fileName        string
	headers         Headers
	monitor         runtime.Monitor
	policy          FailurePolicy
	completeTimeout time.Duration
	onTerminal      func()
	members         []member
	state           State
	decision        Decision
}

// NewScanSession returns a ScanSession combining the given members.
func NewScanSession(options SessionOptions, members ...Member) *ScanSession {
	monitor := options.Monitor
	if monitor == nil {
		monitor = monitoring.PreConfig()
	}
	s := &ScanSession{
		fileName:        options.FileName,
		headers:         options.Headers.Clone(),
		monitor:         monitor,
		policy:          options.FailurePolicy,
		completeTimeout: options.CompleteTimeout,
		onTerminal:      options.onTerminal,
		members:         make([]member, len(members)),
	}
	for i, m := range members {
		monitor := m.Monitor
		if monitor == nil {
			monitor = s.monitor.WithTag("provider", m.Name)
		}
		s.members[i] = member{
			name:    m.Name,
			session: m.Session,
			monitor: monitor,
		}
	}
	return s
}

// FileName returns the declared name of the uploaded file.
func (s *ScanSession) FileName() string {
	return s.fileName
}

// Headers returns a copy of the request headers given when the stream started.
func (s *ScanSession) Headers() Headers {
	return s.headers.Clone()
}

// State returns the current state of the session.
func (s *ScanSession) State() State {
	s.m.Lock()
	defer s.m.Unlock()
	return s.state
}

// Decision returns the current decision, this is Reject if any chunk has been
// rejected or the session was aborted.
func (s *ScanSession) Decision() Decision {
	s.m.Lock()
	defer s.m.Unlock()
	return s.decision
}

// Chunk passes data[offset:offset+length] to all members and returns Reject
// if any of them rejects it.
//
// A view outside of data is a violation of the host contract, it is reported
// and the upload is rejected.
func (s *ScanSession) Chunk(data []byte, offset, length int) Decision {
	s.m.Lock()
	defer s.m.Unlock()

	if s.state != Receiving || s.decision == Reject {
		return s.decision
	}

	if offset < 0 || length < 0 || offset > len(data) || length > len(data)-offset {
		err := fmt.Errorf("chunk [%d:%d+%d] is outside buffer of length %d", offset, offset, length, len(data))
		s.monitor.ReportError(err, "host delivered an invalid chunk for ", s.fileName)
		s.reject()
		return s.decision
	}
	chunk := data[offset : offset+length]

	s.monitor.Count("chunks", 1)
	s.monitor.Measure("chunk-size", float64(length))
	for i := range s.members {
		m := &s.members[i]
		if m.done {
			continue
		}
		var d Decision
		var err error
		incidentID := m.monitor.CapturePanic(func() {
			d, err = m.session.Chunk(chunk)
		})
		if incidentID != "" || err != nil {
			d = s.resolve(m, "Chunk", err, incidentID)
			// Don't consult an engine that failed mid-stream again
			s.abortMember(m)
		}
		if d == Reject {
			m.monitor.Infof("Rejected chunk of %d bytes for %s", length, s.fileName)
			s.reject()
			break
		}
	}
	return s.decision
}

// Complete calls Complete(filePath) on all members and returns Reject if any
// of them rejects the file.
func (s *ScanSession) Complete(filePath string) Decision {
	s.m.Lock()
	defer s.m.Unlock()

	if s.state != Receiving {
		return s.decision
	}
	s.state = Completed
	defer s.terminated()

	if s.decision == Reject {
		return s.decision
	}

	s.monitor.Time("complete", func() {
		for i := range s.members {
			m := &s.members[i]
			if m.done {
				continue
			}
			m.done = true
			d, incidentID, err := s.completeMember(m, filePath)
			if incidentID != "" || err != nil {
				d = s.resolve(m, "Complete", err, incidentID)
			}
			if d == Reject {
				m.monitor.Infof("Rejected %s", s.fileName)
				s.decision = Reject
			}
		}
	})
	return s.decision
}

// Abort releases all members, an aborted upload is never accepted.
//
// Abort never panics, panics from members are captured and reported.
func (s *ScanSession) Abort() {
	s.m.Lock()
	defer s.m.Unlock()

	if s.state != Receiving {
		return
	}
	s.state = Aborted
	defer s.terminated()

	s.decision = Reject
	for i := range s.members {
		s.abortMember(&s.members[i])
	}
	s.monitor.Count("aborted", 1)
}

// reject caches Reject as decision and aborts all members, such that they
// release resources now rather than when the host gets around to it.
func (s *ScanSession) reject() {
	s.decision = Reject
	for i := range s.members {
		s.abortMember(&s.members[i])
	}
}

func (s *ScanSession) abortMember(m *member) {
	if m.done {
		return
	}
	m.done = true
	if incidentID := m.monitor.CapturePanic(m.session.Abort); incidentID != "" {
		m.monitor.Warnf("panic while aborting scan of %s, incidentId: %s", s.fileName, incidentID)
	}
}

// completeMember calls Complete on a member, giving up after completeTimeout.
// When giving up the call is left running in the background.
func (s *ScanSession) completeMember(m *member, filePath string) (Decision, string, error) {
	var (
		decision   Decision
		err        error
		incidentID string
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		incidentID = m.monitor.CapturePanic(func() {
			decision, err = m.session.Complete(filePath)
		})
	}()

	var timeout <-chan time.Time
	if s.completeTimeout > 0 {
		timer := time.NewTimer(s.completeTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-done:
		return decision, incidentID, err
	case <-timeout:
		return Accept, "", runtime.NewEngineError(
			runtime.EngineTimeout, "Complete() didn't return within ", s.completeTimeout,
		)
	}
}

// resolve turns an error or panic from a member hook into a decision using
// the failure policy.
func (s *ScanSession) resolve(m *member, hook string, err error, incidentID string) Decision {
	var e runtime.EngineError
	if incidentID != "" {
		e = runtime.NewEngineError(runtime.EngineInternal, "panic in ", hook, "() incidentId: ", incidentID)
	} else {
		e = runtime.WrapEngineError(runtime.EngineInternal, err, hook+"() failed")
	}
	if e.Provider == "" {
		e.Provider = m.name
	}

	decision := s.policy.Decide()
	s.monitor.Count("engine-errors", 1)
	m.monitor.WithTag("hook", hook).ReportWarning(
		e, "scan of ", s.fileName, " failed, resolved as ", decision, " (", s.policy, ")",
	)
	return decision
}

// terminated records the final decision, it is called once for every session
// when it reaches Completed or Aborted.
func (s *ScanSession) terminated() {
	s.monitor.Count("decisions."+s.decision.String(), 1)
	s.monitor.Infof("Scan of %s %s, decision: %s", s.fileName, s.state, s.decision)
	if s.onTerminal != nil {
		s.onTerminal()
	}
}
