package relay

import (
	"net"
	"sync"
	"time"

	"juicebridge/internal/protocol"
)

// session is the relay's per-run state: the learned device address, the
// last-seen frames, and the rolling error-timestamp window. It is used
// concurrently by the receive loop and the handler workers: mu guards
// the address, frame and boot fields, errMu the error window.
type session struct {
	mu sync.Mutex

	deviceAddr    *net.UDPAddr
	lastStatus    protocol.Frame
	firstStatusTs time.Time
	lastCommand   *protocol.Command
	lastBootTs    *time.Time

	errMu           sync.Mutex
	errorTimestamps []time.Time
}

func newSession() *session {
	return &session{}
}

func (s *session) setDeviceAddr(addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceAddr = addr
}

func (s *session) getDeviceAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceAddr
}

func (s *session) setLastStatus(f protocol.Frame, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastStatus == nil {
		s.firstStatusTs = now
	}
	s.lastStatus = f
}

func (s *session) getLastStatus() (protocol.Frame, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus, s.firstStatusTs
}

func (s *session) setLastCommand(c *protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommand = c
}

func (s *session) getLastCommand() *protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand
}

func (s *session) setBoot(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := now
	s.lastBootTs = &t
}

func (s *session) recentlyBooted(now time.Time, within time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBootTs != nil && now.Sub(*s.lastBootTs) <= within
}

// recordError appends now to the rolling error window, trims entries
// older than lookback, and reports whether the window count now exceeds
// maxCount.
func (s *session) recordError(now time.Time, lookback time.Duration, maxCount int) bool {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	s.errorTimestamps = append(s.errorTimestamps, now)

	cutoff := now.Add(-lookback)
	kept := s.errorTimestamps[:0]
	for _, t := range s.errorTimestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.errorTimestamps = kept

	return len(s.errorTimestamps) > maxCount
}
