package relay

import (
	"net"
	"testing"
	"time"
)

func TestSession_SetLastStatusTracksFirstSeen(t *testing.T) {
	s := newSession()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	s.setLastStatus(fakeFrame{}, base)
	_, firstSeen := s.getLastStatus()
	if !firstSeen.Equal(base) {
		t.Fatalf("firstSeen = %v, want %v", firstSeen, base)
	}

	s.setLastStatus(fakeFrame{}, base.Add(time.Minute))
	_, firstSeen = s.getLastStatus()
	if !firstSeen.Equal(base) {
		t.Fatalf("firstSeen changed on second status: %v, want %v", firstSeen, base)
	}
}

func TestSession_DeviceAddrRoundTrip(t *testing.T) {
	s := newSession()
	if s.getDeviceAddr() != nil {
		t.Fatal("expected nil device addr before first datagram")
	}

	addr := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 8047}
	s.setDeviceAddr(addr)
	if got := s.getDeviceAddr(); got != addr {
		t.Fatalf("getDeviceAddr() = %v, want %v", got, addr)
	}
}

func TestSession_RecentlyBooted(t *testing.T) {
	s := newSession()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if s.recentlyBooted(now, 30*time.Second) {
		t.Fatal("expected false before any boot recorded")
	}

	s.setBoot(now)
	if !s.recentlyBooted(now.Add(10*time.Second), 30*time.Second) {
		t.Fatal("expected true within boot window")
	}
	if s.recentlyBooted(now.Add(time.Minute), 30*time.Second) {
		t.Fatal("expected false outside boot window")
	}
}

func TestSession_RecordErrorTrimsAndThresholds(t *testing.T) {
	s := newSession()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if exceeded := s.recordError(base.Add(time.Duration(i)*time.Second), time.Hour, 10); exceeded {
			t.Fatalf("exceeded too early at i=%d", i)
		}
	}
	if !s.recordError(base.Add(11*time.Second), time.Hour, 10) {
		t.Fatal("expected budget exceeded on 11th error within lookback")
	}

	// A fresh window an hour later should have trimmed the old errors
	// and not be considered exceeded by this single new error.
	s2 := newSession()
	for i := 0; i < 10; i++ {
		s2.recordError(base.Add(time.Duration(i)*time.Second), time.Hour, 10)
	}
	if exceeded := s2.recordError(base.Add(2*time.Hour), time.Hour, 10); exceeded {
		t.Fatal("expected old errors to be trimmed out of the lookback window")
	}
}

// fakeFrame satisfies protocol.Frame for session tests that don't care
// about decoded content.
type fakeFrame struct{}

func (fakeFrame) Build() string               { return "" }
func (fakeFrame) ToSimpleMap() map[string]any { return nil }
