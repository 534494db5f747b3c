package relay

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// fakeAdapter is a minimal, concurrency-safe stand-in for
// *entities.Adapter, recording what the relay published.
type fakeAdapter struct {
	mu sync.Mutex

	snapshots   []map[string]any
	debugLines  []string
	rawFrames   []string
	actAsServer bool
	online      *int
	offline     *int
}

func (f *fakeAdapter) PublishSnapshot(snapshot map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeAdapter) PublishDebugMessage(level, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debugLines = append(f.debugLines, level+": "+text)
}

func (f *fakeAdapter) PublishRawFrame(side, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawFrames = append(f.rawFrames, side+": "+raw)
}

func (f *fakeAdapter) Setpoints() (online, offline *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online, f.offline
}

func (f *fakeAdapter) SeedSetpoint(online, offline *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.online == nil {
		f.online = online
	}
	if f.offline == nil {
		f.offline = offline
	}
}

func (f *fakeAdapter) ActAsServer() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actAsServer
}

func (f *fakeAdapter) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

// waitForBind polls the relay's unexported conn field until Run has
// bound a socket, so the test can learn its ephemeral port.
func waitForBind(t *testing.T, r *Relay) *net.UDPAddr {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn := r.getConn(); conn != nil {
			addr, ok := conn.LocalAddr().(*net.UDPAddr)
			if ok {
				return addr
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("relay never bound a socket")
	return nil
}

const legacyTelemetry = "0910000000000000000000000000:V247,L11097,S0,T34,E14,i84,e1,t30:"

func TestRelay_ForwardsDeviceTelemetryToCloud(t *testing.T) {
	// The relay tells cloud from device by source IP alone, so the fake
	// cloud listens on a loopback address of its own.
	cloudConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.2")})
	if err != nil {
		t.Fatalf("listening for fake cloud: %v", err)
	}
	defer cloudConn.Close()
	cloudAddr := cloudConn.LocalAddr().(*net.UDPAddr)

	adapter := &fakeAdapter{actAsServer: true}
	cfg := Config{ListenHost: "127.0.0.1", ListenPort: 0, CloudAddr: cloudAddr}
	r := New(cfg, adapter, testLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	relayAddr := waitForBind(t, r)

	deviceConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listening for fake device: %v", err)
	}
	defer deviceConn.Close()

	if _, err := deviceConn.WriteToUDP([]byte(legacyTelemetry), relayAddr); err != nil {
		t.Fatalf("sending telemetry to relay: %v", err)
	}

	cloudConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := cloudConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("reading forwarded datagram: %v", err)
	}
	if got := string(buf[:n]); got != legacyTelemetry {
		t.Fatalf("forwarded datagram = %q, want %q", got, legacyTelemetry)
	}

	if adapter.snapshotCount() == 0 {
		t.Fatal("expected telemetry snapshot to be published")
	}

	cancel()
	<-errCh
}

func TestRelay_ForwardsCloudDatagramToLearnedDevice(t *testing.T) {
	// The relay tells cloud from device by source IP alone, so the fake
	// cloud listens on a loopback address of its own.
	cloudConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.2")})
	if err != nil {
		t.Fatalf("listening for fake cloud: %v", err)
	}
	defer cloudConn.Close()
	cloudAddr := cloudConn.LocalAddr().(*net.UDPAddr)

	adapter := &fakeAdapter{actAsServer: true}
	cfg := Config{ListenHost: "127.0.0.1", ListenPort: 0, CloudAddr: cloudAddr}
	r := New(cfg, adapter, testLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	relayAddr := waitForBind(t, r)

	deviceConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listening for fake device: %v", err)
	}
	defer deviceConn.Close()

	// Learn the device address first, as the relay would from a real
	// telemetry frame.
	if _, err := deviceConn.WriteToUDP([]byte(legacyTelemetry), relayAddr); err != nil {
		t.Fatalf("sending telemetry to relay: %v", err)
	}
	cloudConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	discard := make([]byte, 2048)
	if _, _, err := cloudConn.ReadFromUDP(discard); err != nil {
		t.Fatalf("reading forwarded telemetry: %v", err)
	}

	cmdFrame := "CMD,0910000000000000000000000000,0,0000,40,40,6,1:"
	if _, err := cloudConn.WriteToUDP([]byte(cmdFrame), relayAddr); err != nil {
		t.Fatalf("sending command from fake cloud: %v", err)
	}

	deviceConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := deviceConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("reading datagram forwarded to device: %v", err)
	}
	if got := string(buf[:n]); got != cmdFrame {
		t.Fatalf("forwarded datagram = %q, want %q", got, cmdFrame)
	}

	cancel()
	<-errCh
}

func TestRelay_RequestCommandSetsPendingNewValues(t *testing.T) {
	adapter := &fakeAdapter{actAsServer: true}
	r := New(Config{}, adapter, testLogger{})

	if r.pendingNewValues.Load() {
		t.Fatal("expected pendingNewValues to start false")
	}
	if err := r.RequestCommand(); err != nil {
		t.Fatalf("RequestCommand: %v", err)
	}
	if !r.pendingNewValues.Load() {
		t.Fatal("expected pendingNewValues to be set after RequestCommand")
	}
}

func TestRelay_InjectWithoutDeviceAddrFails(t *testing.T) {
	adapter := &fakeAdapter{}
	r := New(Config{}, adapter, testLogger{})

	if err := r.Inject("hello"); err == nil {
		t.Fatal("expected error injecting before any device address is learned")
	}
}
