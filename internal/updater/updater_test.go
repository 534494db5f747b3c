package updater

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"juicebridge/internal/admin"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

func TestFilterUDPC(t *testing.T) {
	streams := []admin.Stream{
		{ID: "1", Type: "UDPC", Dest: "10.0.0.1:8047"},
		{ID: "2", Type: "TCP", Dest: "10.0.0.2:80"},
		{ID: "3", Type: "UDPC", Dest: "10.0.0.3:8047"},
	}
	got := filterUDPC(streams)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("filterUDPC = %+v", got)
	}
}

// fakeAdminDevice mimics the admin console for two iterations: the
// first "list" reports two stale UDPC entries, the second (after
// stream_close + udpc) reports a single correct one.
func fakeAdminDevice(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var mu sync.Mutex
	closedIDs := map[string]bool{}
	udpcSet := false

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handleAdminConn(conn, &mu, closedIDs, &udpcSet)
			}()
		}
	}()

	return ln.Addr().String()
}

func handleAdminConn(conn net.Conn, mu *sync.Mutex, closedIDs map[string]bool, udpcSet *bool) {
	buf := make([]byte, 4096)
	conn.Write([]byte("welcome\r\n>")) //nolint:errcheck

	var pending strings.Builder
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		pending.Write(buf[:n])
		line := pending.String()
		nl := strings.Index(line, "\n")
		if nl < 0 {
			continue
		}
		cmd := strings.TrimSpace(line[:nl])
		pending.Reset()
		pending.WriteString(line[nl+1:])

		mu.Lock()
		switch {
		case cmd == "":
			conn.Write([]byte(">")) //nolint:errcheck
		case cmd == "list":
			if *udpcSet {
				conn.Write([]byte("list\r\n! \r\n0 2 UDPC ENABLED 10.0.0.9:8047\r\n>")) //nolint:errcheck
			} else {
				conn.Write([]byte("list\r\n! \r\n0 1 UDPC ENABLED 10.0.0.2:9999\r\n0 2 UDPC ENABLED 10.0.0.3:9999\r\n>")) //nolint:errcheck
			}
		case strings.HasPrefix(cmd, "stream_close"):
			id := strings.TrimSpace(strings.TrimPrefix(cmd, "stream_close"))
			closedIDs[id] = true
			conn.Write([]byte(">")) //nolint:errcheck
		case strings.HasPrefix(cmd, "udpc"):
			*udpcSet = true
			conn.Write([]byte(">")) //nolint:errcheck
		}
		mu.Unlock()
	}
}

func TestUpdater_TickChangesAndConverges(t *testing.T) {
	addr := fakeAdminDevice(t)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		DeviceSerial: "0910000000000000000000000000",
		JuiceboxHost: host,
		AdminPort:    port,
		BridgeHost:   "10.0.0.9",
		BridgePort:   8047,
	}
	u := New(cfg, testLogger{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := u.tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := u.tick(ctx); err != nil {
		t.Fatalf("second tick (should now be stable): %v", err)
	}
}
