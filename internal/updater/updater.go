// Package updater implements the destination updater: a periodic
// control loop that keeps the device's UDPC telemetry destination
// pointed at the bridge.
package updater

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"juicebridge/internal/admin"
	"juicebridge/internal/audit"
)

const (
	// period is the normal interval between iterations.
	period = 30 * time.Second

	// errorPeriod replaces period after an iteration fails.
	errorPeriod = 3 * time.Second

	// watchdog bounds a single iteration, admin session included.
	watchdog = 60 * time.Second

	// adminTimeout bounds individual admin-channel reads/writes.
	adminTimeout = 10 * time.Second

	streamTypeUDPC = "UDPC"
)

// Logger is the subset of structured-logging methods the updater needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures one device's destination updater.
type Config struct {
	DeviceSerial string
	JuiceboxHost string
	AdminPort    int
	BridgeHost   string
	BridgePort   int
}

// Updater runs the periodic reconciliation loop for a single device's
// admin channel.
type Updater struct {
	cfg    Config
	log    Logger
	audit  audit.Repository
	errors int
}

// New builds an Updater. auditRepo may be nil, in which case
// reconfiguration decisions are simply not recorded.
func New(cfg Config, log Logger, auditRepo audit.Repository) *Updater {
	return &Updater{cfg: cfg, log: log, audit: auditRepo}
}

// Run blocks, executing one iteration per tick, until ctx is canceled.
// It returns ctx.Err(), giving it the same Run(ctx) error shape as the
// entity adapter and relay so the supervisor can wire all three uniformly.
func (u *Updater) Run(ctx context.Context) error {
	wait := period
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := u.tick(ctx); err != nil {
			u.log.Warn("destination updater iteration failed", "device", u.cfg.DeviceSerial, "error", err)
			wait = errorPeriod
			continue
		}
		wait = period
	}
}

// tick runs exactly one watchdog-bounded iteration.
func (u *Updater) tick(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, watchdog)
	defer cancel()

	c, err := admin.Open(ctx, u.cfg.JuiceboxHost, u.cfg.AdminPort, adminTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAdminSession, err)
	}
	defer c.Close() //nolint:errcheck // best-effort session teardown

	streams, err := c.ListStreams()
	if err != nil {
		return fmt.Errorf("updater: listing streams: %w", err)
	}

	udpc := filterUDPC(streams)
	wantDest := fmt.Sprintf("%s:%d", u.cfg.BridgeHost, u.cfg.BridgePort)

	if len(udpc) == 1 && udpc[0].Dest == wantDest {
		u.log.Debug("destination updater: already correct", "device", u.cfg.DeviceSerial, "dest", wantDest)
		return nil
	}

	closed := closeStale(c, udpc)
	if err := c.SetUDPC(u.cfg.BridgeHost, u.cfg.BridgePort); err != nil {
		return fmt.Errorf("updater: set_udpc: %w", err)
	}

	u.log.Info("destination updater: changed", "device", u.cfg.DeviceSerial, "closed", closed, "dest", wantDest)
	u.recordChange(parent, closed, wantDest)
	return nil
}

// filterUDPC returns only the streams of type UDPC.
func filterUDPC(streams []admin.Stream) []admin.Stream {
	var out []admin.Stream
	for _, s := range streams {
		if s.Type == streamTypeUDPC {
			out = append(out, s)
		}
	}
	return out
}

// closeStale closes every UDPC stream whose id is less than the
// maximum UDPC id present, returning the ids it closed. Streams whose
// id cannot be parsed as an integer are left alone.
func closeStale(c *admin.Client, udpc []admin.Stream) []string {
	maxID := -1
	for _, s := range udpc {
		if n, err := strconv.Atoi(s.ID); err == nil && n > maxID {
			maxID = n
		}
	}

	var closed []string
	for _, s := range udpc {
		n, err := strconv.Atoi(s.ID)
		if err != nil || n >= maxID {
			continue
		}
		if err := c.CloseStream(s.ID); err != nil {
			continue
		}
		closed = append(closed, s.ID)
	}
	return closed
}

func (u *Updater) recordChange(ctx context.Context, closed []string, dest string) {
	if u.audit == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     "changed",
		EntityType: "udpc_stream",
		EntityID:   u.cfg.DeviceSerial,
		Source:     "updater",
		Details: map[string]any{
			"closed_streams": closed,
			"dest":           dest,
		},
	}
	if err := u.audit.Create(ctx, entry); err != nil {
		u.log.Warn("destination updater: audit insert failed", "error", err)
	}
}
