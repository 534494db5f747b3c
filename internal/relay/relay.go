// Package relay implements the man-in-the-middle bridge between the
// JuiceBox device and its vendor cloud: a single UDP socket that
// demultiplexes datagrams between the two, invoking the codec and
// entity adapter and enforcing the bridge's timeouts and error budget.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"juicebridge/internal/protocol"
	"juicebridge/internal/synth"
)

const (
	recvTimeout        = 120 * time.Second
	handlerTimeout     = 10 * time.Second
	sendTimeout        = 10 * time.Second
	sendPacing         = 100 * time.Millisecond
	maxSendAttempts    = 3
	errorLookback      = 60 * time.Minute
	maxErrorCount      = 10
	handlerQueueSize   = 100
	handlerWorkerCount = 4
	readBufferSize     = 2048
)

// Logger is the subset of structured-logging methods the relay needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Adapter is the subset of *entities.Adapter the relay drives: the
// codec/adapter hooks the MITM loop needs plus the setpoint state the
// synthesizer reads. Declared here, rather than depended on
// concretely, so the relay can be exercised against a fake in tests.
type Adapter interface {
	PublishSnapshot(snapshot map[string]any)
	PublishDebugMessage(level, text string)
	PublishRawFrame(side, raw string)
	Setpoints() (onlineSet, offlineSet *int)
	SeedSetpoint(online, offline *int)
	ActAsServer() bool
}

// Sink persists telemetry snapshots and synthesized commands for later
// inspection, independent of the live MQTT-published state. Both
// methods are fire-and-forget from the relay's perspective: a sink
// failure is the sink's concern to log, not a reason to drop a
// datagram. Satisfied by internal/history.Repository and
// internal/infrastructure/influxdb.Client via small adapters in
// cmd/juicebridge, so the relay itself depends on neither concretely.
type Sink interface {
	RecordTelemetry(deviceSerial string, snapshot map[string]any)
	RecordCommand(deviceSerial string, instantAmperage, offlineAmperage, counter int)
}

// Config configures one relay run.
type Config struct {
	ListenHost string
	ListenPort int

	// CloudAddr is nil when the bridge never forwards to a cloud (pure
	// stand-alone mode); datagrams are then only ever device-sourced.
	CloudAddr *net.UDPAddr

	// IgnoreCloud, when true, drops cloud forwarding and has the relay
	// synthesize command frames locally instead (--ignore_enelx).
	IgnoreCloud bool
}

type datagram struct {
	data []byte
	src  *net.UDPAddr
}

// Relay owns the device/cloud UDP socket for one JuiceBox session. A
// Relay is single-use: construct a fresh one with New for each Run.
type Relay struct {
	cfg     Config
	log     Logger
	adapter Adapter
	sinks   []Sink
	sess    *session

	connMu sync.RWMutex
	conn   net.PacketConn

	sendMu sync.Mutex

	handlerQueue chan datagram
	wg           sync.WaitGroup
	done         chan struct{}

	pendingNewValues atomic.Bool
}

// New builds a Relay ready to Run. adapter must already have had its
// command callbacks wired to RequestCommand and Inject. sinks is
// optional and may be nil; each non-nil entry receives every processed
// telemetry snapshot and synthesized command.
func New(cfg Config, adapter Adapter, log Logger, sinks ...Sink) *Relay {
	return &Relay{
		cfg:          cfg,
		log:          log,
		adapter:      adapter,
		sinks:        sinks,
		sess:         newSession(),
		handlerQueue: make(chan datagram, handlerQueueSize),
		done:         make(chan struct{}),
	}
}

// recordTelemetry fans a processed snapshot out to every configured sink.
func (r *Relay) recordTelemetry(deviceSerial string, snapshot map[string]any) {
	for _, s := range r.sinks {
		s.RecordTelemetry(deviceSerial, snapshot)
	}
}

// recordCommand fans a synthesized command out to every configured sink.
func (r *Relay) recordCommand(deviceSerial string, instantAmperage, offlineAmperage, counter int) {
	for _, s := range r.sinks {
		s.RecordCommand(deviceSerial, instantAmperage, offlineAmperage, counter)
	}
}

// RequestCommand asks the relay to synthesize its next outbound command
// with newValues=true, after a setpoint write. It is wired as
// the entity adapter's CommandFunc.
func (r *Relay) RequestCommand() error {
	r.pendingNewValues.Store(true)
	return nil
}

// Inject sends a raw, user-supplied payload straight to the device, for
// diagnostic use. It is wired as the entity adapter's InjectFunc.
func (r *Relay) Inject(raw string) error {
	addr := r.sess.getDeviceAddr()
	if addr == nil {
		return fmt.Errorf("relay: cannot inject, no device address learned yet")
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return r.send(ctx, []byte(raw), addr)
}

// Run binds the relay's socket and services datagrams until ctx is
// canceled, a rebind fails, or a datagram dropped on a full handler
// queue takes the rolling error budget over its bound. Errors noted
// while handling a datagram (parse, forward and send failures) count
// toward the same budget, but going over it there is only logged and
// does not end Run. Callers should
// treat any returned error as fatal and construct a fresh Relay to
// retry, mirroring the supervisor's restart-on-failure policy.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.bind(ctx); err != nil {
		return err
	}
	defer r.closeConn()

	for range handlerWorkerCount {
		r.wg.Add(1)
		go r.handlerWorker()
	}
	defer func() {
		close(r.done)
		r.wg.Wait()
	}()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn := r.getConn()
		if err := conn.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
			return fmt.Errorf("relay: setting read deadline: %w", err)
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			r.log.Warn("relay: read failed, rebinding", "error", err)
			if bindErr := r.rebind(ctx); bindErr != nil {
				return fmt.Errorf("%w: %w", ErrBindExhausted, bindErr)
			}
			continue
		}

		src, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if exceeded := r.dispatch(datagram{data: data, src: src}); exceeded {
			return ErrErrorBudgetExceeded
		}
	}
}

// dispatch enqueues d for a handler worker, reporting true if the error
// budget was already exceeded (the queue being full counts as an error:
// the relay cannot keep up).
func (r *Relay) dispatch(d datagram) bool {
	select {
	case r.handlerQueue <- d:
		return false
	default:
		r.log.Warn("relay: handler queue full, dropping datagram", "src", d.src)
		return r.sess.recordError(time.Now(), errorLookback, maxErrorCount)
	}
}

func (r *Relay) handlerWorker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case d := <-r.handlerQueue:
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			r.handle(ctx, d.data, d.src)
			cancel()
		}
	}
}

// handle branches on datagram origin: one whose source IP differs from
// the configured cloud address is treated as device-originated and
// re-learns device_addr; one from the cloud address is forwarded on to
// the device unmodified.
func (r *Relay) handle(ctx context.Context, d []byte, src *net.UDPAddr) {
	if r.cfg.CloudAddr != nil && src.IP.Equal(r.cfg.CloudAddr.IP) {
		r.handleCloud(ctx, d)
		return
	}
	r.handleDevice(ctx, d, src)
}

func (r *Relay) handleDevice(ctx context.Context, d []byte, src *net.UDPAddr) {
	r.sess.setDeviceAddr(src)

	frame, err := protocol.Classify(d)
	if err != nil {
		r.log.Warn("relay: dropping unparsable device datagram", "src", src, "error", err)
		r.noteError()
		return
	}

	switch f := frame.(type) {
	case *protocol.Telemetry:
		r.adapter.PublishRawFrame("device", f.Build())
		now := time.Now()
		r.sess.setLastStatus(f, now)
		r.seedSetpoints(f, now)
		snapshot := f.ToSimpleMap()
		r.adapter.PublishSnapshot(snapshot)
		r.recordTelemetry(f.Serial, snapshot)

		if r.adapter.ActAsServer() && r.cfg.IgnoreCloud {
			r.synthesizeAndSend(ctx, f, now)
			return
		}
		r.forwardToCloud(ctx, d)

	case *protocol.Debug:
		r.adapter.PublishRawFrame("device", f.Build())
		r.adapter.PublishDebugMessage(f.Level, f.Text)
		if f.IsBoot {
			r.sess.setBoot(time.Now())
		}
		r.forwardToCloud(ctx, d)

	default:
		// Commands and encrypted frames from the device side are
		// unusual but still relayed unmodified.
		r.adapter.PublishRawFrame("device", frame.Build())
		r.forwardToCloud(ctx, d)
	}
}

func (r *Relay) handleCloud(ctx context.Context, d []byte) {
	r.adapter.PublishRawFrame("cloud", string(d))

	addr := r.sess.getDeviceAddr()
	if addr == nil {
		r.log.Warn("relay: dropping cloud datagram, no device address learned yet")
		return
	}
	if err := r.send(ctx, d, addr); err != nil {
		r.log.Warn("relay: forwarding cloud datagram to device failed", "error", err)
		r.noteError()
	}
}

func (r *Relay) forwardToCloud(ctx context.Context, d []byte) {
	if r.cfg.IgnoreCloud || r.cfg.CloudAddr == nil {
		return
	}
	if err := r.send(ctx, d, r.cfg.CloudAddr); err != nil {
		r.log.Warn("relay: forwarding device datagram to cloud failed", "error", err)
		r.noteError()
	}
}

func (r *Relay) seedSetpoints(f *protocol.Telemetry, now time.Time) {
	online, offline := r.adapter.Setpoints()
	sp := &synth.Setpoints{CurrentMaxOnlineSet: online, CurrentMaxOfflineSet: offline}
	_, firstSeen := r.sess.getLastStatus()
	recentlyBooted := r.sess.recentlyBooted(now, synth.BootWindow)
	synth.SeedSetpoints(sp, f.ToSimpleMap(), firstSeen, recentlyBooted, now)
	r.adapter.SeedSetpoint(sp.CurrentMaxOnlineSet, sp.CurrentMaxOfflineSet)
}

func (r *Relay) synthesizeAndSend(ctx context.Context, f *protocol.Telemetry, now time.Time) {
	online, offline := r.adapter.Setpoints()
	state := synth.State{
		LastStatusFrame: f,
		LastCommand:     r.sess.getLastCommand(),
		Setpoints:       synth.Setpoints{CurrentMaxOnlineSet: online, CurrentMaxOfflineSet: offline},
		NewValues:       r.pendingNewValues.Swap(false),
	}

	cmd, err := synth.Synthesize(state, now)
	if err != nil {
		r.log.Warn("relay: command synthesis refused", "error", err)
		return
	}

	r.sess.setLastCommand(cmd)
	r.log.Debug("relay: synthesized command", "detail", synth.Describe(cmd))
	r.recordCommand(f.Serial, cmd.InstantAmperage, cmd.OfflineAmperage, cmd.Counter)

	if err := r.send(ctx, []byte(cmd.Build()), r.sess.getDeviceAddr()); err != nil {
		r.log.Error("relay: sending synthesized command failed", "error", err)
		r.noteError()
	}
}

func (r *Relay) noteError() {
	if r.sess.recordError(time.Now(), errorLookback, maxErrorCount) {
		r.log.Error("relay: error budget exceeded")
	}
}

// send transmits data to addr under the sending lock, pacing sends at
// least sendPacing apart and retrying with a rebind between attempts if
// the write fails.
func (r *Relay) send(ctx context.Context, data []byte, addr *net.UDPAddr) error {
	if addr == nil {
		return fmt.Errorf("relay: send: nil destination address")
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		conn := r.getConn()
		if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
			return fmt.Errorf("relay: setting write deadline: %w", err)
		}

		_, err := conn.WriteTo(data, addr)
		if err == nil {
			time.Sleep(sendPacing)
			return nil
		}

		lastErr = err
		r.log.Warn("relay: send attempt failed", "attempt", attempt, "error", err)
		if attempt < maxSendAttempts {
			if bindErr := r.rebind(ctx); bindErr != nil {
				return fmt.Errorf("%w: %w", ErrSendRetriesExhausted, bindErr)
			}
		}
	}

	return fmt.Errorf("%w: %w", ErrSendRetriesExhausted, lastErr)
}

func (r *Relay) bind(ctx context.Context) error {
	conn, err := listenUDP(ctx, r.cfg.ListenHost, r.cfg.ListenPort)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBindExhausted, err)
	}
	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()
	return nil
}

func (r *Relay) rebind(ctx context.Context) error {
	r.closeConn()
	return r.bind(ctx)
}

func (r *Relay) getConn() net.PacketConn {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return r.conn
}

func (r *Relay) closeConn() {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// portString renders a port number for net.JoinHostPort.
func portString(port int) string {
	return strconv.Itoa(port)
}
