package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"juicebridge/internal/audit"
	"juicebridge/internal/entities"
	"juicebridge/internal/history"
	"juicebridge/internal/infrastructure/config"
	"juicebridge/internal/infrastructure/database"
	"juicebridge/internal/infrastructure/influxdb"
	"juicebridge/internal/infrastructure/logging"
	"juicebridge/internal/infrastructure/mqtt"
	"juicebridge/internal/relay"
	"juicebridge/internal/store"
	"juicebridge/internal/supervisor"
	"juicebridge/internal/updater"
)

const defaultConfigFile = "./config.yaml"

// runFlags holds every CLI flag named in the external-interfaces spec,
// each also bindable via YAML (config.Config) or JUICEBRIDGE_* env vars.
// Flags take precedence: a flag is only applied if the user actually set
// it (cmd.Flags().Changed), so an unset flag never clobbers a YAML or
// env value.
var runFlags struct {
	configFile          string
	juiceboxHost        string
	updateUDPC          bool
	jppHost             string
	mqttHost            string
	mqttPort            int
	mqttUser            string
	mqttPassword        string
	mqttDiscoveryPrefix string
	localIP             string
	localPort           int
	enelxIP             string
	telnetPort          int
	telnetTimeout       int
	juiceboxID          string
	name                string
	ignoreEnelx         bool
	experimental        bool
	debug               bool
	configLoc           string
	logLoc              string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge for one JuiceBox device",
	Long: `run starts the entity adapter, destination updater, and MITM relay
for a single JuiceBox device and blocks until a shutdown signal arrives.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.configFile, "config-file", defaultConfigFile, "YAML config file (optional; flags/env fill in what it omits)")
	f.StringVar(&runFlags.juiceboxHost, "juicebox-host", "", "admin-channel target (required if --update-udpc is set or --enelx-ip is unset)")
	f.BoolVar(&runFlags.updateUDPC, "update-udpc", false, "enable the destination updater")
	f.StringVar(&runFlags.jppHost, "jpp-host", "", "externally-visible bridge host when behind NAT")
	f.StringVar(&runFlags.mqttHost, "mqtt-host", "", "MQTT broker host")
	f.IntVar(&runFlags.mqttPort, "mqtt-port", 0, "MQTT broker port")
	f.StringVar(&runFlags.mqttUser, "mqtt-user", "", "MQTT username")
	f.StringVar(&runFlags.mqttPassword, "mqtt-password", "", "MQTT password")
	f.StringVar(&runFlags.mqttDiscoveryPrefix, "mqtt-discovery-prefix", "", "Home Assistant discovery topic prefix")
	f.StringVar(&runFlags.localIP, "local-ip", "", "relay UDP bind address")
	f.IntVar(&runFlags.localPort, "local-port", 0, "relay UDP bind port")
	f.StringVar(&runFlags.enelxIP, "enelx-ip", "", "vendor cloud endpoint, host:port")
	f.IntVar(&runFlags.telnetPort, "telnet-port", 0, "admin channel port (default 2000)")
	f.IntVar(&runFlags.telnetTimeout, "telnet-timeout", 0, "admin channel timeout, seconds (default 30; stored in the config only, the destination updater uses a fixed 10s admin timeout)")
	f.StringVar(&runFlags.juiceboxID, "juicebox-id", "", "device serial")
	f.StringVar(&runFlags.name, "name", "", "device display name (stored in the config only; entities are named from the device serial)")
	f.BoolVar(&runFlags.ignoreEnelx, "ignore-enelx", false, "drop cloud forwarding and synthesize commands locally")
	f.BoolVar(&runFlags.experimental, "experimental", false, "experimental mode (stored in the config only; the raw-echo and raw-send diagnostic entities are always published)")
	f.BoolVar(&runFlags.debug, "debug", false, "enable debug logging")
	f.StringVar(&runFlags.configLoc, "config-loc", "", "directory holding the persisted key/value store")
	f.StringVar(&runFlags.logLoc, "log-loc", "", "log output file path (default: stdout)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(runFlags.configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlagOverrides(cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("juicebridge starting", "version", version, "device", cfg.Bridge.JuiceboxID)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // best-effort close on shutdown

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	storePath := filepath.Join(cfg.Bridge.ConfigLoc, "juicepassproxy.save")
	st, err := store.Load(storePath)
	if err != nil {
		return fmt.Errorf("loading persisted store: %w", err)
	}
	seedPersistedState(st, cfg, log)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	defer mqttClient.Close() //nolint:errcheck // best-effort close on shutdown

	historyRepo := history.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	sinks := []relay.Sink{&historySink{repo: historyRepo, log: log}}
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer influxClient.Close() //nolint:errcheck // best-effort close on shutdown
		sinks = append(sinks, &influxSink{client: influxClient})
	}

	entityAdapter := entities.New(entities.Config{
		Serial:          cfg.Bridge.JuiceboxID,
		Version:         version,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		QoS:             byte(cfg.MQTT.QoS),
	}, mqttClient, st, log)

	var cloudAddr *net.UDPAddr
	if cfg.Bridge.EnelXIP != "" {
		cloudAddr, err = net.ResolveUDPAddr("udp", cfg.Bridge.EnelXIP)
		if err != nil {
			return fmt.Errorf("resolving --enelx-ip %q: %w", cfg.Bridge.EnelXIP, err)
		}
	}

	rel := relay.New(relay.Config{
		ListenHost:  cfg.Bridge.LocalIP,
		ListenPort:  cfg.Bridge.LocalPort,
		CloudAddr:   cloudAddr,
		IgnoreCloud: cfg.Bridge.IgnoreEnelx,
	}, entityAdapter, log, sinks...)

	entityAdapter.SetCallbacks(rel.RequestCommand, rel.Inject)

	components := []supervisor.Component{
		{Name: "entities", Run: entityAdapter.Run},
		{Name: "relay", Run: rel.Run},
	}

	if cfg.Bridge.UpdateUDPC {
		upd := updater.New(updater.Config{
			DeviceSerial: cfg.Bridge.JuiceboxID,
			JuiceboxHost: cfg.Bridge.JuiceboxHost,
			AdminPort:    cfg.Bridge.TelnetPort,
			BridgeHost:   cfg.Bridge.JPPHost,
			BridgePort:   cfg.Bridge.LocalPort,
		}, log, auditRepo)
		components = append(components, supervisor.Component{Name: "updater", Run: upd.Run})
	}

	sup := supervisor.New(supervisor.Config{}, log, components...)

	err = sup.Run(ctx)
	log.Info("juicebridge stopped", "error", err)
	return err
}

// loadConfig reads path if it exists, otherwise starts from defaults
// plus environment overrides — the config file is an ambient
// convenience, not a requirement, since every field it can carry also
// has a CLI flag or a sensible default.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return config.Load(path)
}

// applyFlagOverrides copies every explicitly-set flag onto cfg. Flags
// the user never passed are left alone so the YAML/env/default value
// underneath is preserved.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) {
	changed := flags.Changed

	if changed("juicebox-host") {
		cfg.Bridge.JuiceboxHost = runFlags.juiceboxHost
	}
	if changed("update-udpc") {
		cfg.Bridge.UpdateUDPC = runFlags.updateUDPC
	}
	if changed("jpp-host") {
		cfg.Bridge.JPPHost = runFlags.jppHost
	}
	if changed("mqtt-host") {
		cfg.MQTT.Broker.Host = runFlags.mqttHost
	}
	if changed("mqtt-port") {
		cfg.MQTT.Broker.Port = runFlags.mqttPort
	}
	if changed("mqtt-user") {
		cfg.MQTT.Auth.Username = runFlags.mqttUser
	}
	if changed("mqtt-password") {
		cfg.MQTT.Auth.Password = runFlags.mqttPassword
	}
	if changed("mqtt-discovery-prefix") {
		cfg.MQTT.DiscoveryPrefix = runFlags.mqttDiscoveryPrefix
	}
	if changed("local-ip") {
		cfg.Bridge.LocalIP = runFlags.localIP
	}
	if changed("local-port") {
		cfg.Bridge.LocalPort = runFlags.localPort
	}
	if changed("enelx-ip") {
		cfg.Bridge.EnelXIP = runFlags.enelxIP
	}
	if changed("telnet-port") {
		cfg.Bridge.TelnetPort = runFlags.telnetPort
	}
	if changed("telnet-timeout") {
		cfg.Bridge.TelnetTimeout = runFlags.telnetTimeout
	}
	if changed("juicebox-id") {
		cfg.Bridge.JuiceboxID = runFlags.juiceboxID
	}
	if changed("name") {
		cfg.Bridge.Name = runFlags.name
	}
	if changed("ignore-enelx") {
		cfg.Bridge.IgnoreEnelx = runFlags.ignoreEnelx
	}
	if changed("experimental") {
		cfg.Bridge.Experimental = runFlags.experimental
	}
	if changed("config-loc") {
		cfg.Bridge.ConfigLoc = runFlags.configLoc
	}
	if changed("debug") && runFlags.debug {
		cfg.Logging.Level = "debug"
	}
	if changed("log-loc") {
		cfg.Logging.Output = "file"
		cfg.Logging.File.Path = runFlags.logLoc
	}
}

// seedPersistedState writes the bridge's top-level persisted keys so a
// fresh store matches what the CLI was given on this run even before
// any device telemetry arrives.
func seedPersistedState(st *store.Store, cfg *config.Config, log *logging.Logger) {
	st.Set("JUICEBOX_ID", cfg.Bridge.JuiceboxID)
	st.Set("LOCAL_IP", cfg.Bridge.LocalIP)
	if cfg.Bridge.EnelXIP != "" {
		host, port, err := net.SplitHostPort(cfg.Bridge.EnelXIP)
		if err == nil {
			st.Set("ENELX_SERVER", host)
			st.Set("ENELX_PORT", port)
		}
		st.Set("ENELX_IP", cfg.Bridge.EnelXIP)
	}
	if err := st.FlushIfDirty(); err != nil {
		log.Warn("store: flushing persisted state failed", "error", err)
	}
}
