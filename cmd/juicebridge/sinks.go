package main

import (
	"context"
	"time"

	"juicebridge/internal/history"
	"juicebridge/internal/infrastructure/influxdb"
	"juicebridge/internal/infrastructure/logging"
)

const sinkWriteTimeout = 5 * time.Second

// historySink adapts history.Repository to the relay's fire-and-forget
// Sink interface: a recording failure is logged, never propagated.
type historySink struct {
	repo history.Repository
	log  *logging.Logger
}

func (s *historySink) RecordTelemetry(deviceSerial string, snapshot map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()
	if err := s.repo.Record(ctx, deviceSerial, snapshot, history.SourceDevice); err != nil {
		s.log.Warn("history: recording telemetry failed", "device", deviceSerial, "error", err)
	}
}

func (s *historySink) RecordCommand(deviceSerial string, instantAmperage, offlineAmperage, counter int) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()
	snapshot := map[string]any{
		"instant_amperage": instantAmperage,
		"offline_amperage": offlineAmperage,
		"counter":          counter,
	}
	if err := s.repo.Record(ctx, deviceSerial, snapshot, history.SourceSynth); err != nil {
		s.log.Warn("history: recording command failed", "device", deviceSerial, "error", err)
	}
}

// influxSink adapts influxdb.Client to the relay's Sink interface. Both
// Client methods are already fire-and-forget, so this is a thin rename.
type influxSink struct {
	client *influxdb.Client
}

func (s *influxSink) RecordTelemetry(deviceSerial string, snapshot map[string]any) {
	s.client.WriteTelemetry(deviceSerial, snapshot)
}

func (s *influxSink) RecordCommand(deviceSerial string, instantAmperage, offlineAmperage, counter int) {
	s.client.WriteCommand(deviceSerial, instantAmperage, offlineAmperage, counter)
}
