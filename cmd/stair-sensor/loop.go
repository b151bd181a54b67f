package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/activity"
	"github.com/sweeney/stair-sensor/internal/emit"
	"github.com/sweeney/stair-sensor/internal/eventlog"
	"github.com/sweeney/stair-sensor/internal/gpio"
	"github.com/sweeney/stair-sensor/internal/logic"
	"github.com/sweeney/stair-sensor/internal/mqtt"
	"github.com/sweeney/stair-sensor/internal/sensor"
	"github.com/sweeney/stair-sensor/internal/status"
)

// activityTimeout bounds the wait for an outstanding recognizer result when
// a new request replaces it or the daemon shuts down.
const activityTimeout = 2 * time.Second

const entryTimeLayout = "2006-01-02 15:04:05"

// daemon wires sensor sources to a detection session. The runLoop state
// fields are only touched from runLoop's goroutine.
type daemon struct {
	accel        sensor.Source
	pressure     sensor.Source
	switchReader gpio.Reader // nil: one session runs for the daemon's lifetime
	publisher    mqtt.Publisher
	mqttStatus   mqtt.ConnectionStatus
	emitter      emit.Emitter
	events       *eventlog.Log
	tracker      *status.Tracker
	recognizer   activity.Recognizer // may be nil
	logger       *zap.Logger
	logicCfg     logic.Config
	heartbeat    time.Duration
	loc          *time.Location
	newID        func() string

	// runLoop state
	ctx        context.Context
	session    *logic.Session
	sessionID  string
	accelCh    <-chan sensor.Sample
	pressureCh <-chan sensor.Sample
	noticed    map[sensor.Kind]bool
	actResult  <-chan error
	actOp      string
	actAt      time.Time
}

// runLoop is the single consumer of both sample channels. Sessions are
// started and stopped from here only, so the Session needs no locking.
func (d *daemon) runLoop(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.ctx = ctx
	d.noticed = make(map[sensor.Kind]bool)

	if d.switchReader == nil {
		d.startSession(now())
	}

	for {
		select {
		case s := <-sig:
			d.logger.Info("shutting down", zap.Stringer("signal", s))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			t := now()
			if d.session != nil {
				d.stopSession(t)
			}
			d.awaitActivity()

			event := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			d.refreshConnection()
			event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName)
			if err := d.publisher.PublishSystem(event); err != nil {
				d.logger.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				d.logger.Info("published shutdown event")
			}
			return nil

		case s, ok := <-d.accelCh:
			if !ok {
				d.accelCh = nil
				continue
			}
			d.handleSample(s)

		case s, ok := <-d.pressureCh:
			if !ok {
				d.pressureCh = nil
				continue
			}
			d.handleSample(s)

		case err := <-d.actResult:
			d.activityDone(err)

		case <-tick:
			t := now()
			d.pollSwitch(t)

			if d.session != nil {
				if hb := d.session.CheckHeartbeat(t, d.heartbeat); hb != nil {
					d.publishHeartbeat(hb)
				}
				d.tracker.Update(status.StateOf(d.sessionID, d.session))
			}
			d.refreshConnection()
		}
	}
}

// handleSample dispatches one sample to the session handler for its kind.
func (d *daemon) handleSample(s sensor.Sample) {
	if d.session == nil {
		return
	}

	switch s.Kind {
	case sensor.KindAcceleration:
		if d.session.ProcessAcceleration(s.Accel) {
			d.logger.Debug("motion changed", zap.Bool("moving", d.session.Moving()))
		}
	case sensor.KindPressure:
		ev, ok := d.session.ProcessPressure(s.Pressure)
		if ok {
			d.logger.Info("stair transition",
				zap.Float64("reference_hpa", ev.Reference),
				zap.Float64("ewma_hpa", ev.EWMA),
				zap.Float64("delta_hpa", ev.Delta))
			if err := d.emitter.Emit(ev); err != nil {
				// Sinks log their own failures; keep running.
				d.logger.Debug("event partially delivered", zap.Error(err))
			}
		}
	default:
		d.logger.Warn("sample of unknown kind", zap.Stringer("kind", s.Kind))
		return
	}
	d.tracker.Update(status.StateOf(d.sessionID, d.session))
}

func (d *daemon) pollSwitch(t time.Time) {
	if d.switchReader == nil {
		return
	}
	on, err := d.switchReader.Read()
	if err != nil {
		d.logger.Warn("gpio read error", zap.Error(err))
		return
	}
	switch {
	case on && d.session == nil:
		d.startSession(t)
	case !on && d.session != nil:
		d.stopSession(t)
	}
}

// startSession creates fresh filter state and registers both sources.
func (d *daemon) startSession(t time.Time) {
	d.session = logic.NewSession(d.logicCfg, t)
	d.sessionID = d.newID()
	d.accelCh = d.startSource(d.accel, sensor.KindAcceleration, t)
	d.pressureCh = d.startSource(d.pressure, sensor.KindPressure, t)

	d.tracker.SetSensors(d.accelCh != nil, d.pressureCh != nil)
	d.tracker.Update(status.StateOf(d.sessionID, d.session))

	d.logger.Info("session started", zap.String("session", d.sessionID))
	d.publishSystem(mqtt.SystemEvent{Timestamp: t, Event: "SESSION_START", Session: d.sessionID, Retained: true})
	d.events.Add(eventlog.Entry{Time: t, Kind: eventlog.KindSystem, Text: "session started"})

	if d.recognizer != nil {
		d.requestActivity("started", t, d.recognizer.Register(d.ctx, d.onTransition))
	}
}

// stopSession deregisters both sources and discards the session.
func (d *daemon) stopSession(t time.Time) {
	d.stopSource(d.accel, sensor.KindAcceleration, d.accelCh != nil)
	d.stopSource(d.pressure, sensor.KindPressure, d.pressureCh != nil)
	d.accelCh = nil
	d.pressureCh = nil

	counts := d.session.EventCountsSnapshot()
	d.logger.Info("session stopped",
		zap.String("session", d.sessionID),
		zap.Int("stair_transitions", counts.StairTransitions),
		zap.Int("accel_samples", counts.AccelSamples),
		zap.Int("pressure_samples", counts.PressureSamples))
	d.publishSystem(mqtt.SystemEvent{Timestamp: t, Event: "SESSION_STOP", Session: d.sessionID, Retained: true})
	d.events.Add(eventlog.Entry{Time: t, Kind: eventlog.KindSystem, Text: "session stopped"})

	d.session = nil
	d.sessionID = ""
	d.tracker.Update(status.SessionState{})
	d.tracker.SetSensors(false, false)

	if d.recognizer != nil {
		d.requestActivity("stopped", t, d.recognizer.Unregister(d.ctx))
	}
}

// startSource returns the source's channel, or nil if it is unavailable.
// Unavailability is reported once per daemon lifetime.
func (d *daemon) startSource(src sensor.Source, kind sensor.Kind, t time.Time) <-chan sensor.Sample {
	ch, err := src.Start(d.ctx)
	if err == nil {
		return ch
	}
	if d.noticed[kind] {
		return nil
	}
	d.noticed[kind] = true
	d.logger.Warn("sensor unavailable, continuing without it", zap.Stringer("sensor", kind), zap.Error(err))
	d.publishSystem(mqtt.SystemEvent{Timestamp: t, Event: "SENSOR_UNAVAILABLE", Reason: kind.String()})
	d.events.Add(eventlog.Entry{Time: t, Kind: eventlog.KindSystem, Text: kind.String() + " sensor unavailable"})
	return nil
}

func (d *daemon) stopSource(src sensor.Source, kind sensor.Kind, started bool) {
	if !started {
		return
	}
	if err := src.Stop(); err != nil {
		d.logger.Warn("sensor stop failed", zap.Stringer("sensor", kind), zap.Error(err))
	}
}

// onTransition runs on the recognizer's delivery goroutine.
func (d *daemon) onTransition(tr activity.Transition) {
	d.events.Add(eventlog.Entry{Time: tr.Time, Kind: eventlog.KindActivity, Text: tr.String()})
}

// requestActivity records a pending recognizer request, settling any
// earlier one first so every result is reported.
func (d *daemon) requestActivity(op string, t time.Time, result <-chan error) {
	d.awaitActivity()
	d.actOp = op
	d.actAt = t
	d.actResult = result
}

func (d *daemon) awaitActivity() {
	if d.actResult == nil {
		return
	}
	select {
	case err := <-d.actResult:
		d.activityDone(err)
	case <-time.After(activityTimeout):
		d.logger.Warn("no result from activity recognizer", zap.String("op", d.actOp))
		d.actResult = nil
	}
}

func (d *daemon) activityDone(err error) {
	d.actResult = nil
	if err != nil {
		d.logger.Warn("activity detection request failed", zap.String("op", d.actOp), zap.Error(err))
		d.events.Add(eventlog.Entry{Time: d.actAt, Kind: eventlog.KindActivity, Text: err.Error()})
		return
	}
	text := fmt.Sprintf("activity detection %s %s", d.actOp, d.actAt.In(d.loc).Format(entryTimeLayout))
	d.events.Add(eventlog.Entry{Time: d.actAt, Kind: eventlog.KindActivity, Text: text})
}

func (d *daemon) publishHeartbeat(hb *logic.HeartbeatData) {
	d.logger.Info("heartbeat",
		zap.Duration("uptime", hb.Uptime),
		zap.Int("stair_transitions", hb.Counts.StairTransitions),
		zap.Int("accel_samples", hb.Counts.AccelSamples),
		zap.Int("pressure_samples", hb.Counts.PressureSamples))

	d.refreshConnection()
	// Refresh network info for heartbeat
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
	d.tracker.Update(status.StateOf(d.sessionID, d.session))

	snap := d.tracker.Snapshot()
	d.publishSystem(mqtt.SystemEvent{
		Timestamp:  hb.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	})
}

func (d *daemon) publishSystem(e mqtt.SystemEvent) {
	if err := d.publisher.PublishSystem(e); err != nil {
		d.logger.Warn("system event publish error", zap.String("event", e.Event), zap.Error(err))
	}
}

func (d *daemon) refreshConnection() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}
