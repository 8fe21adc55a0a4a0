package scheduler

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"rs41sim/internal/calibration"
	"rs41sim/internal/gps"
	"rs41sim/internal/logfile"
	"rs41sim/internal/metrics"
	"rs41sim/internal/rs41"
	"rs41sim/internal/sink"
)

// Spoofing defaults
const (
	DefaultJammingMessages  = 5
	DefaultFramesToTransmit = 30
)

// SpoofConfig configures the second stream.
type SpoofConfig struct {
	Criteria         logfile.Criteria
	JammingMessages  int
	FramesToTransmit int
	Provider         gps.Provider // nil replays the second log's observables
	LeapSeconds      int
}

// jamPayload alternates 16 bytes of 0x33 with 16 zero bytes. It is sent
// without whitening.
var jamPayload = func() []byte {
	p := make([]byte, rs41.FrameLength)
	for row := 0; row < rs41.FrameLength/16; row += 2 {
		for i := 0; i < 16; i++ {
			p[row*16+i] = 0x33
		}
	}
	return p
}()

// JamBurst returns the on-air jamming burst.
func JamBurst() []byte {
	return sink.Burst(jamPayload)
}

// meas is a set of physical MEAS values.
type meas struct {
	Temperature       float64
	HeaterTemperature float64
	Pressure          float64
	Humidity          float64
}

func (m meas) sub(o meas) meas {
	return meas{
		Temperature:       m.Temperature - o.Temperature,
		HeaterTemperature: m.HeaterTemperature - o.HeaterTemperature,
		Pressure:          m.Pressure - o.Pressure,
		Humidity:          m.Humidity - o.Humidity,
	}
}

func (m meas) add(o meas) meas {
	return meas{
		Temperature:       m.Temperature + o.Temperature,
		HeaterTemperature: m.HeaterTemperature + o.HeaterTemperature,
		Pressure:          m.Pressure + o.Pressure,
		Humidity:          m.Humidity + o.Humidity,
	}
}

func measure(cal *calibration.Calibrator, f *rs41.Frame, altitude float64) (meas, error) {
	env, err := cal.Conditions(f, altitude)
	if err != nil {
		return meas{}, err
	}
	rh, err := cal.HumidityValue(f, env)
	if err != nil {
		return meas{}, err
	}
	return meas{
		Temperature:       env.Temperature,
		HeaterTemperature: env.HeaterTemperature,
		Pressure:          env.Pressure,
		Humidity:          rh,
	}, nil
}

func position(p rs41.GPSPos) gps.ECEF {
	return gps.ECEF{X: p.X, Y: p.Y, Z: p.Z}
}

// spoofer drives the second stream: it watches the primary stream for the
// trigger, then jams, transmits synthetic frames continuing the primary
// flight with the motion of the second log, and jams again.
type spoofer struct {
	cfg      SpoofConfig
	primary  *stream
	stream   *stream
	provider gps.Provider
	replay   *gps.ReplayProvider
	metrics  *metrics.Scheduler
	logger   *logrus.Logger

	state    State
	used     bool
	jamCount int

	tx           *rs41.Frame
	captured     bool
	refFrame     int
	frameNumber  int
	subframe     int
	lastSubframe int
	week         int
	ms           uint32
	sAcc         float64
	txRef        gps.ECEF
	srcRef       gps.ECEF

	cal1, cal2 *calibration.Calibrator
	txMeas     meas
	srcMeas    meas
	measOK     bool
}

func newSpoofer(cfg SpoofConfig, primary, secondary *stream, m *metrics.Scheduler, logger *logrus.Logger) *spoofer {
	if cfg.JammingMessages <= 0 {
		cfg.JammingMessages = DefaultJammingMessages
	}
	if cfg.FramesToTransmit <= 0 {
		cfg.FramesToTransmit = DefaultFramesToTransmit
	}
	sp := &spoofer{
		cfg:      cfg,
		primary:  primary,
		stream:   secondary,
		provider: cfg.Provider,
		metrics:  m,
		logger:   logger,
	}
	if sp.provider == nil {
		sp.replay = gps.NewReplayProvider()
		sp.provider = sp.replay
	}
	return sp
}

func (sp *spoofer) setState(s State) {
	if s == sp.state {
		return
	}
	sp.logger.WithFields(logrus.Fields{
		"from":         sp.state.String(),
		"to":           s.String(),
		"frame_number": sp.frameNumber,
	}).Info("Spoofing state changed")
	sp.state = s
	sp.metrics.SpoofState.Set(float64(s))
}

// observe checks a freshly prepared primary frame against the trigger
// criteria. The trigger fires at most once per run.
func (sp *spoofer) observe(f *rs41.Frame, res rs41.RSResult) {
	if sp.state != Idle || sp.used || !res.Recovered() {
		return
	}
	if !sp.cfg.Criteria.Match(f) {
		return
	}
	sp.tx = f.Clone()
	sp.used = true
	sp.jamCount = 0
	sp.logger.WithFields(logrus.Fields{
		"criteria":     sp.cfg.Criteria.String(),
		"frame_number": f.FrameNumber(),
	}).Info("Spoofing criteria met")
	sp.setState(Jamming)
}

// prepare runs one second stream cycle.
func (sp *spoofer) prepare(now time.Time) {
	st := sp.stream
	logIndex := st.index
	res := st.load()
	if !res.Recovered() {
		sp.metrics.RSFailures.WithLabelValues(st.label).Inc()
	}
	sp.metrics.FramesPrepared.WithLabelValues(st.label).Inc()

	if !sp.captured {
		sp.capture(st.frame)
	} else if res.Recovered() {
		sp.synthesize(st.frame)
	}
	st.schedule(now, 0)
	sp.tickBurstKill()

	p := Prepared{
		Stream:    2,
		At:        now,
		TxTime:    st.txAt,
		LogIndex:  logIndex,
		Recovered: res.Recovered(),
		StatusOK:  st.frame.CheckCRC(rs41.BlockStatus),
	}
	p.Jam, p.Skip = sp.advance(res.Recovered(), st.frame.FrameNumber())
	if p.Skip > 0 {
		sp.metrics.SkippedSeconds.WithLabelValues(st.label).Add(float64(p.Skip))
	}
	p.State = sp.state
	p.FrameNumber = sp.frameNumber
	p.Subframe = sp.subframe
	if p.Jam {
		sp.metrics.JamBursts.Inc()
		p.Burst = JamBurst()
	} else {
		p.Burst = whitenedBurst(sp.tx)
	}
	st.stage(p)

	sp.logger.WithFields(logrus.Fields{
		"stream":       2,
		"state":        p.State.String(),
		"frame_number": p.FrameNumber,
		"jam":          p.Jam,
		"skip":         p.Skip,
		"tx_time":      p.TxTime.Format("15:04:05"),
	}).Debug("Frame prepared")
}

// advance steps the jam/transmit machine and reports whether this cycle
// jams and how many source seconds were found missing.
func (sp *spoofer) advance(recovered bool, sourceFrame int) (jam bool, skip int) {
	st := sp.stream
	switch sp.state {
	case Jamming:
		sp.jamCount++
		switch sp.jamCount {
		case sp.cfg.JammingMessages:
			sp.setState(Transmitting)
		case 2 * sp.cfg.JammingMessages:
			sp.setState(Idle)
		}
		return true, 0

	case Transmitting:
		switch {
		case sp.frameNumber > sp.refFrame+sp.cfg.FramesToTransmit:
			sp.jamCount++
			if sp.jamCount == 2*sp.cfg.JammingMessages {
				sp.setState(Idle)
			} else {
				sp.setState(Jamming)
			}
			return true, 0
		case !recovered:
			return true, 0
		case st.prev > -1 && sourceFrame-st.prev > 1:
			// hold the source position and cover the missing second
			skip = sourceFrame - st.prev - 1
			st.prev++
			st.index--
			return true, skip
		default:
			st.prev = sourceFrame
			return false, 0
		}
	}
	return true, 0
}

// tickBurstKill counts the burst kill timer of the primary table down.
func (sp *spoofer) tickBurstKill() {
	t := sp.primary.table
	if v := t.Int(rs41.SFBurstKillTimeUntilKill); v > -1 {
		t.SetInt(rs41.SFBurstKillTimeUntilKill, v-1)
	}
}

// capture records the references the synthetic frames are offset from.
func (sp *spoofer) capture(src *rs41.Frame) {
	sp.captured = true
	tx := sp.tx
	table := sp.primary.table

	sp.frameNumber = tx.FrameNumber()
	sp.refFrame = sp.frameNumber
	sp.subframe = tx.Subframe()
	sp.lastSubframe = tx.LastSubframe()
	if v := table.Int(rs41.SFBurstKillTimeUntilKill); sp.subframe < rs41.SubframeEntries-1 && v > -1 {
		table.SetInt(rs41.SFBurstKillTimeUntilKill, v-int64(sp.subframe)-1)
	}

	info := rs41.ReadGPSInfo(tx)
	sp.week, sp.ms = info.Week, info.TimeOfWeek
	pos := rs41.ReadGPSPos(tx)
	sp.txRef = position(pos)
	sp.sAcc = pos.SAcc
	sp.srcRef = position(rs41.ReadGPSPos(src))

	sp.cal1 = calibration.New(table)
	sp.cal2 = calibration.New(sp.stream.table)
	sp.cal2.HasPressureSensor = sp.cal1.HasPressureSensor

	var err1, err2 error
	sp.txMeas, err1 = measure(sp.cal1, tx, gps.ECEFToGeodetic(sp.txRef).Alt)
	sp.srcMeas, err2 = measure(sp.cal2, src, gps.ECEFToGeodetic(sp.srcRef).Alt)
	sp.measOK = err1 == nil && err2 == nil
	if !sp.measOK {
		sp.logger.WithError(errors.Join(err1, err2)).Warn("Measurement references unavailable, MEAS block will not be altered")
	}

	sp.logger.WithFields(logrus.Fields{
		"frame_number": sp.frameNumber,
		"subframe":     sp.subframe,
		"gps_week":     sp.week,
		"model":        table.Model(),
		"temperature":  sp.txMeas.Temperature,
		"humidity":     sp.txMeas.Humidity,
	}).Info("Spoofing references captured")
}

// synthesize advances the synthetic frame by one second using the motion
// and measurements of the source frame.
func (sp *spoofer) synthesize(src *rs41.Frame) {
	tx := sp.tx

	sp.frameNumber++
	tx.SetFrameNumber(sp.frameNumber)
	if sp.subframe >= sp.lastSubframe {
		sp.subframe = 0
	} else {
		sp.subframe++
	}
	tx.SetSubframe(sp.subframe)
	sp.primary.table.Apply(sp.subframe, tx)

	sp.week, sp.ms = gps.Advance(sp.week, sp.ms)
	utc := gps.GPSToUTC(sp.week, sp.ms, sp.cfg.LeapSeconds)

	srcPos := rs41.ReadGPSPos(src)
	srcGeo := gps.ECEFToGeodetic(position(srcPos))
	vel := gps.ECEFToENUVelocity(gps.ECEF{X: srcPos.VX, Y: srcPos.VY, Z: srcPos.VZ}, srcGeo)
	txGeo := gps.ECEFToGeodetic(position(srcPos).Sub(sp.srcRef).Add(sp.txRef))

	sp.updateGPS(src, utc, txGeo, vel)
	if sp.measOK {
		sp.updateMeas(src, srcGeo.Alt, txGeo.Alt)
	}

	tx.SetCRC(rs41.BlockStatus)
	tx.SetCRC(rs41.BlockMeas)
	rs41.EncodeReedSolomon(tx)
}

func (sp *spoofer) updateGPS(src *rs41.Frame, utc time.Time, pos gps.Geodetic, vel gps.ENU) {
	tx := sp.tx
	if sp.replay != nil {
		sp.replay.Update(src)
	}

	obs, err := sp.provider.Observe(utc, pos, vel)
	if err == nil {
		fix, perr := gps.Pack(obs, pos, vel)
		if perr != nil {
			sp.logger.WithError(perr).Debug("PDOP unavailable")
		}
		fix.Pos.SAcc = sp.sAcc
		rs41.BuildGPSInfo(tx, rs41.GPSInfo{Week: sp.week, TimeOfWeek: sp.ms, Satellites: fix.Satellites})
		rs41.BuildGPSRaw(tx, fix.Raw)
		rs41.BuildGPSPos(tx, fix.Pos)
		return
	}

	// keep the last satellites, move time and position
	sp.logger.WithError(err).Debug("No GPS observables, keeping previous satellites")
	info := rs41.ReadGPSInfo(tx)
	info.Week, info.TimeOfWeek = sp.week, sp.ms
	rs41.BuildGPSInfo(tx, info)
	p := rs41.ReadGPSPos(tx)
	e := gps.GeodeticToECEF(pos)
	v := gps.ENUToECEFVelocity(vel, pos)
	p.X, p.Y, p.Z = e.X, e.Y, e.Z
	p.VX, p.VY, p.VZ = v.X, v.Y, v.Z
	rs41.BuildGPSPos(tx, p)
}

func (sp *spoofer) updateMeas(src *rs41.Frame, srcAlt, txAlt float64) {
	cur, err := measure(sp.cal2, src, srcAlt)
	if err != nil {
		sp.logger.WithError(err).Debug("Source measurement unavailable")
		return
	}
	target := sp.txMeas.add(cur.sub(sp.srcMeas))
	tx := sp.tx
	cal := sp.cal1

	if err := cal.SetMainTemperature(tx, target.Temperature); err != nil {
		sp.logger.WithError(err).Debug("Temperature not written")
	}
	if err := cal.SetMainHeaterTemperature(tx, target.HeaterTemperature); err != nil {
		sp.logger.WithError(err).Debug("Heater temperature not written")
	}
	if cal.HasPressureSensor {
		if _, err := cal.SetMainPressure(tx, target.Pressure); err != nil {
			sp.logger.WithError(err).Debug("Pressure solver")
		}
	}
	env := calibration.Conditions{
		Pressure:          target.Pressure,
		HasPressureSensor: cal.HasPressureSensor,
		Altitude:          txAlt,
		Temperature:       target.Temperature,
		HeaterTemperature: target.HeaterTemperature,
	}
	if _, err := cal.SetMainHumidity(tx, target.Humidity, env); err != nil {
		sp.logger.WithError(err).Debug("Humidity solver")
	}
}
