package app

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"rs41sim/internal/calibration"
	"rs41sim/internal/gps"
	"rs41sim/internal/logfile"
	"rs41sim/internal/rs41"
)

// Report is the decoded content of one log record.
type Report struct {
	Log         string        `yaml:"log"`
	Index       int           `yaml:"index"`
	Model       string        `yaml:"model,omitempty"`
	ReedSolomon RSReport      `yaml:"reed_solomon"`
	Blocks      []BlockReport `yaml:"blocks"`
	Status      *StatusReport `yaml:"status,omitempty"`
	GPS         *GPSReport    `yaml:"gps,omitempty"`
	Meas        *MeasReport   `yaml:"meas,omitempty"`
}

// RSReport summarizes error correction.
type RSReport struct {
	Recovered bool `yaml:"recovered"`
	Corrected int  `yaml:"corrected"`
}

// BlockReport is the CRC state of one block.
type BlockReport struct {
	Name  string `yaml:"name"`
	CRCOK bool   `yaml:"crc_ok"`
}

// StatusReport holds decoded STATUS fields.
type StatusReport struct {
	FrameNumber    int     `yaml:"frame_number"`
	Serial         string  `yaml:"serial"`
	BatteryVoltage float64 `yaml:"battery_voltage"`
	FlightMode     bool    `yaml:"flight_mode"`
	Descent        bool    `yaml:"descent"`
	TxPower        int     `yaml:"tx_power"`
	Subframe       int     `yaml:"subframe"`
	LastSubframe   int     `yaml:"last_subframe"`
}

// GPSReport holds the decoded fix.
type GPSReport struct {
	Week       int       `yaml:"week,omitempty"`
	TimeOfWeek uint32    `yaml:"time_of_week_ms,omitempty"`
	UTC        time.Time `yaml:"utc,omitempty"`
	Latitude   float64   `yaml:"latitude,omitempty"`
	Longitude  float64   `yaml:"longitude,omitempty"`
	Altitude   float64   `yaml:"altitude,omitempty"`
	East       float64   `yaml:"velocity_east,omitempty"`
	North      float64   `yaml:"velocity_north,omitempty"`
	Up         float64   `yaml:"velocity_up,omitempty"`
	Satellites int       `yaml:"satellites"`
	PDOP       float64   `yaml:"pdop"`
	SAcc       float64   `yaml:"sacc"`
}

// MeasReport holds calibrated measurements. Values the subframe table
// cannot calibrate are left out.
type MeasReport struct {
	Temperature       *float64 `yaml:"temperature,omitempty"`
	HeaterTemperature *float64 `yaml:"heater_temperature,omitempty"`
	Pressure          *float64 `yaml:"pressure,omitempty"`
	Humidity          *float64 `yaml:"humidity,omitempty"`
}

// Inspect decodes record index of the log at path and writes it as YAML.
func Inspect(path string, index int, w io.Writer, logger *logrus.Logger) error {
	l, err := logfile.Open(path, logger)
	if err != nil {
		return err
	}
	table := rs41.NewSubframeTable()
	l.LoadSubframeData(table, DefaultSubframeEntries)

	f, err := l.Frame(index)
	if err != nil {
		return err
	}
	report := BuildReport(f, table)
	report.Log = l.Name
	report.Index = index

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// BuildReport error corrects f in place and decodes every block whose CRC
// holds. table supplies the calibration.
func BuildReport(f *rs41.Frame, table *rs41.SubframeTable) Report {
	res := rs41.DecodeReedSolomon(f)
	r := Report{
		Model:       table.Model(),
		ReedSolomon: RSReport{Recovered: res.Recovered(), Corrected: res.Corrected()},
	}
	for _, b := range rs41.Blocks {
		r.Blocks = append(r.Blocks, BlockReport{Name: b.Name, CRCOK: f.CheckCRC(b)})
	}

	if f.CheckCRC(rs41.BlockStatus) {
		s := rs41.ReadStatus(f)
		r.Status = &StatusReport{
			FrameNumber:    s.FrameNumber,
			Serial:         s.Serial,
			BatteryVoltage: s.BatteryVoltage,
			FlightMode:     s.FlightMode,
			Descent:        s.Descent,
			TxPower:        s.TxPower,
			Subframe:       s.Subframe,
			LastSubframe:   s.LastSubframe,
		}
	}

	altitude := 0.0
	if f.CheckCRC(rs41.BlockGPSInfo) || f.CheckCRC(rs41.BlockGPSPos) {
		r.GPS = &GPSReport{}
	}
	if f.CheckCRC(rs41.BlockGPSInfo) {
		info := rs41.ReadGPSInfo(f)
		r.GPS.Week = info.Week
		r.GPS.TimeOfWeek = info.TimeOfWeek
		r.GPS.UTC = gps.GPSToUTC(info.Week, info.TimeOfWeek, gps.LeapSeconds)
	}
	if f.CheckCRC(rs41.BlockGPSPos) {
		p := rs41.ReadGPSPos(f)
		pos := gps.ECEFToGeodetic(gps.ECEF{X: p.X, Y: p.Y, Z: p.Z})
		vel := gps.ECEFToENUVelocity(gps.ECEF{X: p.VX, Y: p.VY, Z: p.VZ}, pos)
		altitude = pos.Alt
		r.GPS.Latitude = round(pos.Lat, 6)
		r.GPS.Longitude = round(pos.Lon, 6)
		r.GPS.Altitude = round(pos.Alt, 2)
		r.GPS.East = round(vel.East, 2)
		r.GPS.North = round(vel.North, 2)
		r.GPS.Up = round(vel.Up, 2)
		r.GPS.Satellites = p.Satellites
		r.GPS.PDOP = p.PDOP
		r.GPS.SAcc = p.SAcc
	}

	if f.CheckCRC(rs41.BlockMeas) {
		r.Meas = measReport(f, calibration.New(table), altitude)
	}
	return r
}

func measReport(f *rs41.Frame, cal *calibration.Calibrator, altitude float64) *MeasReport {
	m := &MeasReport{}
	if v, err := cal.Temperature(f); err == nil {
		m.Temperature = ptr(round(v, 2))
	}
	if v, err := cal.HeaterTemperature(f); err == nil {
		m.HeaterTemperature = ptr(round(v, 2))
	}
	if cal.HasPressureSensor {
		if v, err := cal.PressureValue(f); err == nil {
			m.Pressure = ptr(round(v, 2))
		}
	}
	if env, err := cal.Conditions(f, altitude); err == nil {
		if v, err := cal.HumidityValue(f, env); err == nil {
			m.Humidity = ptr(round(v, 2))
		}
	}
	return m
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
