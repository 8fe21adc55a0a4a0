package calibration

import (
	"errors"

	"rs41sim/internal/rs41"
)

// Calibrator applies one sonde's sensor models to frames.
type Calibrator struct {
	Ambient           Thermistor
	Heater            Thermistor
	Pressure          PressureSensor
	Humidity          HumiditySensor
	HasPressureSensor bool
}

// New builds a Calibrator from an assembled subframe table.
func New(t *rs41.SubframeTable) *Calibrator {
	return &Calibrator{
		Ambient:           AmbientThermistor(t),
		Heater:            HeaterThermistor(t),
		Pressure:          NewPressureSensor(t),
		Humidity:          NewHumiditySensor(t),
		HasPressureSensor: t.HasPressureSensor(),
	}
}

// Temperature reads the air temperature of f in degrees Celsius.
func (c *Calibrator) Temperature(f *rs41.Frame) (float64, error) {
	return c.Ambient.Temperature(f.Triple(rs41.MeasTemperature))
}

// SetTemperature replaces all three temperature counts of f.
func (c *Calibrator) SetTemperature(f *rs41.Frame, temp float64) error {
	counts, err := c.Ambient.Counts(temp)
	if err != nil {
		return err
	}
	f.SetTriple(rs41.MeasTemperature, counts)
	return nil
}

// SetMainTemperature rewrites the main temperature count of f, keeping its
// reference counts.
func (c *Calibrator) SetMainTemperature(f *rs41.Frame, temp float64) error {
	cur := f.Triple(rs41.MeasTemperature)
	main, err := c.Ambient.Main(temp, cur.Ref1, cur.Ref2)
	if err != nil {
		return err
	}
	f.SetMain(rs41.MeasTemperature, main)
	return nil
}

// HeaterTemperature reads the humidity sensor temperature of f.
func (c *Calibrator) HeaterTemperature(f *rs41.Frame) (float64, error) {
	return c.Heater.Temperature(f.Triple(rs41.MeasHeaterTemperature))
}

// SetHeaterTemperature replaces all three heater counts of f.
func (c *Calibrator) SetHeaterTemperature(f *rs41.Frame, temp float64) error {
	counts, err := c.Heater.Counts(temp)
	if err != nil {
		return err
	}
	f.SetTriple(rs41.MeasHeaterTemperature, counts)
	return nil
}

// SetMainHeaterTemperature rewrites the main heater count of f.
func (c *Calibrator) SetMainHeaterTemperature(f *rs41.Frame, temp float64) error {
	cur := f.Triple(rs41.MeasHeaterTemperature)
	main, err := c.Heater.Main(temp, cur.Ref1, cur.Ref2)
	if err != nil {
		return err
	}
	f.SetMain(rs41.MeasHeaterTemperature, main)
	return nil
}

// PressureValue reads the pressure of f in hPa.
func (c *Calibrator) PressureValue(f *rs41.Frame) (float64, error) {
	return c.Pressure.Pressure(f.Triple(rs41.MeasPressure), f.Float(rs41.MeasPressureSensorTmp))
}

// SetPressure writes default reference counts and the main count for p.
func (c *Calibrator) SetPressure(f *rs41.Frame, p float64) (Solution, error) {
	return c.setPressure(f, p, DefaultPressureCounts)
}

// SetMainPressure rewrites the main pressure count of f.
func (c *Calibrator) SetMainPressure(f *rs41.Frame, p float64) (Solution, error) {
	return c.setPressure(f, p, f.Triple(rs41.MeasPressure))
}

func (c *Calibrator) setPressure(f *rs41.Frame, p float64, start rs41.Triple) (Solution, error) {
	sol, err := c.Pressure.Main(p, start, f.Float(rs41.MeasPressureSensorTmp))
	if err != nil && !errors.Is(err, ErrNotConverged) {
		return sol, err
	}
	f.SetTriple(rs41.MeasPressure, rs41.Triple{Main: sol.Counts, Ref1: start.Ref1, Ref2: start.Ref2})
	return sol, err
}

// Conditions gathers the humidity model inputs from f. altitude is only
// used for sondes without a pressure sensor.
func (c *Calibrator) Conditions(f *rs41.Frame, altitude float64) (Conditions, error) {
	temp, err := c.Temperature(f)
	if err != nil {
		return Conditions{}, err
	}
	heater, err := c.HeaterTemperature(f)
	if err != nil {
		return Conditions{}, err
	}
	env := Conditions{
		HasPressureSensor: c.HasPressureSensor,
		Altitude:          altitude,
		Temperature:       temp,
		HeaterTemperature: heater,
	}
	if c.HasPressureSensor {
		if env.Pressure, err = c.PressureValue(f); err != nil {
			return Conditions{}, err
		}
	}
	return env, nil
}

// HumidityValue reads the relative humidity of f in percent.
func (c *Calibrator) HumidityValue(f *rs41.Frame, env Conditions) (float64, error) {
	return c.Humidity.Humidity(f.Triple(rs41.MeasHumidity), env)
}

// SetHumidity writes default reference counts and the main count for rh.
func (c *Calibrator) SetHumidity(f *rs41.Frame, rh float64, env Conditions) (Solution, error) {
	return c.setHumidity(f, rh, env, DefaultHumidityCounts)
}

// SetMainHumidity rewrites the main humidity count of f.
func (c *Calibrator) SetMainHumidity(f *rs41.Frame, rh float64, env Conditions) (Solution, error) {
	return c.setHumidity(f, rh, env, f.Triple(rs41.MeasHumidity))
}

func (c *Calibrator) setHumidity(f *rs41.Frame, rh float64, env Conditions, start rs41.Triple) (Solution, error) {
	sol, err := c.Humidity.Main(rh, start, env)
	if err != nil && !errors.Is(err, ErrNotConverged) {
		return sol, err
	}
	f.SetTriple(rs41.MeasHumidity, rs41.Triple{Main: sol.Counts, Ref1: start.Ref1, Ref2: start.Ref2})
	return sol, err
}
