package sink

import (
	"encoding/binary"
	"math"
)

// DefaultSampleRate is the audio output rate in Hz.
const DefaultSampleRate = 44100

// Waveform turns a burst into baseband audio: MSB first bits held for
// sampleRate/baud samples each, mapped to -0.5/+0.5 and shaped by a second
// order Butterworth low pass with its cutoff at the bit rate.
func Waveform(burst []byte, sampleRate, baud int) []float64 {
	nbits := len(burst) * 8
	if nbits == 0 || sampleRate <= 0 || baud <= 0 {
		return nil
	}
	mult := float64(sampleRate) / float64(baud)
	n := int(math.Floor(float64(nbits) * mult))

	out := make([]float64, n)
	for i := range out {
		bit := int(math.RoundToEven(float64(i)/mult)) - 1
		bit = max(bit, 0)
		out[i] = float64(burst[bit/8]>>(7-bit%8)&1) - 0.5
	}

	b, a := butterworthLowPass(float64(baud) / (0.5 * float64(sampleRate)))
	return lfilter(b, a, out)
}

// butterworthLowPass designs a second order digital Butterworth low pass by
// the bilinear transform. wn is the cutoff as a fraction of Nyquist.
func butterworthLowPass(wn float64) (b, a [3]float64) {
	k := math.Tan(math.Pi * wn / 2)
	norm := 1 / (1 + math.Sqrt2*k + k*k)
	b[0] = k * k * norm
	b[1] = 2 * b[0]
	b[2] = b[0]
	a[0] = 1
	a[1] = 2 * (k*k - 1) * norm
	a[2] = (1 - math.Sqrt2*k + k*k) * norm
	return b, a
}

// lfilter applies the normalized biquad b/a to x, direct form II
// transposed, from rest.
func lfilter(b, a [3]float64, x []float64) []float64 {
	y := make([]float64, len(x))
	var z1, z2 float64
	for i, v := range x {
		out := b[0]*v + z1
		z1 = b[1]*v - a[1]*out + z2
		z2 = b[2]*v - a[2]*out
		y[i] = out
	}
	return y
}

// PCM16 scales samples by amplitude and encodes them as signed 16-bit little
// endian, clipping at full scale.
func PCM16(samples []float64, amplitude float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(s * amplitude * math.MaxInt16)
		v = min(max(v, math.MinInt16), math.MaxInt16)
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}
