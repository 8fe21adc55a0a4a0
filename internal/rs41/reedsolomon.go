package rs41

import "errors"

// Reed-Solomon layout: each frame carries two interleaved codewords of
// 132 data symbols and 24 parity symbols over GF(2^8), primitive polynomial
// 0x11D, generator 2, first consecutive root 0.
const (
	rsDataSymbols   = 132
	rsParitySymbols = 24
	rsCodewordLen   = rsDataSymbols + rsParitySymbols
	rsMaxErrors     = rsParitySymbols / 2
	rsPrimitivePoly = 0x11D
)

// ErrUncorrectable is recorded in a StreamResult when a codeword has more
// errors than the parity can locate.
var ErrUncorrectable = errors.New("rs41: reed-solomon codeword uncorrectable")

var (
	gfExp [512]byte
	gfLog [256]int

	rsGenerator []byte
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = i
		x <<= 1
		if x&0x100 != 0 {
			x ^= rsPrimitivePoly
		}
	}
	for i := 255; i < len(gfExp); i++ {
		gfExp[i] = gfExp[i-255]
	}

	// g(x) = (x - a^0)(x - a^1)...(x - a^23), highest degree first
	rsGenerator = []byte{1}
	for i := 0; i < rsParitySymbols; i++ {
		next := make([]byte, len(rsGenerator)+1)
		for j, c := range rsGenerator {
			next[j] ^= c
			next[j+1] ^= gfMul(c, gfExp[i])
		}
		rsGenerator = next
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[gfLog[a]+gfLog[b]]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return gfExp[(gfLog[a]+255-gfLog[b])%255]
}

func gfPow(i int) byte {
	i %= 255
	if i < 0 {
		i += 255
	}
	return gfExp[i]
}

// StreamResult reports the outcome for one interleaved codeword.
type StreamResult struct {
	Recovered bool
	Corrected int
	Err       error
}

// RSResult reports the outcome of DecodeReedSolomon for both codewords.
type RSResult struct {
	Streams [2]StreamResult
}

// Recovered reports whether both codewords decoded.
func (r RSResult) Recovered() bool {
	return r.Streams[0].Recovered && r.Streams[1].Recovered
}

// Corrected returns the total number of repaired symbols.
func (r RSResult) Corrected() int {
	return r.Streams[0].Corrected + r.Streams[1].Corrected
}

// Codeword symbol i of stream s (0 or 1) maps to frame offset
// 0x13E+s-2i for data and 0x01F+0x18*s-p for parity p.
func dataOffset(stream, i int) int {
	return 0x13E + stream - 2*i
}

func parityOffset(stream, p int) int {
	return 0x01F + rsParitySymbols*stream - p
}

func (f *Frame) codeword(stream int) []byte {
	cw := make([]byte, rsCodewordLen)
	for i := 0; i < rsDataSymbols; i++ {
		cw[i] = f[dataOffset(stream, i)]
	}
	for p := 0; p < rsParitySymbols; p++ {
		cw[rsDataSymbols+p] = f[parityOffset(stream, p)]
	}
	return cw
}

func (f *Frame) putCodeword(stream int, cw []byte) {
	for i := 0; i < rsDataSymbols; i++ {
		f[dataOffset(stream, i)] = cw[i]
	}
	for p := 0; p < rsParitySymbols; p++ {
		f[parityOffset(stream, p)] = cw[rsDataSymbols+p]
	}
}

// EncodeReedSolomon recomputes both parity groups of the frame.
func EncodeReedSolomon(f *Frame) {
	for s := 0; s < 2; s++ {
		cw := f.codeword(s)
		rsEncode(cw)
		f.putCodeword(s, cw)
	}
}

// DecodeReedSolomon corrects each codeword in place. A codeword is written
// back only if it decoded; the other is left untouched.
func DecodeReedSolomon(f *Frame) RSResult {
	var res RSResult
	for s := 0; s < 2; s++ {
		cw := f.codeword(s)
		n, err := rsCorrect(cw)
		if err != nil {
			res.Streams[s] = StreamResult{Err: err}
			continue
		}
		f.putCodeword(s, cw)
		res.Streams[s] = StreamResult{Recovered: true, Corrected: n}
	}
	return res
}

// rsEncode fills the parity tail of cw from its data head.
func rsEncode(cw []byte) {
	work := make([]byte, rsCodewordLen)
	copy(work, cw[:rsDataSymbols])
	for i := 0; i < rsDataSymbols; i++ {
		coef := work[i]
		if coef == 0 {
			continue
		}
		for j := 1; j < len(rsGenerator); j++ {
			work[i+j] ^= gfMul(rsGenerator[j], coef)
		}
	}
	copy(cw[rsDataSymbols:], work[rsDataSymbols:])
}

func rsSyndromes(cw []byte) ([]byte, bool) {
	synd := make([]byte, rsParitySymbols)
	clean := true
	for i := range synd {
		root := gfPow(i)
		var y byte
		for _, c := range cw {
			y = gfMul(y, root) ^ c
		}
		synd[i] = y
		if y != 0 {
			clean = false
		}
	}
	return synd, clean
}

// rsCorrect repairs cw in place and returns the number of corrected symbols.
func rsCorrect(cw []byte) (int, error) {
	synd, clean := rsSyndromes(cw)
	if clean {
		return 0, nil
	}

	// Berlekamp-Massey, locator lowest degree first
	locator := []byte{1}
	prev := []byte{1}
	degree, shift := 0, 1
	var lastDisc byte = 1
	for n := 0; n < rsParitySymbols; n++ {
		d := synd[n]
		for i := 1; i <= degree && i < len(locator); i++ {
			d ^= gfMul(locator[i], synd[n-i])
		}
		if d == 0 {
			shift++
			continue
		}
		coef := gfDiv(d, lastDisc)
		next := make([]byte, max(len(locator), len(prev)+shift))
		copy(next, locator)
		for i, c := range prev {
			next[i+shift] ^= gfMul(coef, c)
		}
		if 2*degree <= n {
			prev = locator
			degree = n + 1 - degree
			lastDisc = d
			shift = 1
		} else {
			shift++
		}
		locator = next
	}
	if degree > rsMaxErrors {
		return 0, ErrUncorrectable
	}

	// Chien search over the shortened codeword
	var positions []int
	for j := 0; j < rsCodewordLen; j++ {
		if polyEval(locator, gfPow(-j)) == 0 {
			positions = append(positions, j)
		}
	}
	if len(positions) != degree {
		return 0, ErrUncorrectable
	}

	// Forney
	omega := make([]byte, rsParitySymbols)
	for i, s := range synd {
		for j, l := range locator {
			if i+j < rsParitySymbols {
				omega[i+j] ^= gfMul(s, l)
			}
		}
	}
	deriv := make([]byte, len(locator))
	for i := 1; i < len(locator); i += 2 {
		deriv[i-1] = locator[i]
	}
	for _, j := range positions {
		xinv := gfPow(-j)
		den := polyEval(deriv, xinv)
		if den == 0 {
			return 0, ErrUncorrectable
		}
		mag := gfMul(gfPow(j), gfDiv(polyEval(omega, xinv), den))
		cw[rsCodewordLen-1-j] ^= mag
	}

	if _, ok := rsSyndromes(cw); !ok {
		return 0, ErrUncorrectable
	}
	return len(positions), nil
}

// polyEval evaluates a lowest-degree-first polynomial at x.
func polyEval(p []byte, x byte) byte {
	var y byte
	for i := len(p) - 1; i >= 0; i-- {
		y = gfMul(y, x) ^ p[i]
	}
	return y
}
