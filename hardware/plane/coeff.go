package plane

import "math"

// Overlay polyphase filter geometry. These are hardware contracts,
// register file has exactly this many coefficient slots.
const (
	NumPhases       = 17
	HorizLumaTaps   = 5
	HorizChromaTaps = 3
	VertLumaTaps    = 3
	VertChromaTaps  = 3

	horizMantissa = 7
	vertMantissa  = 6

	MinCutoff = 1.0
	MaxCutoff = 3.0

	// distance between samples of neighbour taps in oversampled filter
	phaseStride = 2 * (NumPhases - 1)
)

// Coeff is one filter tap in overlay fixed point format:
// sign bit 15, exponent bits 14:12, mantissa bits 11:0.
type Coeff struct {
	Sign     uint16
	Exponent uint16
	Mantissa uint16
}

func (c Coeff) Reg() uint16 { return c.Sign<<15 | c.Exponent<<12 | c.Mantissa }

// Value decodes fixed point back to float.
func (c Coeff) Value() float64 {
	v := float64(c.Mantissa) / 4096 * math.Pow(2, 1-float64(c.Exponent))
	if c.Sign != 0 {
		v = -v
	}
	return v
}

// setCoeff quantizes *v into mantSize bits, choosing largest exponent that fits,
// and replaces *v with quantized value. Returns false when out of range.
func setCoeff(v *float64, mantSize uint) (Coeff, bool) {
	maxVal := 1 << mantSize
	res := 12 - mantSize
	c := Coeff{}
	abs := *v
	if abs < 0 {
		c.Sign = 1
		abs = -abs
	}

	var quantized float64
	if icoeff := int(abs*4*float64(maxVal) + 0.5); icoeff < maxVal {
		c.Exponent = 3
		c.Mantissa = uint16(icoeff << res)
		quantized = float64(icoeff) / float64(4*maxVal)
	} else if icoeff := int(abs*2*float64(maxVal) + 0.5); icoeff < maxVal {
		c.Exponent = 2
		c.Mantissa = uint16(icoeff << res)
		quantized = float64(icoeff) / float64(2*maxVal)
	} else if icoeff := int(abs*float64(maxVal) + 0.5); icoeff < maxVal {
		c.Exponent = 1
		c.Mantissa = uint16(icoeff << res)
		quantized = float64(icoeff) / float64(maxVal)
	} else if icoeff := int(abs*float64(maxVal)*0.5 + 0.5); icoeff < maxVal {
		c.Exponent = 0
		c.Mantissa = uint16(icoeff << res)
		quantized = float64(icoeff) / float64(maxVal/2)
	} else {
		return Coeff{}, false
	}
	if c.Sign != 0 {
		quantized = -quantized
	}
	*v = quantized
	return c, true
}

// UpdateCoeff builds NumPhases*taps coefficients (phase major) of
// Hamming windowed sinc low pass filter for given cutoff.
// Centre tap gets 2 extra mantissa bits except for vertical chroma filter.
func UpdateCoeff(taps int, cutoff float64, horizontal, luma bool) []Coeff {
	cutoff = ClampCutoff(cutoff)
	mantSize := uint(vertMantissa)
	if horizontal {
		mantSize = horizMantissa
	}
	isVertAndUV := !horizontal && !luma

	num := taps * 16
	raw := make([]float64, num*2)
	for i := range raw {
		val := (1.0 / cutoff) * float64(taps) * math.Pi * float64(i-num) / float64(2*num)
		sinc := 1.0
		if val != 0 {
			sinc = math.Sin(val) / val
		}
		window := 0.54 - 0.46*math.Cos(float64(2*i)*math.Pi/float64(2*num-1))
		raw[i] = sinc * window
	}

	// fix-up order: centre tap first, then outward alternating sides
	tapAdjust := make([]int, taps)
	tapAdjust[0] = (taps - 1) / 2
	for j, j1 := 1, 1; j <= tapAdjust[0]; j, j1 = j+1, j1+2 {
		tapAdjust[j1] = tapAdjust[0] - j
		tapAdjust[j1+1] = tapAdjust[0] + j
	}

	mant := func(tap int) uint {
		if tap == (taps-1)/2 && !isVertAndUV {
			return mantSize + 2
		}
		return mantSize
	}

	out := make([]Coeff, NumPhases*taps)
	coeffs := make([]float64, taps)
	for i := 0; i < NumPhases; i++ {
		sum := 0.0
		for j := 0; j < taps; j++ {
			sum += raw[i+j*phaseStride]
		}
		for j := 0; j < taps; j++ {
			coeffs[j] = raw[i+j*phaseStride] / sum
		}
		for j := 0; j < taps; j++ {
			out[j+i*taps], _ = setCoeff(&coeffs[j], mant(j))
		}

		// quantization may break unity gain, push rounding error into taps
		sum = sumFloat(coeffs)
		if sum != 1.0 {
			for _, tap := range tapAdjust {
				coeffs[tap] += 1.0 - sum
				out[tap+i*taps], _ = setCoeff(&coeffs[tap], mant(tap))
				sum = sumFloat(coeffs)
				if sum == 1.0 {
					break
				}
			}
		}
	}
	return out
}

func ClampCutoff(c float64) float64 {
	if c < MinCutoff {
		return MinCutoff
	}
	if c > MaxCutoff {
		return MaxCutoff
	}
	return c
}

func sumFloat(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
