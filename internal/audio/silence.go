package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	formatPCM   = 1
	formatFloat = 3
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

type wavInfo struct {
	format        uint16
	bitsPerSample uint16
	data          []byte
}

// IsSilentWAV reports whether a WAV payload stays below thresholdDBFS. The
// peak may exceed the threshold by 6 dB to tolerate clicks.
func IsSilentWAV(payload []byte, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := AnalyzeWAV(payload)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	if metrics.Samples == 0 || (math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1)) {
		return true, metrics, nil
	}

	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= thresholdDBFS+6, metrics, nil
}

// AnalyzeWAV measures RMS and peak level across every sample of every channel.
func AnalyzeWAV(payload []byte) (SilenceMetrics, error) {
	info, err := parseWAV(payload)
	if err != nil {
		return SilenceMetrics{}, err
	}

	width := int(info.bitsPerSample / 8)
	var (
		peak       float64
		sumSquares float64
		samples    int64
	)
	for off := 0; off+width <= len(info.data); off += width {
		v := decodeSample(info.data[off:off+width], info.format, info.bitsPerSample)
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sumSquares += v * v
		samples++
	}

	if samples == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}, nil
	}

	return SilenceMetrics{
		RMSdBFS:  toDBFS(math.Sqrt(sumSquares / float64(samples))),
		PeakdBFS: toDBFS(peak),
		Samples:  samples,
	}, nil
}

func parseWAV(payload []byte) (wavInfo, error) {
	if len(payload) < 12 || string(payload[:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return wavInfo{}, ErrInvalidWAV
	}

	var (
		info    wavInfo
		hasFmt  bool
		hasData bool
	)

	rest := payload[12:]
	for len(rest) >= 8 {
		id := string(rest[:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]

		switch id {
		case "fmt ":
			if size < 16 || size > len(body) {
				return wavInfo{}, ErrInvalidWAV
			}
			info.format = binary.LittleEndian.Uint16(body[0:2])
			info.bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			hasFmt = true
		case "data":
			// Recorders that stream WAV often leave the size unset; take what is there.
			if size > len(body) {
				size = len(body)
			}
			info.data = body[:size]
			hasData = true
		}

		// Chunks are word aligned.
		advance := size + size%2
		if advance > len(body) {
			break
		}
		rest = body[advance:]
	}

	if !hasFmt || !hasData {
		return wavInfo{}, ErrInvalidWAV
	}
	if !supportedFormat(info.format, info.bitsPerSample) {
		return wavInfo{}, ErrUnsupportedWAV
	}
	return info, nil
}

func supportedFormat(format, bits uint16) bool {
	switch format {
	case formatPCM:
		return bits == 8 || bits == 16 || bits == 24 || bits == 32
	case formatFloat:
		return bits == 32 || bits == 64
	default:
		return false
	}
}

// decodeSample normalises one little-endian sample to [-1, 1].
func decodeSample(b []byte, format, bits uint16) float64 {
	if format == formatFloat {
		if bits == 64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}

	switch bits {
	case 8:
		return (float64(b[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / (1 << 15)
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
		return float64(v) / (1 << 23)
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / (1 << 31)
	}
}

func toDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}
