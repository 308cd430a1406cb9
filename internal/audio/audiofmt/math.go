package audiofmt

import (
	"time"

	"github.com/gopxl/beep"
)

// FrameSize returns the PCM frame size in bytes (all channels for one sample point).
func FrameSize(format beep.Format) int {
	if format.NumChannels <= 0 || format.Precision <= 0 {
		return 0
	}
	return format.Width()
}

// BytesPerSecond returns byte throughput for the format.
func BytesPerSecond(format beep.Format) int {
	if format.SampleRate <= 0 {
		return 0
	}
	return int(format.SampleRate) * FrameSize(format)
}

// FrameCount converts a PCM byte length into complete frames.
func FrameCount(format beep.Format, dataLen int) int {
	frameSize := FrameSize(format)
	if dataLen <= 0 || frameSize <= 0 {
		return 0
	}
	return dataLen / frameSize
}

// Duration converts a PCM byte length into playback time. Partial frames are ignored.
func Duration(format beep.Format, dataLen int) time.Duration {
	frames := FrameCount(format, dataLen)
	if frames == 0 || format.SampleRate <= 0 {
		return 0
	}
	return format.SampleRate.D(frames)
}

// ChunkBytes returns the byte size of a chunk lasting d, rounded down to whole frames.
func ChunkBytes(format beep.Format, d time.Duration) int {
	if d <= 0 || format.SampleRate <= 0 {
		return 0
	}
	return format.SampleRate.N(d) * FrameSize(format)
}

// Silence returns a zeroed chunk lasting d.
func Silence(format beep.Format, d time.Duration) []byte {
	return make([]byte, ChunkBytes(format, d))
}
