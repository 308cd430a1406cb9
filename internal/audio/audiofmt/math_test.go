package audiofmt

import (
	"testing"
	"time"

	"github.com/gopxl/beep"
)

func pcm16Stereo48k() beep.Format {
	return beep.Format{SampleRate: 48000, NumChannels: 2, Precision: 2}
}

func TestFrameSize(t *testing.T) {
	if got := FrameSize(pcm16Stereo48k()); got != 4 {
		t.Fatalf("unexpected frame size: got %d want %d", got, 4)
	}
	if got := FrameSize(beep.Format{}); got != 0 {
		t.Fatalf("expected zero frame size for empty format, got %d", got)
	}
}

func TestDurationIgnoresPartialFrame(t *testing.T) {
	format := pcm16Stereo48k()
	if got, want := Duration(format, 48000*4+3), time.Second; got != want {
		t.Fatalf("unexpected duration: got %s want %s", got, want)
	}
}

func TestChunkBytesRoundsToFrames(t *testing.T) {
	format := pcm16Stereo48k()
	if got := ChunkBytes(format, 20*time.Millisecond); got != 3840 {
		t.Fatalf("unexpected chunk size: got %d want %d", got, 3840)
	}
	if got := len(Silence(format, 10*time.Millisecond)); got != 1920 {
		t.Fatalf("unexpected silence size: got %d want %d", got, 1920)
	}
}

func TestBytesPerSecond(t *testing.T) {
	if got := BytesPerSecond(pcm16Stereo48k()); got != 192000 {
		t.Fatalf("unexpected throughput: got %d want %d", got, 192000)
	}
	if got := FrameCount(pcm16Stereo48k(), 0); got != 0 {
		t.Fatalf("expected zero frames, got %d", got)
	}
}
