package recorder

import (
	"testing"
	"time"
)

func frames(n, size int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		f := make([]float32, size)
		for j := range f {
			f[j] = 0.1
		}
		out[i] = f
	}
	return out
}

func drain(r *Recorder) (Segment, bool) {
	select {
	case seg := <-r.Output():
		return seg, true
	default:
		return Segment{}, false
	}
}

func TestRecorderCapturesUtterance(t *testing.T) {
	r := New(16000, 5*time.Second)
	r.Arm()

	r.OnSpeechStart(time.Now())
	if !r.Recording() {
		t.Fatal("expected recording after speech start")
	}
	for _, f := range frames(10, 256) {
		r.Append(f)
	}
	r.OnSpeechStop(time.Now())

	seg, ok := drain(r)
	if !ok {
		t.Fatal("no segment emitted")
	}
	if seg.Samples != 10*256 {
		t.Errorf("Samples = %d, want %d", seg.Samples, 10*256)
	}
	if seg.Mime != "audio/wav" {
		t.Errorf("Mime = %q, want audio/wav", seg.Mime)
	}
	if len(seg.Data) == 0 {
		t.Error("segment has no encoded data")
	}
	wantDur := time.Duration(10*256) * time.Second / 16000
	if seg.Duration != wantDur {
		t.Errorf("Duration = %v, want %v", seg.Duration, wantDur)
	}
}

func TestRecorderIgnoresWhenDisarmed(t *testing.T) {
	r := New(16000, 5*time.Second)

	r.OnSpeechStart(time.Now())
	if r.Recording() {
		t.Fatal("disarmed recorder must not start capturing")
	}
	r.Append(frames(1, 256)[0])
	r.OnSpeechStop(time.Now())

	if _, ok := drain(r); ok {
		t.Fatal("disarmed recorder emitted a segment")
	}
}

func TestRecorderDisarmDiscardsPartial(t *testing.T) {
	r := New(16000, 5*time.Second)
	r.Arm()

	r.OnSpeechStart(time.Now())
	for _, f := range frames(4, 256) {
		r.Append(f)
	}
	r.Disarm()
	r.OnSpeechStop(time.Now())

	if _, ok := drain(r); ok {
		t.Fatal("disarm should discard the partial utterance")
	}
	if r.Recording() {
		t.Fatal("still recording after disarm")
	}
}

func TestRecorderCeilingForcesStop(t *testing.T) {
	// 100ms ceiling at 16kHz = 1600 samples.
	r := New(16000, 100*time.Millisecond)
	r.Arm()

	r.OnSpeechStart(time.Now())
	for i := 0; i < 10; i++ { // 2560 samples, past the ceiling
		r.Append(frames(1, 256)[0])
	}
	if r.Recording() {
		t.Fatal("recording should have force-stopped at the ceiling")
	}

	seg, ok := drain(r)
	if !ok {
		t.Fatal("no segment emitted at ceiling")
	}
	if seg.Samples != 1600 {
		t.Errorf("Samples = %d, want exactly the 1600-sample ceiling", seg.Samples)
	}

	// A later stop event must not emit a second segment.
	r.OnSpeechStop(time.Now())
	if _, ok := drain(r); ok {
		t.Fatal("speech stop after forced stop emitted a duplicate segment")
	}
}

func TestRecorderEmptyUtteranceNotEmitted(t *testing.T) {
	r := New(16000, 5*time.Second)
	r.Arm()
	r.OnSpeechStart(time.Now())
	r.OnSpeechStop(time.Now())
	if _, ok := drain(r); ok {
		t.Fatal("utterance with no samples should be dropped")
	}
}

func TestRecorderBackToBackUtterances(t *testing.T) {
	r := New(16000, 5*time.Second)
	r.Arm()

	for turn := 0; turn < 2; turn++ {
		r.OnSpeechStart(time.Now())
		for _, f := range frames(3, 256) {
			r.Append(f)
		}
		r.OnSpeechStop(time.Now())
		seg, ok := drain(r)
		if !ok {
			t.Fatalf("turn %d: no segment", turn)
		}
		if seg.Samples != 3*256 {
			t.Fatalf("turn %d: Samples = %d, want %d", turn, seg.Samples, 3*256)
		}
	}
}
