package audio

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(i%100) / 200
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		t.Fatal("encoded output is not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := len(buf.Data); got != len(samples) {
		t.Fatalf("sample count = %d, want %d", got, len(samples))
	}
	if buf.Format.SampleRate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", buf.Format.SampleRate)
	}
	if buf.Format.NumChannels != 1 {
		t.Fatalf("channels = %d, want 1", buf.Format.NumChannels)
	}
}

func TestEncodeWAVClampsOverdrive(t *testing.T) {
	data, err := EncodeWAV([]float32{2.0, -2.0, 0}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Data[0] != 32767 {
		t.Errorf("clipped positive sample = %d, want 32767", buf.Data[0])
	}
	if buf.Data[1] != -32767 {
		t.Errorf("clipped negative sample = %d, want -32767", buf.Data[1])
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestMemWriteSeeker(t *testing.T) {
	m := &memWriteSeeker{}
	if _, err := m.Write([]byte("hello world")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := m.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := m.Write([]byte("HELLO")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := string(m.Bytes()); got != "HELLO world" {
		t.Fatalf("contents = %q, want %q", got, "HELLO world")
	}
	if _, err := m.Seek(-1, io.SeekStart); err == nil {
		t.Fatal("expected error for negative seek")
	}
}
