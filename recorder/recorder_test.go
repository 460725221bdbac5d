package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"anyvoice/audio"
	"anyvoice/pipeline"
)

// one second of 16 kHz mono
func tone() []byte {
	pcm := make([]byte, audio.SampleRate*2)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = byte(i)
	}
	return pcm
}

func TestStartStopWritesWAV(t *testing.T) {
	dir := t.TempDir()
	r := New(audio.NewFakeContextPCM(tone()), nil, dir)

	if err := r.Start(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
	art, err := r.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if art.Path != filepath.Join(dir, "recording_abc.wav") {
		t.Errorf("Path = %q", art.Path)
	}
	if art.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", art.Duration)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Errorf("not a WAV file: %q", data[:12])
	}
	if int64(len(data)) != art.Size {
		t.Errorf("Size = %d, file has %d bytes", art.Size, len(data))
	}
	if want := int64(audio.WAVHeaderSize + audio.SampleRate*2); art.Size != want {
		t.Errorf("Size = %d, want %d", art.Size, want)
	}
}

func TestStopTooShort(t *testing.T) {
	dir := t.TempDir()
	r := New(audio.NewFakeContextPCM(make([]byte, 100)), nil, dir)
	if err := r.Start(context.Background(), "short"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Stop(context.Background()); !errors.Is(err, pipeline.ErrArtifactUnavailable) {
		t.Fatalf("err = %v, want ErrArtifactUnavailable", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("left %d files behind", len(entries))
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := New(audio.NewFakeContextPCM(nil), nil, t.TempDir())
	if _, err := r.Stop(context.Background()); !errors.Is(err, pipeline.ErrArtifactUnavailable) {
		t.Errorf("err = %v, want ErrArtifactUnavailable", err)
	}
}

func TestStartErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		captureErr error
		startErr   error
		want       error
	}{
		{"permission on open", audio.ErrPermission, nil, pipeline.ErrPermissionDenied},
		{"permission on start", nil, errors.New("Access denied by system"), pipeline.ErrPermissionDenied},
		{"missing device", errors.New("no such device"), nil, pipeline.ErrDeviceUnavailable},
		{"busy device", nil, errors.New("device busy"), pipeline.ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actx := audio.NewFakeContextPCM(nil)
			actx.CaptureErr = tt.captureErr
			actx.StartErr = tt.startErr
			r := New(actx, nil, t.TempDir())
			if err := r.Start(context.Background(), "x"); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if actx.Open() != 0 {
				t.Errorf("device left open after failed start")
			}
		})
	}
}

func TestStartWhileRecording(t *testing.T) {
	r := New(audio.NewFakeContextPCM(tone()), nil, t.TempDir())
	if err := r.Start(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	defer r.Release()
	if err := r.Start(context.Background(), "b"); !errors.Is(err, pipeline.ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

type slowContext struct {
	*audio.FakeContext
	ready chan struct{}
}

func (s *slowContext) NewCapture(d *audio.DeviceInfo, c audio.CaptureConfig) (audio.CaptureDevice, error) {
	<-s.ready
	return s.FakeContext.NewCapture(d, c)
}

func TestStartTimeoutReleasesLateDevice(t *testing.T) {
	fake := audio.NewFakeContextPCM(tone())
	slow := &slowContext{FakeContext: fake, ready: make(chan struct{})}
	r := New(slow, nil, t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx, "late"); !errors.Is(err, pipeline.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}

	close(slow.ready)
	deadline := time.Now().Add(time.Second)
	for fake.Open() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fake.Open() != 0 {
		t.Error("late device was never closed")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	actx := audio.NewFakeContextPCM(tone())
	r := New(actx, nil, t.TempDir())
	if err := r.Start(context.Background(), "rel"); err != nil {
		t.Fatal(err)
	}
	art, err := r.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	r.Release()
	r.Release()

	if _, err := os.Stat(art.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact still present: %v", err)
	}
	if actx.Open() != 0 {
		t.Error("device still open")
	}
}

func TestReleaseWhileRecording(t *testing.T) {
	actx := audio.NewFakeContextPCM(tone())
	r := New(actx, nil, t.TempDir())
	if err := r.Start(context.Background(), "rec"); err != nil {
		t.Fatal(err)
	}
	r.Release()
	if actx.Open() != 0 {
		t.Error("device still open after Release")
	}
	if _, err := r.Stop(context.Background()); !errors.Is(err, pipeline.ErrArtifactUnavailable) {
		t.Errorf("Stop after Release = %v, want ErrArtifactUnavailable", err)
	}
}

func TestSweepStale(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"recording_old.wav", "recording_older.wav", "notes.txt", "recording_x.m4a"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}

	n, err := SweepStale(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed %d files, want 2", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("%d files left, want 2", len(entries))
	}

	if n, err := SweepStale(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("SweepStale(missing) = %d, %v", n, err)
	}
}
