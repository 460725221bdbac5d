// Package recorder captures microphone audio for one session at a time and
// persists it as a WAV file in a private temp directory.
package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"anyvoice/audio"
	"anyvoice/log"
	"anyvoice/pipeline"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	filePrefix = "recording_"
	fileExt    = ".wav"

	// Anything shorter than this is treated as an accidental tap.
	minFrames = audio.SampleRate / 10
)

func DefaultDir() string {
	return filepath.Join(os.TempDir(), "anyvoice")
}

type pcmBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *pcmBuffer) write(p []byte, _ uint32) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
}

func (b *pcmBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

type Recorder struct {
	actx   audio.Context
	device *audio.DeviceInfo
	dir    string

	mu      sync.Mutex
	capture audio.CaptureDevice
	buf     *pcmBuffer
	id      string
	path    string
}

// New returns a Recorder that opens device (nil for the system default)
// and writes artifacts into dir.
func New(actx audio.Context, device *audio.DeviceInfo, dir string) *Recorder {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Recorder{actx: actx, device: device, dir: dir}
}

func (r *Recorder) Dir() string { return r.dir }

type openResult struct {
	dev audio.CaptureDevice
	err error
}

func (r *Recorder) open(buf *pcmBuffer) openResult {
	dev, err := r.actx.NewCapture(r.device, audio.DefaultConfig())
	if err != nil {
		return openResult{err: err}
	}
	dev.SetCallback(buf.write)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return openResult{err: err}
	}
	return openResult{dev: dev}
}

func (r *Recorder) Start(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture != nil {
		return fmt.Errorf("%w: device already in use", pipeline.ErrDeviceUnavailable)
	}

	buf := &pcmBuffer{}
	ch := make(chan openResult, 1)
	go func() { ch <- r.open(buf) }()

	var res openResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		// the device may still come up; release it when it does
		go func() {
			if late := <-ch; late.dev != nil {
				late.dev.Stop()
				late.dev.ClearCallback()
				late.dev.Close()
			}
		}()
		return fmt.Errorf("%w: %v", pipeline.ErrDeviceUnavailable, ctx.Err())
	}

	if res.err != nil {
		if audio.IsPermissionError(res.err) {
			return fmt.Errorf("%w: %v", pipeline.ErrPermissionDenied, res.err)
		}
		return fmt.Errorf("%w: %v", pipeline.ErrDeviceUnavailable, res.err)
	}

	r.capture = res.dev
	r.buf = buf
	r.id = id
	log.Infof("recording on %s", res.dev.DeviceName())
	return nil
}

func (r *Recorder) Stop(ctx context.Context) (pipeline.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture == nil {
		return pipeline.Artifact{}, fmt.Errorf("%w: not recording", pipeline.ErrArtifactUnavailable)
	}
	r.releaseDevice()

	if err := ctx.Err(); err != nil {
		return pipeline.Artifact{}, fmt.Errorf("%w: %v", pipeline.ErrArtifactUnavailable, err)
	}

	pcm := r.buf.bytes()
	r.buf = nil
	frames := len(pcm) / 2
	if frames < minFrames {
		return pipeline.Artifact{}, fmt.Errorf("%w: recording too short", pipeline.ErrArtifactUnavailable)
	}

	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return pipeline.Artifact{}, fmt.Errorf("%w: %v", pipeline.ErrArtifactUnavailable, err)
	}
	path := filepath.Join(r.dir, filePrefix+r.id+fileExt)
	if err := writeWAV(path, pcm); err != nil {
		os.Remove(path)
		return pipeline.Artifact{}, fmt.Errorf("%w: %v", pipeline.ErrArtifactUnavailable, err)
	}
	r.path = path

	info, err := os.Stat(path)
	if err != nil {
		return pipeline.Artifact{}, fmt.Errorf("%w: %v", pipeline.ErrArtifactUnavailable, err)
	}
	return pipeline.Artifact{
		Path:     path,
		Duration: time.Duration(frames) * time.Second / audio.SampleRate,
		Size:     info.Size(),
	}, nil
}

// Release stops the device if it is still open and deletes the artifact.
func (r *Recorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseDevice()
	r.buf = nil
	if r.path != "" {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("remove artifact %s: %v", r.path, err)
		}
		r.path = ""
	}
}

func (r *Recorder) releaseDevice() {
	if r.capture == nil {
		return
	}
	r.capture.Stop()
	r.capture.ClearCallback()
	r.capture.Close()
	r.capture = nil
}

func writeWAV(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, audio.SampleRate, audio.BitsPerSample, audio.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: audio.Channels,
			SampleRate:  audio.SampleRate,
		},
		Data:           make([]int, len(pcm)/2),
		SourceBitDepth: audio.BitsPerSample,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// SweepStale deletes artifacts left behind by a previous run that exited
// without cleaning up. It returns how many files were removed.
func SweepStale(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			log.Warnf("sweep %s: %v", name, err)
			continue
		}
		n++
	}
	return n, nil
}
