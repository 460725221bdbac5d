//go:build !linux

package cue

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	deviceMu sync.Mutex

	// read from the audio callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
)

func initPlayer() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: fill})
	return err
}

func fill(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	n := uint32(0)
	if s := current.Load(); s != nil {
		p := pos.Load()
		n = min(want, uint32(len(*s))-p)
		copy(out[:n], (*s)[p:p+n])
		pos.Store(p + n)
		if p+n == uint32(len(*s)) {
			current.Store(nil)
		}
	}
	clear(out[n:want])
}

func toBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

func play(samples []int16) {
	if malgoCtx == nil {
		return
	}
	buf := toBytes(samples)

	deviceMu.Lock()
	defer deviceMu.Unlock()
	if device == nil {
		return
	}

	// Stop first so the callback never sees a half-reset position.
	device.Stop()
	pos.Store(0)
	current.Store(&buf)

	if err := device.Start(); err != nil {
		// The device can go stale across sleep and wake; rebuild it once.
		device.Uninit()
		if err := initDevice(); err != nil {
			device = nil
			current.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}
