package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	// ErrCaptureActive means a capture device or loop was started while one
	// is already running.
	ErrCaptureActive = errors.New("capture already active")

	// ErrDeviceUnavailable wraps failures to open or start the physical
	// input device.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// micInUse guards the physical microphone across all MalgoDevice instances
// in the process. Opening it twice produces garbage on both.
var micInUse atomic.Bool

// Device produces raw PCM16LE audio. Start invokes onData from the audio
// thread with whatever sample count the backend delivers; framing is the
// caller's job.
type Device interface {
	Start(onData func([]byte)) error
	Stop() error
}

// DeviceConfig selects the capture format. Channels is fixed at mono.
type DeviceConfig struct {
	SampleRate int
	// PeriodMS is the backend callback period. Smaller values lower
	// latency at the cost of more callbacks.
	PeriodMS int
}

// MalgoDevice is the miniaudio-backed microphone. It owns its own malgo
// context so tearing one device down never disturbs another.
type MalgoDevice struct {
	cfg DeviceConfig

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
}

func NewMalgoDevice(cfg DeviceConfig) *MalgoDevice {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.PeriodMS <= 0 {
		cfg.PeriodMS = 20
	}
	return &MalgoDevice{cfg: cfg}
}

func (d *MalgoDevice) Start(onData func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrCaptureActive
	}
	if !micInUse.CompareAndSwap(false, true) {
		return ErrCaptureActive
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	mctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		micInUse.Store(false)
		return fmt.Errorf("%w: init context: %v", ErrDeviceUnavailable, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(d.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(d.cfg.PeriodMS)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onData(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		micInUse.Store(false)
		return fmt.Errorf("%w: init device: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		micInUse.Store(false)
		return fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}

	d.ctx = mctx
	d.device = device
	d.running = true
	return nil
}

func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	err := d.device.Stop()
	d.device.Uninit()
	d.ctx.Uninit()
	d.device = nil
	d.ctx = nil
	micInUse.Store(false)
	return err
}
