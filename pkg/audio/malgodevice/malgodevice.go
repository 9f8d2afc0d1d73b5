// Package malgodevice implements the [audio.Device] boundary over real
// hardware: capture through miniaudio (malgo) and playback through oto.
// Both libraries pick the platform's native backend (ALSA, CoreAudio,
// WASAPI), so this one adapter covers every desktop target.
package malgodevice

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/oakmund/hearth/pkg/audio"
)

// DefaultPlaybackRate is the sample rate the output context is opened at.
// Speech synthesis output arrives at this rate; anything else is resampled.
const DefaultPlaybackRate = 24000

// playbackBufferBytes sizes oto's internal buffer. At 24 kHz mono 16-bit,
// 4800 bytes is 100 ms — low enough latency for spoken responses.
const playbackBufferBytes = 4800

// Device is a microphone/speaker pair backed by malgo and oto.
type Device struct {
	playbackRate int

	mu      sync.Mutex
	actx    *malgo.AllocatedContext
	capture *malgo.Device
	otoCtx  *oto.Context
	rem     []byte
	elapsed time.Duration
}

var _ audio.Device = (*Device)(nil)

// Option configures a [Device].
type Option func(*Device)

// WithPlaybackRate overrides the output sample rate.
func WithPlaybackRate(rate int) Option {
	return func(d *Device) {
		if rate > 0 {
			d.playbackRate = rate
		}
	}
}

// New opens the platform audio backend and the playback context. Capture
// does not begin until Start is called.
func New(opts ...Option) (*Device, error) {
	d := &Device{playbackRate: DefaultPlaybackRate}
	for _, o := range opts {
		o(d)
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgodevice: init context: %w", err)
	}
	d.actx = actx

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   d.playbackRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   playbackBufferBytes,
	})
	if err != nil {
		_ = actx.Uninit()
		return nil, fmt.Errorf("malgodevice: open playback: %w", err)
	}
	<-ready
	d.otoCtx = otoCtx

	return d, nil
}

// Start opens the default capture device at the pipeline format and begins
// delivering fixed-size frames to onFrame. The malgo data callback hands us
// arbitrary chunk sizes; leftover bytes carry over to the next callback so
// no sample is ever skipped or duplicated.
func (d *Device) Start(onFrame func(audio.Frame)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.actx == nil {
		return fmt.Errorf("malgodevice: context closed")
	}
	if d.capture != nil {
		return fmt.Errorf("malgodevice: capture already started")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = audio.Channels
	cfg.SampleRate = audio.SampleRate
	cfg.PeriodSizeInMilliseconds = uint32(audio.FrameDuration / time.Millisecond)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.onCapture(input, onFrame)
		},
	}

	dev, err := malgo.InitDevice(d.actx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("malgodevice: open capture: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("malgodevice: start capture: %w", err)
	}

	d.capture = dev
	d.rem = nil
	d.elapsed = 0
	return nil
}

// onCapture runs on malgo's capture thread. It must not block, so it only
// appends and slices buffers; the Channel behind onFrame drops on overflow
// rather than stalling here.
func (d *Device) onCapture(input []byte, onFrame func(audio.Frame)) {
	d.mu.Lock()
	d.rem = append(d.rem, input...)
	var frames [][]byte
	for len(d.rem) >= audio.FrameBytes {
		data := make([]byte, audio.FrameBytes)
		copy(data, d.rem[:audio.FrameBytes])
		d.rem = d.rem[audio.FrameBytes:]
		frames = append(frames, data)
	}
	elapsed := d.elapsed
	d.elapsed += time.Duration(len(frames)) * audio.FrameDuration
	d.mu.Unlock()

	for i, data := range frames {
		onFrame(audio.Frame{
			Data:       data,
			SampleRate: audio.SampleRate,
			Timestamp:  elapsed + time.Duration(i)*audio.FrameDuration,
		})
	}
}

// Stop halts capture and releases the device. Safe to call more than once.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		_ = d.capture.Stop()
		d.capture.Uninit()
		d.capture = nil
	}
	if d.actx != nil {
		_ = d.actx.Uninit()
		d.actx.Free()
		d.actx = nil
	}
	return nil
}

// Play writes pcm to the speaker and blocks until playback drains or ctx is
// cancelled. Input at a different sample rate is resampled to the playback
// rate first.
func (d *Device) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	d.mu.Lock()
	otoCtx := d.otoCtx
	d.mu.Unlock()
	if otoCtx == nil {
		return fmt.Errorf("malgodevice: playback context closed")
	}
	if len(pcm) == 0 {
		return nil
	}

	if sampleRate != d.playbackRate {
		pcm = audio.Resample(pcm, sampleRate, d.playbackRate)
	}

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
