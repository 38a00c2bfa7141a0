// Package audio plays short result cues through the default output device.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Cue is an audible signal for a finished run
type Cue int

const (
	CueSuccess Cue = iota
	CueFailure
)

const (
	sampleRate = 44100
	channels   = 1
	amplitude  = 0.25
)

type tone struct {
	freq float64
	dur  time.Duration
}

var cues = map[Cue][]tone{
	CueSuccess: {{880, 70 * time.Millisecond}, {1320, 90 * time.Millisecond}},
	CueFailure: {{330, 120 * time.Millisecond}, {220, 180 * time.Millisecond}},
}

// Samples renders cue as 16-bit little-endian mono PCM at rate
func Samples(cue Cue, rate uint32) []byte {
	var buf []byte
	for _, t := range cues[cue] {
		n := int(math.Round(float64(rate) * t.dur.Seconds()))
		// Fade each tone in and out over 5ms to avoid clicks
		fade := int(math.Round(float64(rate) * 0.005))
		for i := 0; i < n; i++ {
			gain := amplitude
			if i < fade {
				gain *= float64(i) / float64(fade)
			} else if n-i < fade {
				gain *= float64(n-i) / float64(fade)
			}
			v := math.Sin(2*math.Pi*t.freq*float64(i)/float64(rate)) * gain
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(v*math.MaxInt16)))
		}
	}
	return buf
}

// Player plays cues one at a time. Cues requested while one is playing are
// dropped.
type Player struct {
	malgoCtx *malgo.AllocatedContext

	mu      sync.Mutex
	playing bool
}

// NewPlayer initializes the audio backend
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &Player{malgoCtx: ctx}, nil
}

// Play renders cue and blocks until it has been played
func (p *Player) Play(cue Cue) error {
	p.mu.Lock()
	if p.playing || p.malgoCtx == nil {
		p.mu.Unlock()
		return nil
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	pcm := Samples(cue, sampleRate)
	done := make(chan struct{})
	var once sync.Once
	var pos int

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	onData := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		n := copy(pOutputSample, pcm[pos:])
		pos += n
		clear(pOutputSample[n:])
		if pos >= len(pcm) {
			once.Do(func() { close(done) })
		}
	}

	device, err := malgo.InitDevice(p.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	select {
	case <-done:
		// Let the last buffer drain
		time.Sleep(50 * time.Millisecond)
	case <-time.After(2 * time.Second):
	}
	device.Stop()
	return nil
}

// Close releases the audio backend
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.malgoCtx != nil {
		_ = p.malgoCtx.Uninit()
		p.malgoCtx.Free()
		p.malgoCtx = nil
	}
	return nil
}
