package audio

import (
	"bytes"
	"math"
	"os"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/pakholeung37/midi-lab/debug"
)

const (
	SampleRate = 44100
	block      = 512

	pianoChannel = 0
	bufferSize   = 60 * time.Millisecond

	clickSeconds = 0.03
	clickHz      = 1000.0
	accentHz     = 1500.0
)

// synthesizer is the part of meltysynth.Synthesizer the player drives
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	NoteOn(channel, key, vel int32)
	NoteOff(channel, key int32)
	Render(left, right []float32)
}

// newSynthesizer constructs a meltysynth synthesizer. Tests may override this to
// inject a mock implementation.
var newSynthesizer = func(sf *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (synthesizer, error) {
	return meltysynth.NewSynthesizer(sf, settings)
}

// click is one decaying sine voice of the metronome
type click struct {
	hz    float64
	pos   int
	gain  float64
	total int
}

// Synth renders notes through a SoundFont and mixes metronome clicks into
// the same stream. It implements playback.Audio.
type Synth struct {
	mu          sync.Mutex
	syn         synthesizer
	volume      float64
	clickVolume float64
	clicks      []click
	left, right []float32

	player *ebitaudio.Player
}

// LoadSynth reads a SoundFont file and prepares a synthesizer for it
func LoadSynth(path string) (*Synth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("read soundfont", "Could not read the SoundFont "+path+"."))
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("parse soundfont", path+" is not a valid SoundFont."))
	}
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	settings.BlockSize = block
	syn, err := newSynthesizer(sf, settings)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("create synthesizer"))
	}
	debug.Log("audio", "soundfont %s loaded", path)
	return newSynth(syn), nil
}

func newSynth(syn synthesizer) *Synth {
	return &Synth{
		syn:         syn,
		volume:      0.5,
		clickVolume: 0.5,
	}
}

// Start opens the audio device and begins streaming
func (s *Synth) Start() error {
	ctx, err := sharedAudioContext(SampleRate)
	if err != nil {
		return err
	}
	pl, err := ctx.NewPlayerF32(NewStreamReader(s))
	if err != nil {
		return fault.Wrap(err, fmsg.WithDesc("open audio player", "Could not open the audio device."))
	}
	pl.SetBufferSize(bufferSize)
	pl.Play()

	s.mu.Lock()
	s.player = pl
	s.mu.Unlock()
	return nil
}

// Close stops streaming
func (s *Synth) Close() error {
	s.mu.Lock()
	pl := s.player
	s.player = nil
	s.mu.Unlock()
	if pl == nil {
		return nil
	}
	pl.Pause()
	return pl.Close()
}

func (s *Synth) PlayNote(pitch uint8, velocity float64) {
	vel := int32(math.Round(clamp01(velocity) * 127))
	if vel < 1 {
		vel = 1
	}
	s.mu.Lock()
	s.syn.NoteOn(pianoChannel, int32(pitch), vel)
	s.mu.Unlock()
}

func (s *Synth) StopNote(pitch uint8) {
	s.mu.Lock()
	s.syn.NoteOff(pianoChannel, int32(pitch))
	s.mu.Unlock()
}

// StopAllNotes sends All Notes Off
func (s *Synth) StopAllNotes() {
	s.mu.Lock()
	s.syn.ProcessMidiMessage(pianoChannel, 0xB0, 123, 0)
	s.mu.Unlock()
}

func (s *Synth) PlayClick(accent bool) {
	hz, gain := clickHz, 0.6
	if accent {
		hz, gain = accentHz, 1.0
	}
	s.mu.Lock()
	s.clicks = append(s.clicks, click{hz: hz, gain: gain, total: int(clickSeconds * SampleRate)})
	s.mu.Unlock()
}

func (s *Synth) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = clamp01(v)
	s.mu.Unlock()
}

func (s *Synth) SetMetronomeVolume(v float64) {
	s.mu.Lock()
	s.clickVolume = clamp01(v)
	s.mu.Unlock()
}

// Process renders interleaved stereo frames. It runs on the audio thread.
func (s *Synth) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(dst) / 2
	for done := 0; done < frames; {
		n := min(block, frames-done)
		if cap(s.left) < block {
			s.left = make([]float32, block)
			s.right = make([]float32, block)
		}
		left, right := s.left[:n], s.right[:n]
		s.syn.Render(left, right)

		vol := float32(s.volume)
		for i := 0; i < n; i++ {
			c := s.clickSample()
			dst[(done+i)*2] = left[i]*vol + c
			dst[(done+i)*2+1] = right[i]*vol + c
		}
		done += n
	}
}

// clickSample advances every click voice by one frame and returns the mix
func (s *Synth) clickSample() float32 {
	if len(s.clicks) == 0 {
		return 0
	}
	var sum float64
	live := s.clicks[:0]
	for _, c := range s.clicks {
		t := float64(c.pos) / SampleRate
		env := math.Exp(-t * 150)
		sum += math.Sin(2*math.Pi*c.hz*t) * env * c.gain
		c.pos++
		if c.pos < c.total {
			live = append(live, c)
		}
	}
	s.clicks = live
	return float32(sum * s.clickVolume)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
