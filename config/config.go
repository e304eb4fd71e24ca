package config

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"github.com/pakholeung37/midi-lab/playback"
	"github.com/pakholeung37/midi-lab/score"
	"github.com/pakholeung37/midi-lab/theme"
)

// OutputMode selects where playback is heard
type OutputMode string

const (
	OutputSynth OutputMode = "synth"
	OutputMIDI  OutputMode = "midi"
	OutputBoth  OutputMode = "both"
	OutputNone  OutputMode = "none"
)

// OutputConfig defines the audio or MIDI output
type OutputConfig struct {
	Mode      OutputMode `json:"mode"`
	PortName  string     `json:"portName,omitempty"`
	Channel   int        `json:"channel"` // 1-16
	SoundFont string     `json:"soundFont,omitempty"`
}

// InputConfig controls live keyboards
type InputConfig struct {
	AutoConnect bool `json:"autoConnect"`
	Thru        bool `json:"thru"`
}

// PlaybackConfig holds the preferences restored on start
type PlaybackConfig struct {
	Countdown       bool    `json:"countdown"`
	PreBeats        int     `json:"preBeats"`
	Metronome       bool    `json:"metronome"`
	Muted           bool    `json:"muted"`
	Volume          float64 `json:"volume"`
	MetronomeVolume float64 `json:"metronomeVolume"`
	LoopEnabled     bool    `json:"loopEnabled"`
	LoopStart       int     `json:"loopStart"`
	LoopEnd         int     `json:"loopEnd"`
}

// IndexConfig tunes the note index (seconds)
type IndexConfig struct {
	BucketSize      float64 `json:"bucketSize"`
	MaxNoteDuration float64 `json:"maxNoteDuration"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Theme    string  `json:"theme"`
	Window   float64 `json:"window"` // seconds of music visible ahead of the playhead
	FPS      int     `json:"fps"`
	LastFile string  `json:"lastFile,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output   OutputConfig   `json:"output"`
	Input    InputConfig    `json:"input"`
	Playback PlaybackConfig `json:"playback"`
	Index    IndexConfig    `json:"index"`
	UI       UIConfig       `json:"ui"`
}

const (
	minWindow = 1.0
	maxWindow = 30.0
	maxFPS    = 240
)

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Mode:    OutputSynth,
			Channel: 1,
		},
		Input: InputConfig{
			AutoConnect: true,
		},
		Playback: PlaybackConfig{
			Countdown:       true,
			PreBeats:        playback.DefaultPreBeats,
			Volume:          0.5,
			MetronomeVolume: 0.5,
			LoopStart:       1,
			LoopEnd:         4,
		},
		Index: IndexConfig{
			BucketSize:      score.DefaultBucketSize,
			MaxNoteDuration: score.DefaultMaxNoteDuration,
		},
		UI: UIConfig{
			Theme:  theme.DefaultID,
			Window: 4,
			FPS:    playback.DefaultFPS,
		},
	}
}

// Normalize clamps values a hand-edited file may get wrong
func (c *Config) Normalize() {
	d := DefaultConfig()

	switch c.Output.Mode {
	case OutputSynth, OutputMIDI, OutputBoth, OutputNone:
	default:
		c.Output.Mode = d.Output.Mode
	}
	if c.Output.Channel < 1 || c.Output.Channel > 16 {
		c.Output.Channel = d.Output.Channel
	}

	if c.Playback.PreBeats <= 0 {
		c.Playback.PreBeats = d.Playback.PreBeats
	}
	c.Playback.Volume = clamp01(c.Playback.Volume)
	c.Playback.MetronomeVolume = clamp01(c.Playback.MetronomeVolume)
	c.Playback.LoopStart = max(1, c.Playback.LoopStart)
	c.Playback.LoopEnd = max(c.Playback.LoopStart, c.Playback.LoopEnd)

	if !(c.Index.BucketSize > 0) {
		c.Index.BucketSize = d.Index.BucketSize
	}
	if !(c.Index.MaxNoteDuration > 0) {
		c.Index.MaxNoteDuration = d.Index.MaxNoteDuration
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if math.IsNaN(c.UI.Window) || c.UI.Window < minWindow {
		c.UI.Window = minWindow
	}
	c.UI.Window = math.Min(c.UI.Window, maxWindow)
	if c.UI.FPS <= 0 || c.UI.FPS > maxFPS {
		c.UI.FPS = d.UI.FPS
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi-lab"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads path over the defaults, so missing fields keep them
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fault.Wrap(err, fmsg.WithDesc("read config", "Could not read "+path+"."))
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("parse config", path+" is not valid JSON. Fix or delete it."))
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CoordinatorOptions turns the saved preferences into coordinator options
func (c *Config) CoordinatorOptions() []playback.Option {
	return []playback.Option{
		playback.WithCountdown(c.Playback.Countdown, c.Playback.PreBeats),
		playback.WithMetronome(c.Playback.Metronome),
		playback.WithLoop(playback.LoopRegion{
			Enabled: c.Playback.LoopEnabled,
			Start:   c.Playback.LoopStart,
			End:     c.Playback.LoopEnd,
		}),
		playback.WithIndexOptions(
			score.WithBucketSize(c.Index.BucketSize),
			score.WithMaxNoteDuration(c.Index.MaxNoteDuration),
		),
		playback.WithPalette(theme.Named(c.UI.Theme)),
	}
}

// Restore pushes the preferences the coordinator has no options for
func (c *Config) Restore(coord *playback.Coordinator) {
	coord.SetMuted(c.Playback.Muted)
	coord.SetVolume(c.Playback.Volume)
	coord.SetMetronomeVolume(c.Playback.MetronomeVolume)
}

// ApplySettings copies the coordinator's current preferences back, for
// saving on quit.
func (c *Config) ApplySettings(s playback.Settings) {
	c.Playback.Countdown = s.Countdown
	c.Playback.PreBeats = s.PreBeats
	c.Playback.Metronome = s.Metronome
	c.Playback.Muted = s.Muted
	c.Playback.Volume = s.Volume
	c.Playback.MetronomeVolume = s.MetronomeVolume
	c.Playback.LoopEnabled = s.Loop.Enabled
	c.Playback.LoopStart = s.Loop.Start
	c.Playback.LoopEnd = s.Loop.End
	if s.Palette != nil {
		c.UI.Theme = s.Palette.ID
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}
