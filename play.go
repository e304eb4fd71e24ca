package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pakholeung37/midi-lab/audio"
	"github.com/pakholeung37/midi-lab/config"
	"github.com/pakholeung37/midi-lab/debug"
	"github.com/pakholeung37/midi-lab/midi"
	"github.com/pakholeung37/midi-lab/playback"
	"github.com/pakholeung37/midi-lab/score"
	"github.com/pakholeung37/midi-lab/stats"
	"github.com/pakholeung37/midi-lab/theme"
	"github.com/pakholeung37/midi-lab/tui"
)

var playCmd = &cobra.Command{
	Use:   "play [file.mid]",
	Short: "Play a MIDI file (the last one when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlay,
}

// statsStorage is the on-disk store next to config.json
func statsStorage() (stats.Storage, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return stats.NewFileStorage(filepath.Join(dir, "stats.json")), nil
}

// openOutput builds the audio sink for the configured mode. The returned
// close func releases devices.
func openOutput(cfg *config.Config) (playback.Audio, func(), error) {
	var (
		outs   audio.Multi
		closer []func()
	)
	closeAll := func() {
		for _, fn := range closer {
			fn()
		}
	}

	mode := cfg.Output.Mode
	if mode == config.OutputSynth || mode == config.OutputBoth {
		if cfg.Output.SoundFont == "" {
			return nil, nil, fault.New("no soundfont configured",
				fmsg.WithDesc("no soundfont", "The built-in synth needs a SoundFont. Pass --soundfont FILE.sf2 or use --output midi."))
		}
		synth, err := audio.LoadSynth(cfg.Output.SoundFont)
		if err != nil {
			return nil, nil, err
		}
		if err := synth.Start(); err != nil {
			return nil, nil, err
		}
		closer = append(closer, func() { synth.Close() })
		outs = append(outs, synth)
	}
	if mode == config.OutputMIDI || mode == config.OutputBoth {
		out, err := audio.OpenMIDIOut(cfg.Output.PortName, uint8(cfg.Output.Channel-1))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		outs = append(outs, out)
	}

	debug.Log("main", "output mode=%s sinks=%d", mode, len(outs))
	if len(outs) == 0 {
		return playback.NopAudio{}, closeAll, nil
	}
	return outs, closeAll, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.UI.LastFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fault.New("no file", fmsg.WithDesc("no file", "Pass a MIDI file to play."))
	}

	palette := theme.Named(cfg.UI.Theme)
	s, err := score.LoadFile(path, palette)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cfg)
	if err != nil {
		return err
	}
	defer closeOut()

	th := theme.New(palette)
	session := playback.NewSession(out,
		playback.WithSchedulerOptions(playback.WithFPS(cfg.UI.FPS)),
		playback.WithCoordinatorOptions(cfg.CoordinatorOptions()...),
		playback.WithThru(cfg.Input.Thru),
		playback.WithInputColor(th.InputColor()),
	)
	defer session.Close()
	cfg.Restore(session.Coordinator)

	store, err := statsStorage()
	if err != nil {
		return err
	}
	tracker := stats.NewTracker(store)
	defer tracker.Close()
	session.Coordinator.Observe(tracker.Observe)

	if err := session.Coordinator.Load(s); err != nil {
		return err
	}

	var devices *midi.DeviceManager
	if cfg.Input.AutoConnect {
		devices = midi.NewDeviceManager()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	m := tui.NewModel(session, cfg, th, devices, store)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	g.Go(func() error { return session.Run(ctx) })
	if devices != nil {
		g.Go(func() error { return devices.Run(ctx) })
	}
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}

	cfg.ApplySettings(session.Coordinator.Settings())
	cfg.UI.LastFile = path
	if saveErr := cfg.Save(); saveErr != nil {
		debug.Log("main", "save config: %v", saveErr)
	}
	return err
}
