package main

import (
	"fmt"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/pakholeung37/midi-lab/config"
	"github.com/pakholeung37/midi-lab/debug"
)

var Version = "dev"

// Command-line overrides for the saved config
var flags struct {
	debug     bool
	output    string
	port      string
	channel   int
	soundFont string
	theme     string
	thru      bool
	noInput   bool
}

var rootCmd = &cobra.Command{
	Use:   "midi-lab",
	Short: "Practice MIDI files with a falling-note view",
	Long: `midi-lab plays a Standard MIDI File in the terminal as a waterfall of
falling notes above a keyboard, with tempo control, looping, a metronome
and a countdown. Connected MIDI keyboards light up the keys you play.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flags.debug {
			return debug.Enable()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Disable()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false,
		"Write debug logs to ~/.config/midi-lab/debug.log")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "",
		"Output: synth, midi, both or none (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flags.port, "port", "p", "",
		"MIDI output port name, matched as a substring")
	rootCmd.PersistentFlags().IntVar(&flags.channel, "channel", 0,
		"MIDI output channel 1-16")
	rootCmd.PersistentFlags().StringVar(&flags.soundFont, "soundfont", "",
		"SoundFont (.sf2) for the built-in synth")
	rootCmd.PersistentFlags().StringVarP(&flags.theme, "theme", "t", "",
		"Color theme")
	rootCmd.PersistentFlags().BoolVar(&flags.thru, "thru", false,
		"Send notes played on a keyboard to the output")
	rootCmd.PersistentFlags().BoolVar(&flags.noInput, "no-input", false,
		"Do not connect MIDI keyboards")

	rootCmd.AddCommand(playCmd, infoCmd, portsCmd, statsCmd)
}

// loadConfig reads the saved config and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	pf := cmd.Flags()
	if pf.Changed("output") {
		mode := config.OutputMode(flags.output)
		switch mode {
		case config.OutputSynth, config.OutputMIDI, config.OutputBoth, config.OutputNone:
		default:
			return nil, fault.New("bad output "+flags.output,
				fmsg.WithDesc("bad output", "--output must be synth, midi, both or none."))
		}
		cfg.Output.Mode = mode
	}
	if pf.Changed("port") {
		cfg.Output.PortName = flags.port
	}
	if pf.Changed("channel") {
		cfg.Output.Channel = flags.channel
	}
	if pf.Changed("soundfont") {
		cfg.Output.SoundFont = flags.soundFont
	}
	if pf.Changed("theme") {
		cfg.UI.Theme = flags.theme
	}
	if pf.Changed("thru") {
		cfg.Input.Thru = flags.thru
	}
	if flags.noInput {
		cfg.Input.AutoConnect = false
	}
	cfg.Normalize()
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if issue := fmsg.GetIssue(err); issue != "" {
			fmt.Fprintln(os.Stderr, issue)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		debug.Log("main", "exit: %v", err)
		os.Exit(1)
	}
}
