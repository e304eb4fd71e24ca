package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/pakholeung37/midi-lab/audio"
	"github.com/pakholeung37/midi-lab/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "listen":
		listen()
	case "click":
		click()
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list           - List all MIDI ports")
	fmt.Println("  listen         - Print notes from every keyboard")
	fmt.Println("  click PORT BPM - Metronome on an output port")
	fmt.Println("  poll           - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			kind := ""
			if midi.IsKeyboardPort(p.String()) {
				kind = " (keyboard)"
			}
			fmt.Printf("  %d: %s%s\n", i, p.String(), kind)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func listen() {
	var keyboards []*midi.KeyboardController
	for _, in := range gomidi.GetInPorts() {
		if !midi.IsKeyboardPort(in.String()) {
			continue
		}
		kb, err := midi.NewKeyboardController(in.String(), in)
		if err != nil {
			fmt.Printf("  %s: %v\n", in.String(), err)
			continue
		}
		fmt.Printf("Listening on %s\n", in.String())
		keyboards = append(keyboards, kb)

		go func(kb *midi.KeyboardController) {
			for ev := range kb.NoteEvents() {
				fmt.Printf("[%s] %-24s %s\n", time.Now().Format("15:04:05.000"), kb.ID(), ev)
			}
		}(kb)
	}
	if len(keyboards) == 0 {
		fmt.Println("No keyboards found")
		return
	}

	fmt.Println("Play some notes. Ctrl+C to exit.")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	for _, kb := range keyboards {
		kb.Close()
	}
}

func click() {
	if len(os.Args) < 3 {
		usage()
		return
	}
	bpm := 120.0
	if len(os.Args) > 3 {
		if v, err := strconv.ParseFloat(os.Args[3], 64); err == nil && v > 0 {
			bpm = v
		}
	}

	out, err := audio.OpenMIDIOut(os.Args[2], 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer out.StopAllNotes()

	fmt.Printf("Clicking at %.0f bpm. Ctrl+C to exit.\n", bpm)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ticker := time.NewTicker(time.Duration(60 / bpm * float64(time.Second)))
	defer ticker.Stop()
	for beat := 0; ; beat++ {
		out.PlayClick(beat%4 == 0)
		select {
		case <-ticker.C:
		case <-stop:
			fmt.Println()
			return
		}
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		inNames, outNames := midi.PortNames()

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			for _, name := range inNames {
				if midi.IsKeyboardPort(name) {
					fmt.Printf("  -> keyboard: %s\n", name)
				}
			}

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
