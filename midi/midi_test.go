package midi

import (
	"errors"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

func TestKeyboardHandle(t *testing.T) {
	kb := newKeyboard("test")

	kb.handle(gomidi.NoteOn(2, 60, 100))
	kb.handle(gomidi.NoteOn(2, 60, 0))
	kb.handle(gomidi.NoteOff(2, 64))
	kb.handle(gomidi.ControlChange(2, 64, 127))

	want := []NoteEvent{
		{Note: 60, Velocity: 100, Channel: 2},
		{Note: 60, Channel: 2},
		{Note: 64, Channel: 2},
	}
	for i, w := range want {
		select {
		case got := <-kb.NoteEvents():
			if got != w {
				t.Fatalf("event %d = %+v, want %+v", i, got, w)
			}
		default:
			t.Fatalf("missing event %d", i)
		}
	}
	select {
	case ev := <-kb.NoteEvents():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	kb.Close()
	kb.handle(gomidi.NoteOn(0, 60, 100))
	if _, ok := <-kb.NoteEvents(); ok {
		t.Fatal("event delivered after close")
	}
	kb.Close()
}

func TestIsKeyboardPort(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Digital Piano", true},
		{"Midi Through:Midi Through Port-0 14:0", false},
		{"IAC Driver Bus 1", true},
		{"  ", false},
	}
	for _, tt := range tests {
		if got := IsKeyboardPort(tt.name); got != tt.want {
			t.Errorf("IsKeyboardPort(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// fakeIn only answers String; the manager never opens it directly
type fakeIn struct {
	drivers.In
	name string
}

func (f fakeIn) String() string { return f.name }

type fakeController struct {
	id     string
	closed bool
}

func (f *fakeController) ID() string                   { return f.id }
func (f *fakeController) Type() ControllerType         { return ControllerKeyboard }
func (f *fakeController) NoteEvents() <-chan NoteEvent { return nil }
func (f *fakeController) Close() error                 { f.closed = true; return nil }

func TestDeviceManagerScan(t *testing.T) {
	dm := NewDeviceManager()
	ports := []drivers.In{fakeIn{name: "Piano"}, fakeIn{name: "Midi Through"}, fakeIn{name: "Broken"}}
	dm.listPorts = func() []drivers.In { return ports }
	made := map[string]*fakeController{}
	dm.connect = func(id string, _ drivers.In) (Controller, error) {
		if id == "Broken" {
			return nil, errors.New("busy")
		}
		c := &fakeController{id: id}
		made[id] = c
		return c, nil
	}

	dm.scan()
	ev := <-dm.Events()
	if ev.Type != DeviceConnected || ev.ID != "Piano" || ev.Controller == nil {
		t.Fatalf("event = %+v", ev)
	}
	if len(dm.Controllers()) != 1 {
		t.Fatalf("controllers = %v", dm.Controllers())
	}

	// a second scan with the same ports changes nothing
	dm.scan()
	select {
	case ev := <-dm.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}

	ports = nil
	dm.scan()
	ev = <-dm.Events()
	if ev.Type != DeviceDisconnected || ev.ID != "Piano" {
		t.Fatalf("event = %+v", ev)
	}
	if !made["Piano"].closed {
		t.Fatal("disconnected controller not closed")
	}
	if len(dm.Controllers()) != 0 {
		t.Fatal("controller kept after disconnect")
	}
}
