package playback

// Audio is what the coordinator drives. Implementations must not call back
// into the coordinator.
type Audio interface {
	PlayNote(pitch uint8, velocity float64)
	StopNote(pitch uint8)
	StopAllNotes()
	PlayClick(accent bool)
	SetVolume(v float64)
	SetMetronomeVolume(v float64)
}

// NopAudio discards everything
type NopAudio struct{}

func (NopAudio) PlayNote(uint8, float64)    {}
func (NopAudio) StopNote(uint8)             {}
func (NopAudio) StopAllNotes()              {}
func (NopAudio) PlayClick(bool)             {}
func (NopAudio) SetVolume(float64)          {}
func (NopAudio) SetMetronomeVolume(float64) {}
