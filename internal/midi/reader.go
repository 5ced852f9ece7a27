package midi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"transcribecore/internal/models"
)

// File is a parsed Standard MIDI File: the division field plus the decoded
// note events of every non-conductor track. Used by tests and by any
// component that needs to re-validate a written artifact (spec.md §8 item 3:
// "opens successfully as a MIDI file with >=1 track").
type File struct {
	Format   uint16
	Division uint16
	Tracks   [][]models.Note // one entry per MTrk chunk, conductor track included as an empty-notes entry
}

// ReadSMF parses a Standard MIDI File from raw bytes, decoding note-on/
// note-off pairs back into models.Note values (velocity from the note-on,
// confidence left at zero since SMF carries none).
func ReadSMF(data []byte) (*File, error) {
	r := bytes.NewReader(data)

	var tag [4]byte
	if _, err := r.Read(tag[:]); err != nil || string(tag[:]) != "MThd" {
		return nil, fmt.Errorf("not a standard MIDI file (missing MThd)")
	}
	var hdrLen uint32
	if err := binary.Read(r, binary.BigEndian, &hdrLen); err != nil {
		return nil, err
	}
	hdr := make([]byte, hdrLen)
	if _, err := r.Read(hdr); err != nil {
		return nil, err
	}
	if len(hdr) < 6 {
		return nil, fmt.Errorf("truncated MThd chunk")
	}
	format := binary.BigEndian.Uint16(hdr[0:2])
	numTracks := binary.BigEndian.Uint16(hdr[2:4])
	division := binary.BigEndian.Uint16(hdr[4:6])

	f := &File{Format: format, Division: division}

	for i := 0; i < int(numTracks); i++ {
		if _, err := r.Read(tag[:]); err != nil {
			return nil, fmt.Errorf("truncated file: expected MTrk for track %d: %w", i, err)
		}
		if string(tag[:]) != "MTrk" {
			return nil, fmt.Errorf("expected MTrk chunk, got %q", tag)
		}
		var trackLen uint32
		if err := binary.Read(r, binary.BigEndian, &trackLen); err != nil {
			return nil, err
		}
		trackData := make([]byte, trackLen)
		if _, err := r.Read(trackData); err != nil {
			return nil, err
		}
		notes, err := decodeTrack(trackData, int(division))
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		f.Tracks = append(f.Tracks, notes)
	}

	if len(f.Tracks) == 0 {
		return nil, fmt.Errorf("midi file has no tracks")
	}
	return f, nil
}

type pendingNote struct {
	onsetTicks uint32
	velocity   byte
}

func decodeTrack(data []byte, division int) ([]models.Note, error) {
	pos := 0
	var ticks uint32
	open := map[byte]*pendingNote{}
	var notes []models.Note

	readVarLen := func() (uint32, error) {
		var v uint32
		for {
			if pos >= len(data) {
				return 0, fmt.Errorf("unexpected end of track reading varlen")
			}
			b := data[pos]
			pos++
			v = (v << 7) | uint32(b&0x7F)
			if b&0x80 == 0 {
				return v, nil
			}
		}
	}

	var runningStatus byte
	for pos < len(data) {
		delta, err := readVarLen()
		if err != nil {
			return nil, err
		}
		ticks += delta

		if pos >= len(data) {
			break
		}
		status := data[pos]
		if status < 0x80 {
			status = runningStatus
		} else {
			pos++
			runningStatus = status
		}

		switch {
		case status == 0xFF:
			if pos >= len(data) {
				return nil, fmt.Errorf("truncated meta event")
			}
			metaType := data[pos]
			pos++
			length, err := readVarLen()
			if err != nil {
				return nil, err
			}
			pos += int(length)
			if metaType == 0x2F {
				return notes, nil
			}
		case status == 0xF0 || status == 0xF7:
			length, err := readVarLen()
			if err != nil {
				return nil, err
			}
			pos += int(length)
		case status&0xF0 == 0x90:
			pitch := data[pos]
			vel := data[pos+1]
			pos += 2
			if vel == 0 {
				notes = closeAndAppend(open, &notes, pitch, ticks, division)
			} else {
				open[pitch] = &pendingNote{onsetTicks: ticks, velocity: vel}
			}
		case status&0xF0 == 0x80:
			pitch := data[pos]
			pos += 2
			notes = closeAndAppend(open, &notes, pitch, ticks, division)
		case status&0xF0 == 0xA0, status&0xF0 == 0xB0, status&0xF0 == 0xE0:
			pos += 2
		case status&0xF0 == 0xC0, status&0xF0 == 0xD0:
			pos += 1
		default:
			pos += 2
		}
	}
	return notes, nil
}

func closeAndAppend(open map[byte]*pendingNote, notes *[]models.Note, pitch byte, ticks uint32, division int) []models.Note {
	pending, ok := open[pitch]
	if !ok {
		return *notes
	}
	delete(open, pitch)
	onsetSec := ticksToSeconds(pending.onsetTicks, division, DefaultTempoBPM)
	offsetSec := ticksToSeconds(ticks, division, DefaultTempoBPM)
	*notes = append(*notes, models.Note{
		Pitch:    int(pitch),
		Onset:    onsetSec,
		Offset:   offsetSec,
		Velocity: int(pending.velocity),
	})
	return *notes
}

func ticksToSeconds(ticks uint32, division int, bpm float64) float64 {
	if division <= 0 {
		division = TicksPerQuarter
	}
	beats := float64(ticks) / float64(division)
	return beats * (60.0 / bpm)
}
