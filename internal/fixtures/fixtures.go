// Package fixtures holds recorded hand gestures for end-to-end tests.
package fixtures

import (
	"embed"
	"fmt"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/mirror/internal/cursor"
	"github.com/ayusman/mirror/internal/detector"
	"github.com/ayusman/mirror/internal/layout"
)

//go:embed testdata/recordings/*.json
var recordingsFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame is one recorded detector result: the pinch midpoint in render
// surface pixels and the thumb-index gap in camera units.
type Frame struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Gap  float64 `json:"gap"`
	Lost bool    `json:"lost"`
}

// Expect is the layout a recording should leave behind.
type Expect struct {
	Widget    string       `json:"widget"`
	Position  layout.Point `json:"position"`
	Committed bool         `json:"committed"`
}

// Recording is a gesture captured against a fixed viewport.
type Recording struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Viewport    cursor.Viewport `json:"viewport"`
	Frames      []Frame         `json:"frames"`
	Expect      Expect          `json:"expect"`
}

// Hands converts the frames to detector results. Lost frames yield no hand.
func (r *Recording) Hands() [][]detector.HandLandmarks {
	out := make([][]detector.HandLandmarks, len(r.Frames))
	for i, f := range r.Frames {
		if f.Lost {
			continue
		}
		// The camera faces the user, so x is mirrored back into camera space.
		cx := 1 - f.X/r.Viewport.Width
		cy := f.Y / r.Viewport.Height
		out[i] = []detector.HandLandmarks{detector.PinchLandmarks(cx, cy, f.Gap)}
	}
	return out
}

// LoadRecording loads a recording by name.
func LoadRecording(name string) (*Recording, error) {
	data, err := recordingsFS.ReadFile("testdata/recordings/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}

	var r Recording
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", name, err)
	}
	if r.Viewport.Empty() {
		return nil, fmt.Errorf("recording %s: empty viewport", name)
	}
	return &r, nil
}

// Recordings lists the names of every embedded recording.
func Recordings() ([]string, error) {
	entries, err := recordingsFS.ReadDir("testdata/recordings")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	return names, nil
}
