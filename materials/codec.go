package materials

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// marker prefixes the serialized form of a structured material. A stored
// string without the marker is a legacy bare label.
const marker = "material-v1:"

var ErrIndexOutOfRange = errors.New("material index out of range")

type Kind string

const (
	KindDocument     Kind = "document"
	KindVideo        Kind = "video"
	KindLink         Kind = "link"
	KindImage        Kind = "image"
	KindText         Kind = "text"
	KindPresentation Kind = "presentation"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDocument, KindVideo, KindLink, KindImage, KindText, KindPresentation:
		return true
	}
	return false
}

// Structured is the record form of a session material. Either Location or
// inline Content must be set.
type Structured struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Location string `json:"location,omitempty"`
	Content  string `json:"content,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Visible  bool   `json:"visible"`
}

func (s *Structured) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("material name is required")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown material kind %q", s.Kind)
	}
	if s.Location == "" && s.Content == "" {
		return fmt.Errorf("material needs a location or inline content")
	}
	if s.Size < 0 {
		return fmt.Errorf("material size cannot be negative")
	}
	return nil
}

// Material is the decoded view of one stored material string: a legacy label
// when Structured is nil, the structured record otherwise.
type Material struct {
	Label      string
	Structured *Structured
}

func Legacy(label string) Material {
	return Material{Label: label}
}

func FromStructured(s Structured) Material {
	return Material{Structured: &s}
}

func (m Material) IsLegacy() bool {
	return m.Structured == nil
}

// Encode serializes the material back to its stored string form. A legacy
// material encodes to its bare label, a structured one to the marker plus its
// JSON record. Encoding is canonical: Decode followed by Encode returns the
// same string for anything this package produced.
func (m Material) Encode() string {
	if m.Structured == nil {
		return m.Label
	}
	body, _ := json.Marshal(m.Structured)
	return marker + string(body)
}

// Decode never fails: a string without the marker, or with a marker but an
// unparseable payload, comes back as a legacy label holding the whole string.
func Decode(raw string) Material {
	if !strings.HasPrefix(raw, marker) {
		return Legacy(raw)
	}
	var s Structured
	if err := json.Unmarshal([]byte(raw[len(marker):]), &s); err != nil {
		return Legacy(raw)
	}
	return Material{Structured: &s}
}

func DecodeAll(encoded []string) []Material {
	out := make([]Material, len(encoded))
	for i, raw := range encoded {
		out[i] = Decode(raw)
	}
	return out
}

func EncodeAll(list []Material) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.Encode()
	}
	return out
}

// RemoveIndex drops the i-th element of the decoded list view and returns the
// re-encoded list. Surviving entries keep their original variant and order.
func RemoveIndex(encoded []string, i int) ([]string, error) {
	list := DecodeAll(encoded)
	if i < 0 || i >= len(list) {
		return nil, ErrIndexOutOfRange
	}
	kept := append(list[:i:i], list[i+1:]...)
	return EncodeAll(kept), nil
}
