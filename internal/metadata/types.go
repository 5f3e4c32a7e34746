package metadata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownToken is returned when a token does not name a value of the
// enumeration it is parsed into.
var ErrUnknownToken = errors.New("unknown token")

// ImageType discriminates grayscale scan frames from color (CPA/Doppler) frames.
type ImageType int

const (
	Grayscale ImageType = iota
	Color
)

var imageTypeTokens = [...]string{
	Grayscale: "GRAYSCALE",
	Color:     "COLOR",
}

func (t ImageType) String() string { return token(imageTypeTokens[:], int(t), "ImageType") }

// ParseImageType accepts "GRAYSCALE" or "COLOR" in any case.
func ParseImageType(s string) (ImageType, error) {
	i, err := lookup(imageTypeTokens[:], s, "image type")
	return ImageType(i), err
}

func (t ImageType) MarshalText() ([]byte, error) { return marshal(imageTypeTokens[:], int(t), "image type") }

func (t *ImageType) UnmarshalText(b []byte) error {
	v, err := ParseImageType(string(b))
	*t = v
	return err
}

// Radiality is the probe orientation shown on the left bar.
type Radiality int

const (
	// Rad is the default when no anti-radial marker is recognized.
	Rad Radiality = iota
	// Arad marks an anti-radial scan.
	Arad
)

var radialityTokens = [...]string{
	Rad:  "RAD",
	Arad: "ARAD",
}

func (r Radiality) String() string { return token(radialityTokens[:], int(r), "Radiality") }

// ParseRadiality accepts "RAD" or "ARAD" in any case.
func ParseRadiality(s string) (Radiality, error) {
	i, err := lookup(radialityTokens[:], s, "radiality")
	return Radiality(i), err
}

func (r Radiality) MarshalText() ([]byte, error) { return marshal(radialityTokens[:], int(r), "radiality") }

func (r *Radiality) UnmarshalText(b []byte) error {
	v, err := ParseRadiality(string(b))
	*r = v
	return err
}

// ColorMode is the Doppler mode of a color frame. Its token is the overlay
// label the mode is recognized by.
type ColorMode int

const (
	// CPA is color power angio.
	CPA ColorMode = iota
	// ColorLevel is color flow, labelled COL on the overlay.
	ColorLevel
)

var colorModeTokens = [...]string{
	CPA:        "CPA",
	ColorLevel: "COL",
}

func (m ColorMode) String() string { return token(colorModeTokens[:], int(m), "ColorMode") }

// ParseColorMode accepts "CPA" or "COL" in any case.
func ParseColorMode(s string) (ColorMode, error) {
	i, err := lookup(colorModeTokens[:], s, "color mode")
	return ColorMode(i), err
}

func (m ColorMode) MarshalText() ([]byte, error) { return marshal(colorModeTokens[:], int(m), "color mode") }

func (m *ColorMode) UnmarshalText(b []byte) error {
	v, err := ParseColorMode(string(b))
	*m = v
	return err
}

// WallFilter is the Doppler wall filter setting.
type WallFilter int

const (
	WallFilterLow WallFilter = iota
	WallFilterMed
	WallFilterHigh
)

var wallFilterTokens = [...]string{
	WallFilterLow:  "LOW",
	WallFilterMed:  "MED",
	WallFilterHigh: "HIGH",
}

func (w WallFilter) String() string { return token(wallFilterTokens[:], int(w), "WallFilter") }

// ParseWallFilter accepts "LOW", "MED" or "HIGH" in any case. Longer spellings
// such as "MEDIUM" are rejected.
func ParseWallFilter(s string) (WallFilter, error) {
	i, err := lookup(wallFilterTokens[:], s, "wall filter")
	return WallFilter(i), err
}

func (w WallFilter) MarshalText() ([]byte, error) { return marshal(wallFilterTokens[:], int(w), "wall filter") }

func (w *WallFilter) UnmarshalText(b []byte) error {
	v, err := ParseWallFilter(string(b))
	*w = v
	return err
}

// Field names a key of a metadata record. Its token is the record's JSON key.
type Field int

const (
	FieldImageType Field = iota
	FieldRadiality
	FieldScale
	FieldSize
	FieldColorMode
	FieldColorLevel
	FieldWallFilter
	FieldPRF
)

var fieldTokens = [...]string{
	FieldImageType:  "IMAGE_TYPE",
	FieldRadiality:  "RADIALITY",
	FieldScale:      "SCALE",
	FieldSize:       "SIZE",
	FieldColorMode:  "COLOR_MODE",
	FieldColorLevel: "COL",
	FieldWallFilter: "WF",
	FieldPRF:        "PRF",
}

// Fields lists every record key in output order.
func Fields() []Field {
	out := make([]Field, len(fieldTokens))
	for i := range fieldTokens {
		out[i] = Field(i)
	}
	return out
}

func (f Field) String() string { return token(fieldTokens[:], int(f), "Field") }

// ParseField accepts a record key such as "WF" in any case.
func ParseField(s string) (Field, error) {
	i, err := lookup(fieldTokens[:], s, "field")
	return Field(i), err
}

// ColorOnly reports whether the field is recorded for color frames only.
func (f Field) ColorOnly() bool {
	switch f {
	case FieldColorMode, FieldColorLevel, FieldWallFilter, FieldPRF:
		return true
	}
	return false
}

func token(tokens []string, i int, kind string) string {
	if i < 0 || i >= len(tokens) {
		return fmt.Sprintf("%s(%d)", kind, i)
	}
	return tokens[i]
}

func lookup(tokens []string, s, kind string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, tok := range tokens {
		if tok == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s %q", ErrUnknownToken, kind, s)
}

func marshal(tokens []string, i int, kind string) ([]byte, error) {
	if i < 0 || i >= len(tokens) {
		return nil, fmt.Errorf("%w: %s %d", ErrUnknownToken, kind, i)
	}
	return []byte(tokens[i]), nil
}
