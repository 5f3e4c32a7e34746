package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Record is the structured metadata read from one frame's overlays.
//
// ColorMode, ColorLevel, WallFilter and PRF are set only for color frames and
// are nil otherwise. Scale is nil when no plausible scale was read.
type Record struct {
	ImageType ImageType
	Radiality Radiality

	// Scale is the depth scale in centimetres.
	Scale *float64

	// Size holds the caliper readouts in the order they were recognized.
	// Informational only; nothing validates it.
	Size []float64

	ColorMode  *ColorMode
	ColorLevel *int
	WallFilter *WallFilter
	PRF        *int
}

type recordJSON struct {
	ImageType  ImageType   `json:"IMAGE_TYPE"`
	Radiality  Radiality   `json:"RADIALITY"`
	Scale      *float64    `json:"SCALE"`
	Size       []float64   `json:"SIZE"`
	ColorMode  *ColorMode  `json:"COLOR_MODE,omitempty"`
	ColorLevel *int        `json:"COL,omitempty"`
	WallFilter *WallFilter `json:"WF,omitempty"`
	PRF        *int        `json:"PRF,omitempty"`
}

// MarshalJSON writes the record with its field tokens as keys. Color-only
// keys are omitted for grayscale records.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ImageType: r.ImageType,
		Radiality: r.Radiality,
		Scale:     r.Scale,
		Size:      r.Size,
	}
	if out.Size == nil {
		out.Size = []float64{}
	}
	if r.ImageType == Color {
		out.ColorMode = r.ColorMode
		out.ColorLevel = r.ColorLevel
		out.WallFilter = r.WallFilter
		out.PRF = r.PRF
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a record written by MarshalJSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	var in recordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Record{
		ImageType:  in.ImageType,
		Radiality:  in.Radiality,
		Scale:      in.Scale,
		Size:       in.Size,
		ColorMode:  in.ColorMode,
		ColorLevel: in.ColorLevel,
		WallFilter: in.WallFilter,
		PRF:        in.PRF,
	}
	return r.Validate()
}

// Validate checks that color-only fields are present exactly when the record
// describes a color frame.
func (r Record) Validate() error {
	set := r.ColorMode != nil || r.ColorLevel != nil || r.WallFilter != nil || r.PRF != nil
	all := r.ColorMode != nil && r.ColorLevel != nil && r.WallFilter != nil && r.PRF != nil
	switch r.ImageType {
	case Color:
		if !all {
			return errors.New("color record is missing color fields")
		}
	case Grayscale:
		if set {
			return errors.New("grayscale record carries color fields")
		}
	default:
		return fmt.Errorf("%w: image type %d", ErrUnknownToken, int(r.ImageType))
	}
	return nil
}

// Values returns the record as a field-keyed mapping. Nil scale maps to nil;
// color-only fields are absent for grayscale records.
func (r Record) Values() map[Field]any {
	out := map[Field]any{
		FieldImageType: r.ImageType.String(),
		FieldRadiality: r.Radiality.String(),
		FieldSize:      r.Size,
		FieldScale:     nil,
	}
	if r.Scale != nil {
		out[FieldScale] = *r.Scale
	}
	if r.ImageType != Color {
		return out
	}
	if r.ColorMode != nil {
		out[FieldColorMode] = r.ColorMode.String()
	}
	if r.ColorLevel != nil {
		out[FieldColorLevel] = *r.ColorLevel
	}
	if r.WallFilter != nil {
		out[FieldWallFilter] = r.WallFilter.String()
	}
	if r.PRF != nil {
		out[FieldPRF] = *r.PRF
	}
	return out
}
