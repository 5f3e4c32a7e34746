// Package manifest reads the dataset manifest: patient identifiers mapped to
// the frames recorded for each patient.
//
// The manifest is read-only here. Merging and writing manifests happen
// elsewhere.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goodmattg/ultrasound-frames/internal/metadata"
)

// Frame describes one frame of a patient.
type Frame struct {
	ImageType metadata.ImageType `json:"IMAGE_TYPE"`
	TumorType string             `json:"TUMOR_TYPE"`
	// Frame is the frame's file name inside the patient directory.
	Frame string `json:"FRAME"`
	// Focus is the saved focus image name, once extracted.
	Focus string `json:"FOCUS,omitempty"`
}

// Entry is a frame together with the patient it belongs to.
type Entry struct {
	Patient string
	Frame
}

// Path returns root/TUMOR_TYPE/patient/FRAME.
func (e Entry) Path(root string) string {
	return filepath.Join(root, e.TumorType, e.Patient, e.Frame.Frame)
}

func (e Entry) String() string {
	return e.Patient + ": " + e.Frame.Frame
}

// Manifest maps patient identifiers to their frames in recorded order.
type Manifest map[string][]Frame

// Load decodes a manifest file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Patients returns the patient identifiers in sorted order.
func (m Manifest) Patients() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns every frame, patients in sorted order and frames in recorded
// order. A non-nil imageType keeps only frames of that type.
func (m Manifest) Entries(imageType *metadata.ImageType) []Entry {
	var out []Entry
	for _, id := range m.Patients() {
		for _, f := range m[id] {
			if imageType != nil && f.ImageType != *imageType {
				continue
			}
			out = append(out, Entry{Patient: id, Frame: f})
		}
	}
	return out
}

// TumorTypes returns the distinct tumor type tags in sorted order.
func (m Manifest) TumorTypes() []string {
	seen := map[string]bool{}
	for _, frames := range m {
		for _, f := range frames {
			seen[f.TumorType] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Missing returns the entries whose frame file does not exist under root.
func (m Manifest) Missing(root string) []Entry {
	var missing []Entry
	for _, e := range m.Entries(nil) {
		info, err := os.Stat(e.Path(root))
		if err != nil || info.IsDir() {
			missing = append(missing, e)
		}
	}
	return missing
}

// Validate checks that every frame names its tumor type and file.
func (m Manifest) Validate() error {
	var problems []string
	for _, e := range m.Entries(nil) {
		if e.TumorType == "" || e.Frame.Frame == "" {
			problems = append(problems, e.Patient)
		}
		if strings.ContainsAny(e.Frame.Frame, `/\`) {
			problems = append(problems, e.String())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("manifest has %d incomplete frame entries (first: %s)", len(problems), problems[0])
	}
	return nil
}
