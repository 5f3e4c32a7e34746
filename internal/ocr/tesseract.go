package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Page segmentation modes used by the overlay readers.
const (
	// SparseText finds as much text as possible in no particular order.
	// Overlay crops hold short, scattered labels, so this is the default.
	SparseText = int(gosseract.PSM_SPARSE_TEXT)

	// SingleBlock treats the crop as one uniform block of text.
	SingleBlock = int(gosseract.PSM_SINGLE_BLOCK)
)

// Options controls a single recognition call.
type Options struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string `yaml:"language" json:"language"`

	// PageSegMode is a Tesseract page segmentation mode. Zero means SparseText.
	PageSegMode int `yaml:"page_seg_mode" json:"page_seg_mode"`

	// Whitelist restricts recognition to these characters. Empty allows all.
	Whitelist string `yaml:"whitelist" json:"whitelist"`
}

// Word is a recognized word with its confidence (0.0 to 1.0) and location.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

// Tesseract recognizes text in image files through the gosseract bindings.
//
// A new client is created per call, so a single Tesseract may be shared by
// concurrent workers.
type Tesseract struct {
	// TessdataPrefix overrides the directory holding *.traineddata files.
	// Empty uses the system default (or TESSDATA_PREFIX).
	TessdataPrefix string
}

// New returns a recognizer that loads language data from tessdataPrefix.
func New(tessdataPrefix string) *Tesseract {
	return &Tesseract{TessdataPrefix: tessdataPrefix}
}

func (t *Tesseract) client(opts Options) (*gosseract.Client, error) {
	client := gosseract.NewClient()

	if t.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	psm := opts.PageSegMode
	if psm == 0 {
		psm = SparseText
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	return client, nil
}

// Recognize returns the text Tesseract reads from the image at imagePath.
//
// A fresh gosseract client is created and closed for every call, so a
// Tesseract value is safe to share between goroutines.
//
// Parameters:
//   - imagePath: Path to a PNG, JPEG, TIFF or BMP file.
//   - opts: Language, page segmentation mode and an optional character
//     whitelist. An empty language means "eng"; page segmentation mode 0 means
//     sparse text.
//
// Returns:
//   - string: The recognized text, one output line per detected text line.
//   - error: Non-nil if the client cannot be configured, the image cannot be
//     loaded or recognition fails.
//
// # Whitelists
//
// The whitelist limits the characters Tesseract may emit. Metadata extraction
// uses "0123456789." for the numeric readouts so that glyph noise next to the
// digits is not read as letters.
func (t *Tesseract) Recognize(imagePath string, opts Options) (string, error) {
	client, err := t.client(opts)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// Words returns word-level results for the image at imagePath. Empty words
// are dropped.
func (t *Tesseract) Words(imagePath string, opts Options) ([]Word, error) {
	client, err := t.client(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get word boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			X1:         box.Box.Min.X,
			Y1:         box.Box.Min.Y,
			X2:         box.Box.Max.X,
			Y2:         box.Box.Max.Y,
		})
	}
	return words, nil
}

// Info describes the OCR backend.
type Info struct {
	Available      bool     `json:"available"`
	Version        string   `json:"version,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	TessdataPrefix string   `json:"tessdata_prefix,omitempty"`
	Error          string   `json:"error,omitempty"`
	Backend        string   `json:"backend"`
}

// Info reports the Tesseract version and installed languages.
func (t *Tesseract) Info() Info {
	info := Info{
		Backend:        "gosseract",
		TessdataPrefix: t.TessdataPrefix,
	}

	client := gosseract.NewClient()
	defer client.Close()
	if t.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.TessdataPrefix); err != nil {
			info.Error = err.Error()
			return info
		}
	}

	info.Version = client.Version()
	if info.Version == "" {
		info.Error = "tesseract version unavailable"
		return info
	}

	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		info.Error = fmt.Sprintf("failed to list languages: %v", err)
	}
	info.Languages = langs
	info.Available = true
	return info
}
