package metadata

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// decimalRun is a digit run with at most one decimal part.
	decimalRun = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// dottedRun tolerates stray dots inside an integer readout.
	dottedRun = regexp.MustCompile(`\d+(?:\.\d+)*`)
)

// Readout is the raw recognized text of the three overlay regions.
type Readout struct {
	LeftBar string `json:"left_bar"`
	Size    string `json:"size"`
	Scale   string `json:"scale"`
}

// Lines splits recognized text into trimmed, upper-cased, non-empty lines.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToUpper(strings.TrimSpace(line))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Parse turns a readout into a record. Color-only fields are parsed only for
// color frames.
func Parse(r Readout, imageType ImageType) (*Record, error) {
	bar := Lines(r.LeftBar)

	rec := &Record{
		ImageType: imageType,
		Radiality: parseRadiality(bar),
		Scale:     parseScale(Lines(r.Scale)),
		Size:      parseSize(Lines(r.Size)),
	}
	if imageType != Color {
		return rec, nil
	}

	mode, level, err := parseColor(bar)
	if err != nil {
		return nil, err
	}
	wf, err := parseWallFilter(bar)
	if err != nil {
		return nil, err
	}
	prf, err := parsePRF(bar)
	if err != nil {
		return nil, err
	}
	rec.ColorMode = &mode
	rec.ColorLevel = &level
	rec.WallFilter = &wf
	rec.PRF = &prf
	return rec, nil
}

// longest returns the first longest match of re in s.
func longest(re *regexp.Regexp, s string) (string, bool) {
	best := ""
	for _, m := range re.FindAllString(s, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	return best, best != ""
}

// parseScale takes the largest per-line number and keeps it only if it lies
// strictly between 1 and 10 cm.
func parseScale(lines []string) *float64 {
	found := false
	maxVal := 0.0
	for _, line := range lines {
		s, ok := longest(decimalRun, line)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		if !found || v > maxVal {
			maxVal = v
			found = true
		}
	}
	if !found {
		return nil
	}
	mag := math.Log10(maxVal)
	if mag <= 0 || mag >= 1 {
		return nil
	}
	return &maxVal
}

func parseSize(lines []string) []float64 {
	out := []float64{}
	for _, line := range lines {
		s, ok := longest(decimalRun, line)
		if !ok {
			continue
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func parseRadiality(lines []string) Radiality {
	for _, line := range lines {
		if line == radialityTokens[Arad] {
			return Arad
		}
	}
	return Rad
}

func containing(lines []string, tok string) []string {
	var out []string
	for _, line := range lines {
		if strings.Contains(line, tok) {
			out = append(out, line)
		}
	}
	return out
}

// integerIn reads the longest digit run of line as an integer, ignoring dots.
func integerIn(line string) (int, bool) {
	best := ""
	for _, m := range dottedRun.FindAllString(line, -1) {
		m = strings.ReplaceAll(m, ".", "")
		if len(m) > len(best) {
			best = m
		}
	}
	if best == "" {
		return 0, false
	}
	v, err := strconv.Atoi(best)
	return v, err == nil
}

// CorrectColorLevel maps a level misread as 3X to 8X.
func CorrectColorLevel(level int) int {
	if level/10 == 3 {
		return 80 + level%10
	}
	return level
}

func parseColor(lines []string) (ColorMode, int, error) {
	cpa := containing(lines, colorModeTokens[CPA])
	col := containing(lines, colorModeTokens[ColorLevel])

	cpaOK, colOK := len(cpa) == 1, len(col) == 1
	if cpaOK == colOK {
		return 0, 0, invalid(FieldColorMode,
			"expected exactly one of CPA or COL (found %d CPA and %d COL lines)", len(cpa), len(col))
	}

	mode, line := CPA, cpa
	if colOK {
		mode, line = ColorLevel, col
	}
	level, ok := integerIn(line[0])
	if !ok {
		return 0, 0, invalid(FieldColorLevel, "no digits in %q", line[0])
	}
	return mode, CorrectColorLevel(level), nil
}

func single(lines []string, f Field, tok string) (string, error) {
	matched := containing(lines, tok)
	if len(matched) != 1 {
		return "", invalid(f, "expected exactly one line containing %s, found %d", tok, len(matched))
	}
	return matched[0], nil
}

func parseWallFilter(lines []string) (WallFilter, error) {
	line, err := single(lines, FieldWallFilter, fieldTokens[FieldWallFilter])
	if err != nil {
		return 0, err
	}
	rest := strings.TrimSpace(strings.ReplaceAll(line, fieldTokens[FieldWallFilter], ""))
	for i, tok := range wallFilterTokens {
		if rest == tok {
			return WallFilter(i), nil
		}
	}
	return 0, invalid(FieldWallFilter, "unknown mode %q", rest)
}

func parsePRF(lines []string) (int, error) {
	line, err := single(lines, FieldPRF, fieldTokens[FieldPRF])
	if err != nil {
		return 0, err
	}
	prf, ok := integerIn(line)
	if !ok {
		return 0, invalid(FieldPRF, "no digits in %q", line)
	}
	return prf, nil
}
