// Package verdict turns free-text validation output into a structured
// pass/fail verdict. Parsing model prose is an inherently fallible boundary,
// so every malformed input degrades to a documented default instead of an
// error: status falls back to fail, confidence to 0.5.
package verdict

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sitewise-ai/sitewise/internal/store"
)

// DefaultConfidence is used when no parseable confidence marker is present.
const DefaultConfidence = 0.5

var confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*([0-9]*\.?[0-9]+)`)

// Verdict is the structured outcome extracted from validation text.
type Verdict struct {
	Status     store.Status `json:"status"`
	Confidence float64      `json:"confidence"`
}

// Extract parses the verdict out of model output. The status is pass only
// when the text carries an explicit "STATUS: PASS" marker (case-insensitive);
// anything else, including an absent marker, is fail. Confidence values
// outside [0, 1] are treated as malformed and fall back to the default.
// Extract never fails.
func Extract(text string) Verdict {
	v := Verdict{Status: store.StatusFail, Confidence: DefaultConfidence}

	if strings.Contains(strings.ToUpper(text), "STATUS: PASS") {
		v.Status = store.StatusPass
	}

	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil && f >= 0 && f <= 1 {
			v.Confidence = f
		}
	}
	return v
}
