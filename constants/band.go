package constants

import "strings"

// Band is the compliance band a result falls into before deriving compliance.
type Band string

const (
	BandSatisfactory   Band = "satisfactory"
	BandAcceptable     Band = "acceptable"
	BandUnsatisfactory Band = "unsatisfactory"
	BandUndetermined   Band = "undetermined"
)

// Compliance derives isCompliant from the band: nil means "needs confirmation".
func (b Band) Compliance() *bool {
	var v bool
	switch b {
	case BandSatisfactory, BandAcceptable:
		v = true
	case BandUnsatisfactory:
		v = false
	default:
		return nil
	}
	return &v
}

// Label is the human-facing rendering used in exports.
func (b Band) Label() string {
	switch b {
	case BandSatisfactory:
		return "compliant"
	case BandAcceptable:
		return "compliant (acceptable)"
	case BandUnsatisfactory:
		return "non-compliant"
	default:
		return "needs confirmation"
	}
}

func ParseBand(s string) (Band, bool) {
	switch Band(strings.ToLower(strings.TrimSpace(s))) {
	case BandSatisfactory:
		return BandSatisfactory, true
	case BandAcceptable:
		return BandAcceptable, true
	case BandUnsatisfactory:
		return BandUnsatisfactory, true
	case BandUndetermined:
		return BandUndetermined, true
	}
	return "", false
}
