package sanitizer

import (
	"strings"
	"unicode"

	"medbook/pkg/model"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeIdentifier collapses whitespace in patient and doctor ids.
// Case is preserved; ids are opaque.
func NormalizeIdentifier(id string) string {
	return TrimAndNormalize(id)
}

// NormalizeDatetime only trims; the layout is checked by the parser.
func NormalizeDatetime(datetime string) string {
	return strings.TrimSpace(datetime)
}

func NormalizeBookingRequest(req *model.BookingRequest) {
	if req == nil {
		return
	}
	req.PatientID = NormalizeIdentifier(req.PatientID)
	req.DoctorID = NormalizeIdentifier(req.DoctorID)
	req.Datetime = NormalizeDatetime(req.Datetime)
}
