// Package safety scans free text for crisis and medical-emergency signals.
//
// Scanning is local and synchronous so crisis detection never depends on a
// network round-trip.
package safety

import "strings"

// CrisisKeywords signal suicidal ideation or self-harm intent.
var CrisisKeywords = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"end it all",
	"want to die",
	"better off dead",
	"self-harm",
	"self harm",
	"hurt myself",
	"cutting",
	"can't go on",
	"cannot go on",
	"no reason to live",
	"give up",
	"hopeless",
}

// MedicalKeywords signal an acute physical emergency.
var MedicalKeywords = []string{
	"chest pain",
	"heart attack",
	"can't breathe",
	"cannot breathe",
	"passing out",
	"fainting",
	"fainted",
	"blacking out",
	"numbness",
	"severe pain",
	"emergency",
}

// Result is the outcome of a scan. MatchedKeywords lists crisis matches
// before medical matches and is for audit logging only.
type Result struct {
	IsCrisis         bool     `json:"isCrisis"`
	IsMedicalConcern bool     `json:"isMedicalConcern"`
	MatchedKeywords  []string `json:"matchedKeywords"`
}

// Any reports whether either keyword set matched.
func (r Result) Any() bool {
	return r.IsCrisis || r.IsMedicalConcern
}

// apostrophes folds typographic apostrophes so "can’t" matches "can't".
var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// Check scans text against both keyword sets. Matching is case-insensitive
// substring matching and every match is recorded.
func Check(text string) Result {
	result := Result{MatchedKeywords: []string{}}
	if text == "" {
		return result
	}
	lower := apostrophes.Replace(strings.ToLower(text))

	for _, keyword := range CrisisKeywords {
		if strings.Contains(lower, keyword) {
			result.MatchedKeywords = append(result.MatchedKeywords, keyword)
			result.IsCrisis = true
		}
	}
	for _, keyword := range MedicalKeywords {
		if strings.Contains(lower, keyword) {
			result.MatchedKeywords = append(result.MatchedKeywords, keyword)
			result.IsMedicalConcern = true
		}
	}
	return result
}
