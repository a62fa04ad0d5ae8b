package util

import "github.com/google/uuid"

// ID prefixes per record kind.
const (
	EpisodePrefix       = "ep_"
	SafetyEventPrefix   = "se_"
	ThoughtRecordPrefix = "tr_"
	WorryPrefix         = "wr_"
	InsightPrefix       = "wi_"
)

// NewID returns prefix followed by a random UUID.
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}
