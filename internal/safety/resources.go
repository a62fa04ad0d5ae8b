package safety

import "strings"

// Resource lists the contacts shown on the crisis screen for one region.
type Resource struct {
	Region    string `json:"region"`
	Crisis    string `json:"crisis,omitempty"`
	Text      string `json:"text,omitempty"`
	Emergency string `json:"emergency"`
	Website   string `json:"website,omitempty"`
}

// Region codes with a dedicated resource entry.
const (
	RegionUS            = "US"
	RegionUK            = "UK"
	RegionInternational = "International"
)

// EmergencyResources are the default hotline entries.
var EmergencyResources = map[string]Resource{
	RegionUS: {
		Region:    RegionUS,
		Crisis:    "988", // Suicide & Crisis Lifeline
		Text:      "Text HOME to 741741",
		Emergency: "911",
	},
	RegionUK: {
		Region:    RegionUK,
		Crisis:    "116 123", // Samaritans
		Text:      "Text SHOUT to 85258",
		Emergency: "999",
	},
	RegionInternational: {
		Region:    RegionInternational,
		Website:   "https://findahelpline.com",
		Emergency: "Local emergency number",
	},
}

// ResourcesFor returns the entry for region, falling back to the
// international entry for unknown or empty regions.
func ResourcesFor(region string) Resource {
	switch strings.ToUpper(strings.TrimSpace(region)) {
	case "US", "USA":
		return EmergencyResources[RegionUS]
	case "UK", "GB":
		return EmergencyResources[RegionUK]
	default:
		return EmergencyResources[RegionInternational]
	}
}
