package presentation

import (
	"encoding/json"
	"strings"

	"github.com/okian/fheprop/internal/domain/model"
)

// DefaultDimensionLabels are shown when a project's label list is unusable.
var DefaultDimensionLabels = []string{"Location", "Quality", "Amenities", "Transport", "Value", "Potential"}

// DefaultDimensionsJSON is the label list new projects are created with.
const DefaultDimensionsJSON = `["Location","Quality","Amenities","Transport","Value","Potential"]`

// ParseDimensions decodes a project's JSON label list. Anything other than
// exactly one non-empty label per rated dimension falls back to the defaults.
func ParseDimensions(raw string) []string {
	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil || len(labels) != model.DimensionCount {
		return defaultLabels()
	}
	for i, l := range labels {
		labels[i] = strings.TrimSpace(l)
		if labels[i] == "" {
			return defaultLabels()
		}
	}
	return labels
}

func defaultLabels() []string {
	return append([]string(nil), DefaultDimensionLabels...)
}
