package survey

import (
	"strconv"
	"strings"
)

// Human readable names of the grouped question families, by field prefix.
var categoryLabels = map[string]string{
	"prod":          "products and services",
	"accessability": "Accessibility",
	"communication": "Communication",
	"complaints":    "complaints handling",
	"service":       "Satisfaction with services",
	"product":       "Satisfaction with Products",
	"image":         "Image/Identity",
	"delivery":      "Service Delivery",
	"procurement":   "Procurement (Suppliers only)",
	"channel":       "Dissemination channels",
}

var likertLabels = map[string]string{
	"1": "Strongly Disagree",
	"2": "Disagree",
	"3": "Neutral",
	"4": "Agree",
	"5": "Strongly Agree",
}

var orgTypeLabels = map[string]string{
	"1": "Private",
	"2": "Public",
	"3": "Supplier/Contractor",
	"4": "NGO",
}

// CategoryLabel translates a field prefix, unknown prefixes are returned as is.
func CategoryLabel(prefix string) string {
	return lookup(categoryLabels, prefix)
}

// LikertLabel translates a "1".."5" rating.
func LikertLabel(value string) string {
	return lookup(likertLabels, value)
}

func OrgTypeLabel(code string) string {
	return lookup(orgTypeLabels, code)
}

// QuestionLabel shortens "prod_3" to "Q3". Keys without a numeric suffix are
// returned unchanged.
func QuestionLabel(key string) string {
	suffix := key[strings.LastIndexByte(key, '_')+1:]
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return key
	}
	return "Q" + strconv.Itoa(n)
}

func lookup(labels map[string]string, key string) string {
	if label, ok := labels[key]; ok {
		return label
	}
	return key
}
