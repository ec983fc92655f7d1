package services

import (
	"regexp"
	"sort"
	"strings"
)

// brandCanonical rewrites brand and biosimilar product names to one canonical
// token per substance, so "Lenalidomid Spirig, myélome multiple" and
// "Revlimid, myélome multiple" normalize to the same name. Keys are matched
// case-insensitively, longest first.
var brandCanonical = map[string]string{
	"LENALIDOMID SPIRIG HC": "LENALIDOMID", "LENALIDOMID SANDOZ": "LENALIDOMID",
	"LENALIDOMID-TEVA": "LENALIDOMID", "LENALIDOMID ZENTIVA": "LENALIDOMID",
	"LENALIDOMID VIATRIS": "LENALIDOMID", "LENALIDOMID DEVATIS": "LENALIDOMID",
	"LENALIDOMID ACCORD": "LENALIDOMID", "LENALIDOMID BMS": "LENALIDOMID",
	"LÉNALIDOMIDE DEVATIS": "LENALIDOMID", "LENALIDOMID SPIRIG": "LENALIDOMID",
	"REVLIMID": "LENALIDOMID",
	"POMALIDOMID SPIRIG HC": "POMALIDOMID", "POMALIDOMID SANDOZ": "POMALIDOMID",
	"POMALIDOMID-TEVA": "POMALIDOMID", "POMALIDOMID ZENTIVA": "POMALIDOMID",
	"POMALIDOMID ACCORD": "POMALIDOMID", "IMNOVID": "POMALIDOMID",
	"AZACITIDIN SPIRIG HC": "AZACITIDIN", "AZACITIDIN ACCORD": "AZACITIDIN",
	"AZACITIDIN MYLAN": "AZACITIDIN", "AZACITIDIN SANDOZ": "AZACITIDIN",
	"AZACITIDIN STADA": "AZACITIDIN", "AZACITIDIN VIATRIS": "AZACITIDIN",
	"AZACITIDIN IDEOGEN": "AZACITIDIN", "VIDAZA": "AZACITIDIN",
	"DECITABIN ACCORD": "DECITABIN", "DECITABIN IDEOGEN": "DECITABIN",
	"DECITABIN SANDOZ": "DECITABIN",
	"OGIVRI": "TRASTUZUMAB", "TRAZIMERA": "TRASTUZUMAB", "KANJINTI": "TRASTUZUMAB",
	"HERZUMA": "TRASTUZUMAB", "HERCEPTIN": "TRASTUZUMAB", "ZERCEPAC": "TRASTUZUMAB",
	"OYAVAS": "BEVACIZUMAB", "ZIRABEV": "BEVACIZUMAB", "AVASTIN": "BEVACIZUMAB",
	"TRUXIMA": "RITUXIMAB", "RIXATHON": "RITUXIMAB", "MABTHERA": "RITUXIMAB",
	"DARZALEX SC": "DARZALEX",
	"DARATUMUMAB": "DARZALEX", "NIVOLUMAB": "OPDIVO", "PEMBROLIZUMAB": "KEYTRUDA",
}

type brandRule struct {
	match     string // lowercase
	canonical string // lowercase
}

var brandRules = buildBrandRules()

func buildBrandRules() []brandRule {
	rules := make([]brandRule, 0, len(brandCanonical))
	for brand, canonical := range brandCanonical {
		rules = append(rules, brandRule{
			match:     strings.ToLower(brand),
			canonical: strings.ToLower(canonical),
		})
	}
	// Longest match first so "Lenalidomid Sandoz" wins over a bare substance
	// token that happens to be its prefix.
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].match) != len(rules[j].match) {
			return len(rules[i].match) > len(rules[j].match)
		}
		return rules[i].match < rules[j].match
	})
	return rules
}

var reKombination = regexp.MustCompile(`^Kombination\s+(\S+),?\s*(.*)$`)

// RewriteKombination maps the older "Kombination BRAND, X und Y" phrasing to
// the newer "BRAND in Kombination mit X und Y" so both forms compare equal.
// Applied to the raw name, before normalization.
func RewriteKombination(name string) string {
	m := reKombination.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return strings.TrimRight(m[1], ",") + " in Kombination mit " + m[2]
}

// CanonicalizeBrands rewrites brand names inside an already normalized
// (lowercased) indication name to their canonical substance token.
func CanonicalizeBrands(normalizedName string) string {
	result := normalizedName
	for _, rule := range brandRules {
		result = strings.ReplaceAll(result, rule.match, rule.canonical)
	}
	return result
}
