package services

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"sl-indications/models"
	"sl-indications/providers/slcatalog"
)

// reIndicationCode matches a full indication code DDDDD.DD.
var reIndicationCode = regexp.MustCompile(`\d{5}\.\d{2}`)

// textCodePatterns recover indication codes from the prose of older
// publications, where no machine-readable element exists. One battery per
// language; matches are unioned across all three bodies.
var textCodePatterns = []*regexp.Regexp{
	// German
	regexp.MustCompile(`(?i)Indikationscode[^:]{0,60}:\s*(\d{5}\.\d{2})`),
	regexp.MustCompile(`(?i)Code[^:]{0,40}Krankenversicherer[^:]{0,40}:\s*(\d{5}\.\d{2})`),
	regexp.MustCompile(`(?i)Code[^:]{0,60}bermitteln[^:]{0,20}:\s*(\d{5}\.\d{2})`),
	// French
	regexp.MustCompile(`(?i)code\s+(?:d.indication\s+)?suivant[^:]{0,60}:\s*(\d{5}\.\d{2})`),
	regexp.MustCompile(`(?i)code\s+correspondant[^:]{0,60}:\s*(\d{5}\.\d{2})`),
	// Italian
	regexp.MustCompile(`(?i)codice[^:]{0,60}:\s*(\d{5}\.\d{2})`),
	regexp.MustCompile(`(?i)All.assicuratore[^:]{0,60}:\s*(\d{5}\.\d{2})`),
}

// ContentHash computes the deduplication key of a limitation text: a fast
// non-cryptographic hash over the three language bodies joined with "|"
// (missing language = empty string).
func ContentHash(de, fr, it string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(de+"|"+fr+"|"+it))
}

// SplitCode splits an indication code into its dossier and indication parts.
func SplitCode(code string) (dossier, indication string) {
	if i := strings.IndexByte(code, '.'); i >= 0 {
		return code[:i], code[i+1:]
	}
	return code, ""
}

// ExtractCodes resolves the indication codes of one limitation block through
// the three-layer extraction: structured elements, then text patterns, then
// the dossier-only sentinel. Returns the codes (sorted, deduplicated) and
// their source tag; an empty slice means the block carries no codes at all.
func ExtractCodes(lim *slcatalog.Limitation, bagDossierNo string) ([]string, string) {
	if codes := structuredCodes(lim); len(codes) > 0 {
		return codes, models.CodeSourceStructured
	}
	if codes := textCodes(lim.DescriptionDe, lim.DescriptionFr, lim.DescriptionIt); len(codes) > 0 {
		return codes, models.CodeSourceTextParsed
	}
	if lim.LimitationType == "DIA" && bagDossierNo != "" {
		return []string{bagDossierNo + ".XX"}, models.CodeSourceFallback
	}
	return nil, ""
}

func structuredCodes(lim *slcatalog.Limitation) []string {
	var codes []string
	for _, ref := range lim.IndicationsCodes {
		if c := strings.TrimSpace(ref.Code); c != "" {
			codes = append(codes, c)
		}
	}
	// One publication month carried the codes under PmIndications instead.
	if len(codes) == 0 {
		for _, ref := range lim.PmIndications {
			if c := strings.TrimSpace(ref.Code); c != "" {
				codes = append(codes, c)
			}
		}
	}
	return dedupSorted(codes)
}

func textCodes(bodies ...string) []string {
	seen := map[string]bool{}
	for _, body := range bodies {
		if body == "" {
			continue
		}
		decoded := html.UnescapeString(body)
		for _, pattern := range textCodePatterns {
			for _, m := range pattern.FindAllStringSubmatch(decoded, -1) {
				raw := strings.TrimRight(m[1], ".")
				if reIndicationCode.MatchString(raw) {
					seen[raw] = true
				}
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func dedupSorted(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range in {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
