package services

import (
	"regexp"
	"strings"
)

// Bold names that are structural markers, not indication names. These appear
// as <b>UND</b>, <b>ODER</b> etc. inside criteria text.
var structuralBoldNames = map[string]bool{
	"UND": true, "ODER": true, "AND": true, "OR": true, "ET": true, "OU": true,
	"und": true, "oder": true, "and": true, "or": true, "et": true, "ou": true,
}

// Bold names starting with these prefixes are therapy conditions or section
// titles, not indications.
var structuralPrefixes = []string{
	"Vor Therapiebeginn",
	"Therapiefortführung", "Therapiefortsetzung",
	"Therapieabbruch",
	"nach AJCC",
	"Fr. ", // Swiss franc amounts
	"CHF ",
	"Maximal ",
	"Dosierungsschema",
	"Für alle vergütungspflichtigen",
	"Rückerstattungen",
	"Erwachsene",
	"Kriterien für die Vergütung",
}

// Limitation codes whose bold text never names indications.
var nonIndicationLimCodes = map[string]bool{"KLEINPACKUNG": true}

var reBold = regexp.MustCompile(`<b>(.+?)</b>`)

// reHeaderBold matches bold markers acting as paragraph-level headers: at the
// start of the text or directly after one or more line breaks. Inline bold
// (mid-sentence emphasis) is not matched.
var reHeaderBold = regexp.MustCompile(`(?m)(?:^|<br\s*/?>[\s\n]*(?:<br\s*/?>[\s\n]*)*)(<b>.+?</b>)`)

// RawSegment is one (header, body) pair in one language.
type RawSegment struct {
	Name string
	Text string
}

// AlignedSegment is one positional slice across the three languages. A
// language that produced no header at this position stays nil.
type AlignedSegment struct {
	Order  int
	NameDe *string
	NameFr *string
	NameIt *string
	TextDe *string
	TextFr *string
	TextIt *string
}

// IsStructuralName reports whether a bold name is a structural marker rather
// than an indication name.
func IsStructuralName(name string) bool {
	if name == "" {
		return true
	}
	stripped := strings.TrimRight(strings.TrimSpace(name), ":")
	if structuralBoldNames[stripped] {
		return true
	}
	for _, prefix := range structuralPrefixes {
		if strings.HasPrefix(stripped, prefix) {
			return true
		}
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(stripped)
	if digits != "" && isAllDigits(digits) {
		return true
	}
	if len(stripped) <= 3 && stripped == strings.ToLower(stripped) && stripped != strings.ToUpper(stripped) {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SplitByIndication splits one language body at paragraph-level bold
// headers. The body between a header and the next header (or end of text)
// becomes the segment text. No headers means no segmentation.
func SplitByIndication(text string) []RawSegment {
	if text == "" {
		return nil
	}
	headers := reHeaderBold.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return nil
	}

	segments := make([]RawSegment, 0, len(headers))
	for i, h := range headers {
		boldSpan := text[h[2]:h[3]]
		nameMatch := reBold.FindStringSubmatch(boldSpan)
		if nameMatch == nil {
			continue
		}
		segStart := h[1]
		segEnd := len(text)
		if i+1 < len(headers) {
			segEnd = headers[i+1][0]
		}
		segments = append(segments, RawSegment{
			Name: nameMatch[1],
			Text: strings.TrimSpace(text[segStart:segEnd]),
		})
	}
	return segments
}

// SegmentText splits all three language bodies and aligns them positionally:
// segment i in German, French and Italian denotes the same indication.
// Structural headers (judged on the German name) are dropped and the order
// renumbered; if every segment is structural, the text has no segmentation.
func SegmentText(descDe, descFr, descIt string) []AlignedSegment {
	segsDe := SplitByIndication(descDe)
	segsFr := SplitByIndication(descFr)
	segsIt := SplitByIndication(descIt)

	maxLen := len(segsDe)
	if len(segsFr) > maxLen {
		maxLen = len(segsFr)
	}
	if len(segsIt) > maxLen {
		maxLen = len(segsIt)
	}
	if maxLen == 0 {
		return nil
	}

	var aligned []AlignedSegment
	for i := 0; i < maxLen; i++ {
		seg := AlignedSegment{}
		if i < len(segsDe) {
			seg.NameDe, seg.TextDe = strPtr(segsDe[i].Name), strPtr(segsDe[i].Text)
		}
		if i < len(segsFr) {
			seg.NameFr, seg.TextFr = strPtr(segsFr[i].Name), strPtr(segsFr[i].Text)
		}
		if i < len(segsIt) {
			seg.NameIt, seg.TextIt = strPtr(segsIt[i].Name), strPtr(segsIt[i].Text)
		}
		if seg.NameDe == nil || IsStructuralName(*seg.NameDe) {
			continue
		}
		seg.Order = len(aligned)
		aligned = append(aligned, seg)
	}
	return aligned
}

func strPtr(s string) *string {
	return &s
}
