package services

import (
	"sort"

	"sl-indications/models"
)

// Layer 1: the segment name itself contains a literal code token.
func matchEmbeddedCode(unmatched []*segCtx, _ *RefData) []Assignment {
	var out []Assignment
	for _, sc := range unmatched {
		if code := reIndicationCode.FindString(sc.rawName); code != "" {
			out = append(out, Assignment{sc.seg.ID, code, MatchEmbedded, 1.0})
		}
	}
	return out
}

// Layer 2: exactly one structured-or-text-parsed code and exactly one
// segment on the text.
func matchDirectPairing(unmatched []*segCtx, _ *RefData) []Assignment {
	var out []Assignment
	for _, sc := range unmatched {
		if len(sc.group.segments) != 1 {
			continue
		}
		codes := realCodes(sc.group, models.CodeSourceStructured, models.CodeSourceTextParsed)
		if len(codes) == 1 {
			out = append(out, Assignment{sc.seg.ID, codes[0].Code, MatchDirect, 1.0})
		}
	}
	return out
}

// Layer 3: sole segment, possibly several codes (biosimilar shared label).
// The sole segment gets the first code in sorted order; which codes apply is
// unambiguous, only how many, and the code links carry the full set.
func matchSharedText(unmatched []*segCtx, _ *RefData) []Assignment {
	var out []Assignment
	for _, sc := range unmatched {
		if len(sc.group.segments) != 1 {
			continue
		}
		codes := realCodes(sc.group, models.CodeSourceStructured, models.CodeSourceTextParsed)
		if len(codes) > 0 {
			out = append(out, Assignment{sc.seg.ID, codes[0].Code, MatchSharedText, 0.9})
		}
	}
	return out
}

// Layer 4: N segments, N distinct non-fallback codes, one dossier. Codes
// sorted by numeric indication part pair with segments in document order.
func matchOrdinalPosition(unmatched []*segCtx, _ *RefData) []Assignment {
	return ordinalPairings(unmatched, MatchOrdinal, 0.8)
}

// ordinalPairings computes index-for-index pairings for texts whose segment
// and code counts agree and whose codes share one dossier, assigning only
// the segments present in the unmatched slice.
func ordinalPairings(unmatched []*segCtx, source string, confidence float64) []Assignment {
	var out []Assignment
	seenText := map[uint]bool{}
	byID := map[uint]*segCtx{}
	for _, sc := range unmatched {
		byID[sc.seg.ID] = sc
	}
	for _, sc := range unmatched {
		g := sc.group
		if seenText[g.textID] {
			continue
		}
		seenText[g.textID] = true

		codes := realCodes(g, models.CodeSourceStructured, models.CodeSourceTextParsed)
		if len(codes) < 2 || len(codes) != len(g.segments) || !sameDossier(codes) {
			continue
		}
		sort.Slice(codes, func(i, j int) bool {
			_, pi := SplitCode(codes[i].Code)
			_, pj := SplitCode(codes[j].Code)
			return pi < pj
		})
		for i := range g.segments {
			if target, ok := byID[g.segments[i].ID]; ok {
				out = append(out, Assignment{target.seg.ID, codes[i].Code, source, confidence})
			}
		}
	}
	return out
}

// Layer 5: normalized-name lookup in the reference map.
func matchNormalizedName(unmatched []*segCtx, ref *RefData) []Assignment {
	return lookupByName(unmatched, ref.byNorm, func(sc *segCtx) string { return sc.norm },
		MatchNormSame, ConfNormSameDossier, MatchNormCross, ConfNormCrossDossier)
}

// Layer 6: reference entries naming several indications separated by "|"
// match part-by-part, and segments in the old "Kombination BRAND, X und Y"
// phrasing are retried under the rewritten form.
func matchPipeKombination(unmatched []*segCtx, ref *RefData) []Assignment {
	var out []Assignment
	var rest []*segCtx
	for _, sc := range unmatched {
		if a, ok := pipePartAssignment(sc, ref); ok {
			out = append(out, a)
		} else {
			rest = append(rest, sc)
		}
	}
	// Kombination-rewritten names against the standard brand-normalized map.
	out = append(out, lookupByName(rest, ref.byBrandNorm, func(sc *segCtx) string {
		if sc.kombiNorm == sc.brandNorm {
			return ""
		}
		return sc.kombiNorm
	}, MatchKombiSame, ConfKombiSameDossier, MatchKombiCross, ConfKombiCrossDoss)...)
	return out
}

func pipePartAssignment(sc *segCtx, ref *RefData) (Assignment, bool) {
	variants := []string{sc.norm}
	if sc.kombiNorm != sc.norm {
		variants = append(variants, sc.kombiNorm)
	}
	for _, variant := range variants {
		if variant == "" {
			continue
		}
		candidates := ref.byPipePart[variant]
		if len(candidates) == 0 {
			continue
		}
		for _, cand := range candidates {
			if sc.dossier != "" && cand.BagDossierNo == sc.dossier {
				return Assignment{sc.seg.ID, cand.Code, MatchPipeSame, ConfPipeSameDossier}, true
			}
		}
		if sc.dossier == "" {
			continue
		}
		if part := uniqueIndicationPart(candidates); part != "" {
			return Assignment{sc.seg.ID, sc.dossier + "." + part, MatchPipeCross, ConfPipeCrossDossier}, true
		}
	}
	return Assignment{}, false
}

// Layer 7: like layer 5, with brand names rewritten to their canonical
// substance token first.
func matchBrandCanonical(unmatched []*segCtx, ref *RefData) []Assignment {
	return lookupByName(unmatched, ref.byBrandNorm, func(sc *segCtx) string { return sc.brandNorm },
		MatchBrandSame, ConfBrandSameDossier, MatchBrandCross, ConfBrandCrossDoss)
}

func lookupByName(unmatched []*segCtx, lookup map[string][]models.NameCode,
	key func(*segCtx) string, sameTag string, sameConf float64,
	crossTag string, crossConf float64) []Assignment {

	var out []Assignment
	for _, sc := range unmatched {
		k := key(sc)
		if k == "" {
			continue
		}
		candidates := lookup[k]
		if len(candidates) == 0 {
			continue
		}

		// Same-dossier hit wins outright.
		matched := false
		for _, cand := range candidates {
			if sc.dossier != "" && cand.BagDossierNo == sc.dossier {
				out = append(out, Assignment{sc.seg.ID, cand.Code, sameTag, sameConf})
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		// Cross-dossier synthesis only when every candidate agrees on the
		// indication part; disagreement means the suffix is dossier-specific
		// and no assignment is safe.
		if sc.dossier == "" {
			continue
		}
		if part := uniqueIndicationPart(candidates); part != "" {
			out = append(out, Assignment{sc.seg.ID, sc.dossier + "." + part, crossTag, crossConf})
		}
	}
	return out
}

// uniqueIndicationPart returns the indication part shared by every candidate
// code, or "" when they disagree.
func uniqueIndicationPart(candidates []models.NameCode) string {
	part := ""
	for _, cand := range candidates {
		_, p := SplitCode(cand.Code)
		if p == "" || (part != "" && p != part) {
			return ""
		}
		part = p
	}
	return part
}

// Layer 8: similarity fallback, same dossier only.
func matchFuzzyName(unmatched []*segCtx, ref *RefData) []Assignment {
	var out []Assignment
	for _, sc := range unmatched {
		if sc.norm == "" || sc.dossier == "" {
			continue
		}
		entries := ref.byDossier[sc.dossier]
		if len(entries) == 0 {
			continue
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = NormalizeName(e.NameDe)
		}
		if idx, ratio := BestFuzzyMatch(sc.norm, names); idx >= 0 {
			out = append(out, Assignment{sc.seg.ID, entries[idx].Code, MatchFuzzy, ratio})
		}
	}
	return out
}

// Layer 9: single segment, single non-fallback code. Restates layer 2 as a
// safety net after the name layers ran, and also accepts text-recovered
// codes regardless of source.
func matchSingleSegment(unmatched []*segCtx, _ *RefData) []Assignment {
	var out []Assignment
	for _, sc := range unmatched {
		if len(sc.group.segments) != 1 {
			continue
		}
		distinct := map[string]bool{}
		var code string
		for _, c := range sc.group.codes {
			if c.IsFallback() {
				continue
			}
			distinct[c.Code] = true
			code = c.Code
		}
		if len(distinct) == 1 {
			out = append(out, Assignment{sc.seg.ID, code, MatchSingle, 1.0})
		}
	}
	return out
}

// Layer 10: positional last resort. Only fires when every segment of a text
// is still unmatched and the counts agree; pairs by a stable sort key.
func matchPositional(unmatched []*segCtx, _ *RefData) []Assignment {
	perText := map[uint][]*segCtx{}
	for _, sc := range unmatched {
		perText[sc.group.textID] = append(perText[sc.group.textID], sc)
	}

	var out []Assignment
	seen := map[uint]bool{}
	for _, sc := range unmatched {
		g := sc.group
		if seen[g.textID] {
			continue
		}
		seen[g.textID] = true

		group := perText[g.textID]
		if len(group) != len(g.segments) {
			continue // some segment already matched earlier
		}
		var codes []string
		distinct := map[string]bool{}
		for _, c := range g.codes {
			if c.IsFallback() || distinct[c.Code] {
				continue
			}
			distinct[c.Code] = true
			codes = append(codes, c.Code)
		}
		if len(codes) == 0 || len(codes) != len(group) {
			continue
		}
		sort.Strings(codes)
		sort.Slice(group, func(i, j int) bool {
			return group[i].seg.SegmentOrder < group[j].seg.SegmentOrder
		})
		for i, target := range group {
			out = append(out, Assignment{target.seg.ID, codes[i], MatchPositional, 0.8})
		}
	}
	return out
}
