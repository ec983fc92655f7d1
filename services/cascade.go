package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sl-indications/models"
)

// Segment match sources, one per cascade layer.
const (
	MatchEmbedded   = "EMBEDDED_CODE"
	MatchDirect     = "DIRECT_PAIRING"
	MatchSharedText = "SHARED_TEXT"
	MatchOrdinal    = "ORDINAL_POSITION"
	MatchNormSame   = "NORM_SAME_DOSSIER"
	MatchNormCross  = "NORM_CROSS_DOSSIER"
	MatchPipeSame   = "PIPE_PART_SAME_DOSSIER"
	MatchPipeCross  = "PIPE_PART_CROSS_DOSSIER"
	MatchKombiSame  = "KOMBI_SAME_DOSSIER"
	MatchKombiCross = "KOMBI_CROSS_DOSSIER"
	MatchBrandSame  = "BRAND_SAME_DOSSIER"
	MatchBrandCross = "BRAND_CROSS_DOSSIER"
	MatchFuzzy      = "FUZZY_NAME"
	MatchSingle     = "SINGLE_SEGMENT"
	MatchPositional = "POSITIONAL"
)

// Assignment is one cascade decision: a code for a segment, with the layer's
// provenance tag and confidence.
type Assignment struct {
	SegmentID  uint
	Code       string
	Source     string
	Confidence float64
}

// segCtx is one still-unmatched segment with everything a matcher may need:
// its normalized names, its dossier, and its text's full segment/code group.
type segCtx struct {
	seg       models.Segment
	rawName   string
	norm      string
	brandNorm string
	kombiNorm string
	dossier   string
	group     *textGroup
}

// RefData is the read-only reference material the matchers work against. The
// cascade never mutates the underlying name-code table.
type RefData struct {
	byNorm      map[string][]models.NameCode
	byBrandNorm map[string][]models.NameCode
	byPipePart  map[string][]models.NameCode
	byDossier   map[string][]models.NameCode
}

// Matcher is one cascade layer: it inspects the unmatched segments and
// returns assignments. It must not assign a segment twice and must not touch
// segments outside the given slice; the driver removes matched segments
// before the next layer runs, so later layers can never revisit them.
type Matcher struct {
	Name string
	Fn   func(unmatched []*segCtx, ref *RefData) []Assignment
}

// Cascade resolves the indication code of every segment that still lacks
// one, in strictly decreasing confidence order.
type Cascade struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewCascade creates the segment-code matching cascade.
func NewCascade(db *gorm.DB, logger *zap.Logger) *Cascade {
	return &Cascade{DB: db, Logger: logger}
}

// Matchers returns the cascade layers in their fixed order.
func (c *Cascade) Matchers() []Matcher {
	return []Matcher{
		{"embedded_code", matchEmbeddedCode},
		{"direct_pairing", matchDirectPairing},
		{"shared_text", matchSharedText},
		{"ordinal_position", matchOrdinalPosition},
		{"normalized_name", matchNormalizedName},
		{"pipe_kombination", matchPipeKombination},
		{"brand_canonical", matchBrandCanonical},
		{"fuzzy_name", matchFuzzyName},
		{"single_segment", matchSingleSegment},
		{"positional", matchPositional},
	}
}

// Run executes the full cascade and persists every assignment. Returns the
// per-layer match counts plus the number of segments left unresolved under
// the key "unresolved".
func (c *Cascade) Run() (map[string]int, error) {
	groups, err := loadTextGroups(c.DB)
	if err != nil {
		return nil, err
	}
	ref, err := c.loadRefData()
	if err != nil {
		return nil, err
	}

	unmatched := buildSegCtx(groups)
	counts := map[string]int{}

	for _, m := range c.Matchers() {
		assignments := m.Fn(unmatched, ref)
		if err := c.persist(assignments); err != nil {
			return counts, fmt.Errorf("layer %s: %w", m.Name, err)
		}
		counts[m.Name] = len(assignments)

		assigned := map[uint]bool{}
		for _, a := range assignments {
			assigned[a.SegmentID] = true
		}
		remaining := unmatched[:0]
		for _, sc := range unmatched {
			if !assigned[sc.seg.ID] {
				remaining = append(remaining, sc)
			}
		}
		unmatched = remaining
	}

	counts["unresolved"] = len(unmatched)
	fields := make([]zap.Field, 0, len(counts))
	for name, n := range counts {
		fields = append(fields, zap.Int(name, n))
	}
	c.Logger.Info("Cascade completed", fields...)
	return counts, nil
}

func (c *Cascade) persist(assignments []Assignment) error {
	for _, a := range assignments {
		err := c.DB.Model(&models.Segment{}).
			Where("id = ? AND matched_code IS NULL", a.SegmentID).
			Updates(map[string]any{
				"matched_code":     a.Code,
				"match_source":     a.Source,
				"match_confidence": a.Confidence,
			}).Error
		if err != nil {
			return fmt.Errorf("persisting match for segment %d: %w", a.SegmentID, err)
		}
	}
	return nil
}

func (c *Cascade) loadRefData() (*RefData, error) {
	var entries []models.NameCode
	if err := c.DB.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("loading name-code map: %w", err)
	}
	ref := &RefData{
		byNorm:      map[string][]models.NameCode{},
		byBrandNorm: map[string][]models.NameCode{},
		byPipePart:  map[string][]models.NameCode{},
		byDossier:   map[string][]models.NameCode{},
	}
	for _, e := range entries {
		norm := NormalizeName(e.NameDe)
		if norm == "" {
			continue
		}
		ref.byNorm[norm] = append(ref.byNorm[norm], e)
		brandNorm := CanonicalizeBrands(norm)
		ref.byBrandNorm[brandNorm] = append(ref.byBrandNorm[brandNorm], e)
		// Index the Kombination-rewritten form too, so a reference entry in
		// the old phrasing is found under the new one.
		if kombi := CanonicalizeBrands(NormalizeName(RewriteKombination(e.NameDe))); kombi != brandNorm {
			ref.byBrandNorm[kombi] = append(ref.byBrandNorm[kombi], e)
		}
		// Entries naming several indications separated by "|" are also
		// indexed per part.
		if strings.Contains(e.NameDe, "|") {
			for _, part := range strings.Split(e.NameDe, "|") {
				partNorm := NormalizeName(part)
				if partNorm == "" {
					continue
				}
				ref.byPipePart[partNorm] = append(ref.byPipePart[partNorm], e)
				if partBrand := CanonicalizeBrands(partNorm); partBrand != partNorm {
					ref.byPipePart[partBrand] = append(ref.byPipePart[partBrand], e)
				}
			}
		}
		if e.BagDossierNo != "" {
			ref.byDossier[e.BagDossierNo] = append(ref.byDossier[e.BagDossierNo], e)
		}
	}
	return ref, nil
}

// buildSegCtx collects the still-unmatched segments of all groups.
func buildSegCtx(groups []textGroup) []*segCtx {
	var out []*segCtx
	for i := range groups {
		g := &groups[i]
		dossier := groupDossier(g)
		for j := range g.segments {
			seg := g.segments[j]
			if seg.MatchedCode != nil {
				continue
			}
			raw := ""
			if seg.NameDe != nil {
				raw = *seg.NameDe
			}
			norm := NormalizeName(raw)
			out = append(out, &segCtx{
				seg:       seg,
				rawName:   raw,
				norm:      norm,
				brandNorm: CanonicalizeBrands(norm),
				kombiNorm: CanonicalizeBrands(NormalizeName(RewriteKombination(raw))),
				dossier:   dossier,
				group:     g,
			})
		}
	}
	return out
}

// groupDossier derives the dossier of a text from its code associations: the
// dossier part shared by all of them, or empty when they disagree.
func groupDossier(g *textGroup) string {
	dossier := ""
	for _, c := range g.codes {
		d := c.BagDossierNo
		if d == "" {
			d, _ = SplitCode(c.Code)
		}
		if dossier == "" {
			dossier = d
		} else if d != dossier {
			return ""
		}
	}
	return dossier
}
