package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sl-indications/models"
)

// RefMapBuilder derives the name → code reference map from limitation texts
// that carry both a bold indication name and a machine-readable code. The
// table is rebuilt from scratch on every run and is read-only for the
// matching cascade.
type RefMapBuilder struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRefMapBuilder creates a reference map builder.
func NewRefMapBuilder(db *gorm.DB, logger *zap.Logger) *RefMapBuilder {
	return &RefMapBuilder{DB: db, Logger: logger}
}

// textGroup bundles one limitation text's segments and code associations.
type textGroup struct {
	textID   uint
	segments []models.Segment
	codes    []models.IndicationCode
}

// Rebuild drops and re-derives the full name_codes table.
func (b *RefMapBuilder) Rebuild() error {
	if err := b.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.NameCode{}).Error; err != nil {
		return fmt.Errorf("clearing name codes: %w", err)
	}

	groups, err := loadTextGroups(b.DB)
	if err != nil {
		return err
	}

	counts := map[string]int{}
	// Higher-confidence layers run first; the unique (code, name_de) index
	// then keeps the stronger provenance on duplicates.
	counts[models.NameCodeDirectStruct] = b.directLayer(groups, models.CodeSourceStructured, models.NameCodeDirectStruct, 1.0)
	counts[models.NameCodeDirectText] = b.directLayer(groups, models.CodeSourceTextParsed, models.NameCodeDirectText, 0.95)
	counts[models.NameCodeSharedText] = b.sharedTextLayer(groups)
	counts[models.NameCodeOrdinal] = b.ordinalLayer(groups)

	b.Logger.Info("Name-code map rebuilt",
		zap.Int("direct_struct", counts[models.NameCodeDirectStruct]),
		zap.Int("direct_text", counts[models.NameCodeDirectText]),
		zap.Int("shared_text", counts[models.NameCodeSharedText]),
		zap.Int("ordinal", counts[models.NameCodeOrdinal]))
	return nil
}

// loadTextGroups bundles all segments and code associations per limitation
// text, in a stable order.
func loadTextGroups(db *gorm.DB) ([]textGroup, error) {
	var segments []models.Segment
	if err := db.Order("limitation_text_id, segment_order").Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("loading segments: %w", err)
	}
	var codes []models.IndicationCode
	if err := db.Order("limitation_text_id, code").Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("loading indication codes: %w", err)
	}

	byText := map[uint]*textGroup{}
	order := []uint{}
	group := func(textID uint) *textGroup {
		g, ok := byText[textID]
		if !ok {
			g = &textGroup{textID: textID}
			byText[textID] = g
			order = append(order, textID)
		}
		return g
	}
	for _, s := range segments {
		g := group(s.LimitationTextID)
		g.segments = append(g.segments, s)
	}
	for _, c := range codes {
		g := group(c.LimitationTextID)
		g.codes = append(g.codes, c)
	}

	groups := make([]textGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byText[id])
	}
	return groups, nil
}

// realCodes returns the distinct non-fallback code values of a group,
// restricted to the given sources, sorted.
func realCodes(g *textGroup, sources ...string) []models.IndicationCode {
	allowed := map[string]bool{}
	for _, s := range sources {
		allowed[s] = true
	}
	seen := map[string]bool{}
	var out []models.IndicationCode
	for _, c := range g.codes {
		if c.IsFallback() || !allowed[c.Source] || seen[c.Code] {
			continue
		}
		seen[c.Code] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// directLayer maps texts with exactly one segment and exactly one distinct
// code of the wanted source.
func (b *RefMapBuilder) directLayer(groups []textGroup, source, tag string, confidence float64) int {
	inserted := 0
	for _, g := range groups {
		if len(g.segments) != 1 {
			continue
		}
		codes := realCodes(&g, models.CodeSourceStructured, models.CodeSourceTextParsed)
		if len(codes) != 1 || codes[0].Source != source {
			continue
		}
		if b.insert(codes[0].Code, &g.segments[0], tag, confidence) {
			inserted++
		}
	}
	return inserted
}

// sharedTextLayer maps every code of single-segment texts to the sole
// segment name (the biosimilar shared-label case).
func (b *RefMapBuilder) sharedTextLayer(groups []textGroup) int {
	inserted := 0
	for _, g := range groups {
		if len(g.segments) != 1 {
			continue
		}
		for _, c := range realCodes(&g, models.CodeSourceStructured, models.CodeSourceTextParsed) {
			if b.insert(c.Code, &g.segments[0], models.NameCodeSharedText, 0.9) {
				inserted++
			}
		}
	}
	return inserted
}

// ordinalLayer pairs N codes with N segments index-for-index when every code
// belongs to the same dossier. Codes are sorted by their numeric indication
// part, segments by document order.
func (b *RefMapBuilder) ordinalLayer(groups []textGroup) int {
	inserted := 0
	for _, g := range groups {
		codes := realCodes(&g, models.CodeSourceStructured, models.CodeSourceTextParsed)
		if len(codes) < 2 || len(codes) != len(g.segments) {
			continue
		}
		if !sameDossier(codes) {
			continue
		}
		sort.Slice(codes, func(i, j int) bool {
			_, pi := SplitCode(codes[i].Code)
			_, pj := SplitCode(codes[j].Code)
			return pi < pj
		})
		for i, c := range codes {
			if b.insert(c.Code, &g.segments[i], models.NameCodeOrdinal, 0.8) {
				inserted++
			}
		}
	}
	return inserted
}

func sameDossier(codes []models.IndicationCode) bool {
	first := ""
	for _, c := range codes {
		d, _ := SplitCode(c.Code)
		if first == "" {
			first = d
		} else if d != first {
			return false
		}
	}
	return first != ""
}

func (b *RefMapBuilder) insert(code string, seg *models.Segment, source string, confidence float64) bool {
	if seg.NameDe == nil || *seg.NameDe == "" {
		return false
	}
	dossier, _ := SplitCode(code)
	entry := models.NameCode{
		Code:            code,
		NameDe:          *seg.NameDe,
		BagDossierNo:    dossier,
		MatchSource:     source,
		MatchConfidence: confidence,
	}
	if seg.NameFr != nil {
		entry.NameFr = *seg.NameFr
	}
	if seg.NameIt != nil {
		entry.NameIt = *seg.NameIt
	}
	res := b.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}, {Name: "name_de"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		b.Logger.Warn("Failed to insert name-code mapping",
			zap.String("code", code), zap.Error(res.Error))
		return false
	}
	return res.RowsAffected > 0
}
