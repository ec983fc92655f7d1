package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sl-indications/models"
)

// FanOut expands preparation-level code associations into per-pack code
// links, restricted to the snapshots during which both the pack and the
// association were observed.
type FanOut struct {
	DB       *gorm.DB
	Registry *Registry
	Logger   *zap.Logger
}

// NewFanOut creates a fan-out engine.
func NewFanOut(db *gorm.DB, registry *Registry, logger *zap.Logger) *FanOut {
	return &FanOut{DB: db, Registry: registry, Logger: logger}
}

// Run produces the per-pack reimbursement history. Existing (gtin, code,
// text) links are left untouched, so re-running is idempotent.
func (f *FanOut) Run() (int, error) {
	dates, err := f.Registry.DateMap()
	if err != nil {
		return 0, fmt.Errorf("loading snapshot dates: %w", err)
	}

	var packs []models.Pack
	if err := f.DB.Find(&packs).Error; err != nil {
		return 0, fmt.Errorf("loading packs: %w", err)
	}
	packsByPrep := map[uint][]models.Pack{}
	for _, p := range packs {
		packsByPrep[p.PreparationID] = append(packsByPrep[p.PreparationID], p)
	}

	var assocs []models.IndicationCode
	if err := f.DB.Order("id").Find(&assocs).Error; err != nil {
		return 0, fmt.Errorf("loading code associations: %w", err)
	}

	inserted := 0
	for _, assoc := range assocs {
		codeDossier, _ := SplitCode(assoc.Code)
		for _, pack := range packsByPrep[assoc.PreparationID] {
			// No overlap between the two observation intervals.
			if pack.LastSeen < assoc.FirstSeen || pack.FirstSeen > assoc.LastSeen {
				continue
			}
			// Pack-scoped limitations only bind packs of the same dossier.
			if assoc.Level == models.LevelPack && pack.BagDossierNo != codeDossier {
				continue
			}

			effFirst := maxInt(pack.FirstSeen, assoc.FirstSeen)
			effLast := minInt(pack.LastSeen, assoc.LastSeen)
			link := models.CodeLink{
				GTIN:             pack.GTIN,
				Code:             assoc.Code,
				LimitationTextID: assoc.LimitationTextID,
				PackID:           pack.ID,
				CodeSource:       assoc.Source,
				Level:            assoc.Level,
				IsFallback:       assoc.IsFallback(),
				EffectiveFrom:    dateFor(dates, effFirst),
				EffectiveTo:      dateFor(dates, effLast),
			}
			res := f.DB.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "gtin"}, {Name: "code"}, {Name: "limitation_text_id"},
				},
				DoNothing: true,
			}).Create(&link)
			if res.Error != nil {
				return inserted, fmt.Errorf("creating code link %s/%s: %w",
					pack.GTIN, assoc.Code, res.Error)
			}
			inserted += int(res.RowsAffected)
		}
	}

	f.Logger.Info("Fan-out completed", zap.Int("links", inserted))
	return inserted, nil
}

func dateFor(dates map[int]time.Time, seq int) *time.Time {
	if t, ok := dates[seq]; ok {
		return &t
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
