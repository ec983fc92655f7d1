package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sl-indications/models"
)

// Store is the versioned entity store: every upsert either creates a row with
// first_seen = last_seen = sequence, or extends last_seen on the existing row
// and refreshes its mutable fields. last_seen never decreases, first_seen is
// never rewritten.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// Identity conflicts resolved by latest-snapshot-wins, for the run report.
	IdentityConflicts int
}

// NewStore creates a versioned entity store over db.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// UpsertPreparation inserts or re-observes a preparation by its 5-digit
// authorisation number.
func (s *Store) UpsertPreparation(p *models.Preparation, sequence int) (uint, error) {
	var existing models.Preparation
	err := s.DB.Where("swissmedic_no5 = ?", p.SwissmedicNo5).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.FirstSeen = sequence
		p.LastSeen = sequence
		if err := s.DB.Create(p).Error; err != nil {
			return 0, fmt.Errorf("creating preparation %s: %w", p.SwissmedicNo5, err)
		}
		return p.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up preparation %s: %w", p.SwissmedicNo5, err)
	}

	updates := map[string]any{
		"name_de": p.NameDe, "name_fr": p.NameFr, "name_it": p.NameIt,
		"atc_code": p.AtcCode, "org_gen_code": p.OrgGenCode,
	}
	if sequence > existing.LastSeen {
		updates["last_seen"] = sequence
	}
	if err := s.DB.Model(&existing).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("updating preparation %s: %w", p.SwissmedicNo5, err)
	}
	return existing.ID, nil
}

// UpsertPack inserts or re-observes a pack by GTIN. A pack that moves to a
// different preparation is an identity conflict: logged, newer value wins.
func (s *Store) UpsertPack(p *models.Pack, sequence int) (uint, error) {
	var existing models.Pack
	err := s.DB.Where("gtin = ?", p.GTIN).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.FirstSeen = sequence
		p.LastSeen = sequence
		if err := s.DB.Create(p).Error; err != nil {
			return 0, fmt.Errorf("creating pack %s: %w", p.GTIN, err)
		}
		return p.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up pack %s: %w", p.GTIN, err)
	}

	updates := map[string]any{
		"description_de": p.DescriptionDe,
		"bag_dossier_no": p.BagDossierNo,
		// Parsed description attributes follow the description.
		"form_type": p.FormType, "form_type_raw": p.FormTypeRaw,
		"container_count": p.ContainerCount, "unit_count": p.UnitCount,
		"volume_per_unit": p.VolumePerUnit, "volume_unit": p.VolumeUnit,
		"total_volume": p.TotalVolume, "dose_count": p.DoseCount,
		"multiplier": p.Multiplier, "multiplied_count": p.MultipliedCount,
		"total_units": p.TotalUnits, "is_alt": p.IsAlt,
		"annotation": p.Annotation, "parse_confidence": p.ParseConfidence,
		"parse_pattern": p.ParsePattern,
	}
	if p.PreparationID != existing.PreparationID {
		s.IdentityConflicts++
		s.Logger.Warn("Pack changed owning preparation, taking newer value",
			zap.String("gtin", p.GTIN),
			zap.Uint("old_preparation", existing.PreparationID),
			zap.Uint("new_preparation", p.PreparationID))
		updates["preparation_id"] = p.PreparationID
	}
	// Prices only refresh when the snapshot actually carries one.
	if p.PublicPrice != nil {
		updates["public_price"] = *p.PublicPrice
	}
	if p.ExFactoryPrice != nil {
		updates["ex_factory_price"] = *p.ExFactoryPrice
	}
	if sequence > existing.LastSeen {
		updates["last_seen"] = sequence
	}
	if err := s.DB.Model(&existing).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("updating pack %s: %w", p.GTIN, err)
	}
	return existing.ID, nil
}

// UpsertLimitationText inserts or re-observes a deduplicated text block by
// content hash.
func (s *Store) UpsertLimitationText(t *models.LimitationText, sequence int) (uint, error) {
	var existing models.LimitationText
	err := s.DB.Where("content_hash = ?", t.ContentHash).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t.FirstSeen = sequence
		t.LastSeen = sequence
		if err := s.DB.Create(t).Error; err != nil {
			return 0, fmt.Errorf("creating limitation text %s: %w", t.ContentHash, err)
		}
		return t.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up limitation text %s: %w", t.ContentHash, err)
	}
	updates := map[string]any{}
	if sequence > existing.LastSeen {
		updates["last_seen"] = sequence
	}
	// Older publications omit the limitation code; backfill once it appears.
	if existing.LimitationCode == "" && t.LimitationCode != "" {
		updates["limitation_code"] = t.LimitationCode
	}
	if len(updates) > 0 {
		if err := s.DB.Model(&existing).Updates(updates).Error; err != nil {
			return 0, fmt.Errorf("updating limitation text %s: %w", t.ContentHash, err)
		}
	}
	return existing.ID, nil
}

// UpsertIndicationCode inserts or re-observes a (code, preparation, text)
// association.
func (s *Store) UpsertIndicationCode(c *models.IndicationCode, sequence int) (uint, error) {
	var existing models.IndicationCode
	err := s.DB.Where("code = ? AND preparation_id = ? AND limitation_text_id = ?",
		c.Code, c.PreparationID, c.LimitationTextID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.FirstSeen = sequence
		c.LastSeen = sequence
		if err := s.DB.Create(c).Error; err != nil {
			return 0, fmt.Errorf("creating indication code %s: %w", c.Code, err)
		}
		return c.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up indication code %s: %w", c.Code, err)
	}
	updates := map[string]any{}
	if sequence > existing.LastSeen {
		updates["last_seen"] = sequence
	}
	// A code recovered from text in an old snapshot may later appear
	// machine-readable; the stronger source wins.
	if existing.Source != models.CodeSourceStructured && c.Source == models.CodeSourceStructured {
		updates["source"] = c.Source
	}
	if len(updates) > 0 {
		if err := s.DB.Model(&existing).Updates(updates).Error; err != nil {
			return 0, fmt.Errorf("updating indication code %s: %w", c.Code, err)
		}
	}
	return existing.ID, nil
}
