package services

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"sl-indications/cashback"
	"sl-indications/models"
	"sl-indications/packdesc"
	"sl-indications/providers/slcatalog"
)

// IngestStats counts what one snapshot contributed.
type IngestStats struct {
	Preparations     int
	Packs            int
	Texts            int
	CodesStructured  int
	CodesTextParsed  int
	CodesFallback    int
	SkippedFragments int
}

// Ingestor walks one parsed catalog publication and feeds the versioned
// store. A fragment missing its identity field (preparation without an
// authorisation number, pack without a GTIN) is skipped with a warning and
// never aborts the snapshot.
type Ingestor struct {
	Store  *Store
	Logger *zap.Logger
}

func NewIngestor(store *Store, logger *zap.Logger) *Ingestor {
	return &Ingestor{Store: store, Logger: logger}
}

// Ingest processes one snapshot document under the given sequence number.
func (in *Ingestor) Ingest(doc *slcatalog.Document, sequence int) (IngestStats, error) {
	var stats IngestStats

	for i := range doc.Preparations {
		prep := &doc.Preparations[i]
		if prep.SwissmedicNo5 == "" {
			in.Logger.Warn("Skipping preparation without authorisation number",
				zap.String("name_de", prep.NameDe),
				zap.Int("sequence", sequence))
			stats.SkippedFragments++
			continue
		}

		prepID, err := in.Store.UpsertPreparation(&models.Preparation{
			SwissmedicNo5: prep.SwissmedicNo5,
			NameDe:        prep.NameDe,
			NameFr:        prep.NameFr,
			NameIt:        prep.NameIt,
			AtcCode:       prep.AtcCode,
			OrgGenCode:    prep.OrgGenCode,
		}, sequence)
		if err != nil {
			return stats, err
		}
		stats.Preparations++

		// Preparation-level limitations apply to every pack of the family.
		for j := range prep.Limitations {
			if err := in.ingestLimitation(&prep.Limitations[j], prepID,
				models.LevelPreparation, "", sequence, &stats); err != nil {
				return stats, err
			}
		}

		for j := range prep.Packs {
			pack := &prep.Packs[j]
			if pack.GTIN == "" {
				in.Logger.Warn("Skipping pack without GTIN",
					zap.String("preparation", prep.SwissmedicNo5),
					zap.String("description", pack.DescriptionDe),
					zap.Int("sequence", sequence))
				stats.SkippedFragments++
				continue
			}

			row := models.Pack{
				GTIN:           pack.GTIN,
				SwissmedicNo8:  pack.SwissmedicNo8,
				PreparationID:  prepID,
				BagDossierNo:   pack.BagDossierNo,
				DescriptionDe:  pack.DescriptionDe,
				PublicPrice:    parsePrice(pack.Prices.PublicPrice.Price),
				ExFactoryPrice: parsePrice(pack.Prices.ExFactoryPrice.Price),
			}
			applyParsedDescription(&row, packdesc.Parse(pack.DescriptionDe))

			if _, err := in.Store.UpsertPack(&row, sequence); err != nil {
				return stats, err
			}
			stats.Packs++

			for k := range pack.Limitations {
				if err := in.ingestLimitation(&pack.Limitations[k], prepID,
					models.LevelPack, pack.BagDossierNo, sequence, &stats); err != nil {
					return stats, err
				}
			}
		}

		// ItCode limitations group whole therapeutic chapters; nothing at
		// that granularity maps to an indication code.
	}
	return stats, nil
}

func (in *Ingestor) ingestLimitation(lim *slcatalog.Limitation, prepID uint,
	level, bagDossierNo string, sequence int, stats *IngestStats) error {

	if lim.DescriptionDe == "" && lim.DescriptionFr == "" && lim.DescriptionIt == "" {
		return nil
	}

	text := models.LimitationText{
		ContentHash:    ContentHash(lim.DescriptionDe, lim.DescriptionFr, lim.DescriptionIt),
		DescriptionDe:  lim.DescriptionDe,
		DescriptionFr:  lim.DescriptionFr,
		DescriptionIt:  lim.DescriptionIt,
		LimitationCode: lim.LimitationCode,
	}
	annotateCashback(&text)

	textID, err := in.Store.UpsertLimitationText(&text, sequence)
	if err != nil {
		return err
	}
	stats.Texts++

	codes, source := ExtractCodes(lim, bagDossierNo)
	for _, code := range codes {
		dossier := bagDossierNo
		if dossier == "" {
			dossier, _ = SplitCode(code)
		}
		row := models.IndicationCode{
			Code:             code,
			PreparationID:    prepID,
			LimitationTextID: textID,
			BagDossierNo:     dossier,
			Source:           source,
			Level:            level,
			LimType:          lim.LimitationType,
		}
		if _, err := in.Store.UpsertIndicationCode(&row, sequence); err != nil {
			return err
		}
		switch source {
		case models.CodeSourceStructured:
			stats.CodesStructured++
		case models.CodeSourceTextParsed:
			stats.CodesTextParsed++
		case models.CodeSourceFallback:
			stats.CodesFallback++
		}
	}
	return nil
}

// annotateCashback runs the refund-clause detector over the French body.
// The annotation is derived from the content alone, so it is computed once
// per deduplicated text.
func annotateCashback(t *models.LimitationText) {
	if t.DescriptionFr == "" {
		return
	}
	plain := cashback.CleanHTML(t.DescriptionFr)
	det := cashback.Detect(plain)
	if !det.IsCashback {
		return
	}
	t.IsCashback = true
	t.CashbackCompany = det.Company
	calc := cashback.ExtractCalculation(plain)
	t.CashbackCalcType = calc.Type
	t.CashbackCalcValue = calc.Value
	t.CashbackUnit = cashback.ExtractUnit(plain)
}

func applyParsedDescription(p *models.Pack, r packdesc.Result) {
	p.FormType = r.FormType
	p.FormTypeRaw = r.FormTypeRaw
	p.ContainerCount = r.ContainerCount
	p.UnitCount = r.UnitCount
	p.VolumePerUnit = r.VolumePerUnit
	p.VolumeUnit = r.VolumeUnit
	p.TotalVolume = r.TotalVolume
	p.DoseCount = r.DoseCount
	p.Multiplier = r.Multiplier
	p.MultipliedCount = r.MultipliedCount
	p.TotalUnits = r.TotalUnits
	p.IsAlt = r.IsAlt
	p.Annotation = r.Annotation
	p.ParseConfidence = r.ParseConfidence
	p.ParsePattern = r.ParsePattern
}

func parsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
