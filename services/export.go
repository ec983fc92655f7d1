package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sl-indications/models"
)

// CodeType classifies a code for reporting: FALLBACK is the dossier-only
// sentinel, CROSS_INDICATION a synthesized ".XX" code from another source,
// REAL_CODE everything else.
func CodeType(code string, isFallback bool) string {
	if isFallback {
		return "FALLBACK"
	}
	if strings.HasSuffix(code, ".XX") {
		return "CROSS_INDICATION"
	}
	return "REAL_CODE"
}

// Summary is the aggregate view served by the API.
type Summary struct {
	Snapshots    int64 `json:"snapshots"`
	Preparations int64 `json:"preparations"`
	Packs        int64 `json:"packs"`
	Texts        int64 `json:"limitation_texts"`
	Codes        int64 `json:"indication_codes"`
	CodeLinks    int64 `json:"code_links"`
	Segments     int64 `json:"segments"`

	SegmentsMatched    int64 `json:"segments_matched"`
	SegmentsUnresolved int64 `json:"segments_unresolved"`
	CashbackTexts      int64 `json:"cashback_texts"`

	LinksByCodeType   map[string]int64 `json:"links_by_code_type"`
	CodesWithoutNames int64            `json:"codes_without_names"`
	NamesWithoutCodes int64            `json:"names_without_codes"`

	LastRun *models.RunReport `json:"last_run,omitempty"`
}

// Exporter produces the summary view and the flat CSV export.
type Exporter struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewExporter(db *gorm.DB, logger *zap.Logger) *Exporter {
	return &Exporter{DB: db, Logger: logger}
}

// Summarize computes the aggregate counts over the whole database.
func (e *Exporter) Summarize() (*Summary, error) {
	s := &Summary{LinksByCodeType: map[string]int64{}}

	for _, c := range []struct {
		model any
		dst   *int64
	}{
		{&models.Snapshot{}, &s.Snapshots},
		{&models.Preparation{}, &s.Preparations},
		{&models.Pack{}, &s.Packs},
		{&models.LimitationText{}, &s.Texts},
		{&models.IndicationCode{}, &s.Codes},
		{&models.CodeLink{}, &s.CodeLinks},
		{&models.Segment{}, &s.Segments},
	} {
		if err := e.DB.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	if err := e.DB.Model(&models.Segment{}).
		Where("matched_code IS NOT NULL").Count(&s.SegmentsMatched).Error; err != nil {
		return nil, err
	}
	s.SegmentsUnresolved = s.Segments - s.SegmentsMatched

	if err := e.DB.Model(&models.LimitationText{}).
		Where("is_cashback").Count(&s.CashbackTexts).Error; err != nil {
		return nil, err
	}

	var links []models.CodeLink
	if err := e.DB.Select("code", "is_fallback").Find(&links).Error; err != nil {
		return nil, err
	}
	for _, l := range links {
		s.LinksByCodeType[CodeType(l.Code, l.IsFallback)]++
	}

	if err := e.DB.Model(&models.IndicationCode{}).
		Where("code NOT IN (?)", e.DB.Model(&models.NameCode{}).Distinct("code")).
		Distinct("code").Count(&s.CodesWithoutNames).Error; err != nil {
		return nil, err
	}

	if err := e.DB.Model(&models.Segment{}).
		Where("matched_code IS NULL").
		Distinct("name_de").Count(&s.NamesWithoutCodes).Error; err != nil {
		return nil, err
	}

	var last models.RunReport
	if err := e.DB.Order("id desc").First(&last).Error; err == nil {
		s.LastRun = &last
	}

	return s, nil
}

var exportHeader = []string{
	"gtin", "product_name", "atc_code", "swissmedic_no5",
	"pack_description", "form_type", "total_units",
	"public_price", "exfactory_price",
	"indication_code", "code_source", "is_fallback", "code_type",
	"limitation_level", "link_valid_from", "link_valid_to",
	"is_cashback", "cashback_company", "cashback_calc_type",
	"cashback_calc_value", "cashback_unit",
	"limitation_text_fr",
}

// ExportCSV writes the denormalized pack-to-code view: one row per
// (pack, code, text) link with the owning preparation and the cashback
// annotation of the text.
func (e *Exporter) ExportCSV() ([]byte, error) {
	var links []models.CodeLink
	if err := e.DB.Order("gtin, code").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("loading code links: %w", err)
	}

	packs := map[uint]models.Pack{}
	var packRows []models.Pack
	if err := e.DB.Find(&packRows).Error; err != nil {
		return nil, err
	}
	for _, p := range packRows {
		packs[p.ID] = p
	}

	preps := map[uint]models.Preparation{}
	var prepRows []models.Preparation
	if err := e.DB.Find(&prepRows).Error; err != nil {
		return nil, err
	}
	for _, p := range prepRows {
		preps[p.ID] = p
	}

	texts := map[uint]models.LimitationText{}
	var textRows []models.LimitationText
	if err := e.DB.Find(&textRows).Error; err != nil {
		return nil, err
	}
	for _, t := range textRows {
		texts[t.ID] = t
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}

	for _, l := range links {
		pack := packs[l.PackID]
		prep := preps[pack.PreparationID]
		text := texts[l.LimitationTextID]

		row := []string{
			l.GTIN, prep.NameDe, prep.AtcCode, prep.SwissmedicNo5,
			pack.DescriptionDe, pack.FormType, fmtInt(pack.TotalUnits),
			fmtFloat(pack.PublicPrice), fmtFloat(pack.ExFactoryPrice),
			l.Code, l.CodeSource, strconv.FormatBool(l.IsFallback),
			CodeType(l.Code, l.IsFallback),
			l.Level, fmtDate(l.EffectiveFrom), fmtDate(l.EffectiveTo),
			strconv.FormatBool(text.IsCashback), text.CashbackCompany,
			text.CashbackCalcType, fmtFloat(text.CashbackCalcValue),
			text.CashbackUnit,
			text.DescriptionFr,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	e.Logger.Info("CSV export produced", zap.Int("rows", len(links)))
	return buf.Bytes(), nil
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
