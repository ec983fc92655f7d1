package models

import "time"

// Segment is one indication-sized slice of a multi-indication limitation
// text. Segments are aligned positionally across the three languages; a
// language that produced no header at that position stays null.
type Segment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LimitationTextID uint `json:"limitation_text_id" gorm:"index:idx_segment_pos,unique;not null"`
	SegmentOrder     int  `json:"segment_order" gorm:"index:idx_segment_pos,unique;not null"`

	NameDe *string `json:"name_de,omitempty"`
	NameFr *string `json:"name_fr,omitempty"`
	NameIt *string `json:"name_it,omitempty"`
	TextDe *string `json:"text_de,omitempty" gorm:"type:text"`
	TextFr *string `json:"text_fr,omitempty" gorm:"type:text"`
	TextIt *string `json:"text_it,omitempty" gorm:"type:text"`

	// Set once by the matching cascade, never overwritten by later layers.
	MatchedCode     *string  `json:"matched_code,omitempty" gorm:"index"`
	MatchSource     *string  `json:"match_source,omitempty"`
	MatchConfidence *float64 `json:"match_confidence,omitempty"`

	IsCashback        bool     `json:"is_cashback"`
	CashbackCompany   string   `json:"cashback_company,omitempty"`
	CashbackCalcType  string   `json:"cashback_calc_type,omitempty"`
	CashbackCalcValue *float64 `json:"cashback_calc_value,omitempty"`
	CashbackUnit      string   `json:"cashback_unit,omitempty"`
}

func (Segment) TableName() string {
	return "segments"
}
