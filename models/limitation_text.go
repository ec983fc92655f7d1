package models

import "time"

// LimitationText is a deduplicated triple-language limitation text block.
// ContentHash is computed over the three language bodies (missing language =
// empty string), so byte-identical texts collapse to one row regardless of
// which preparation or snapshot produced them.
type LimitationText struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContentHash   string `json:"content_hash" gorm:"uniqueIndex;not null"`
	DescriptionDe string `json:"description_de,omitempty" gorm:"type:text"`
	DescriptionFr string `json:"description_fr,omitempty" gorm:"type:text"`
	DescriptionIt string `json:"description_it,omitempty" gorm:"type:text"`

	// LimitationCode is the catalog's limitation category (KLEINPACKUNG,
	// ITCODE, ...), recorded when the text is first seen. Categories whose
	// bold text never names indications are excluded from segmentation.
	LimitationCode string `json:"limitation_code,omitempty"`

	FirstSeen int `json:"first_seen" gorm:"not null"`
	LastSeen  int `json:"last_seen" gorm:"not null"`

	// Cashback annotation (manufacturer refunds the insurer). Informational
	// only, never used for code resolution.
	IsCashback        bool     `json:"is_cashback"`
	CashbackCompany   string   `json:"cashback_company,omitempty"`
	CashbackCalcType  string   `json:"cashback_calc_type,omitempty"`
	CashbackCalcValue *float64 `json:"cashback_calc_value,omitempty"`
	CashbackUnit      string   `json:"cashback_unit,omitempty"`
}

func (LimitationText) TableName() string {
	return "limitation_texts"
}
