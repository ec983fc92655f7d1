package models

import "time"

// CodeLink is the fan-out output: one pack reimbursable under one indication
// code, backed by one limitation text, valid over the intersection of the
// pack's and the association's observation intervals.
type CodeLink struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	GTIN             string `json:"gtin" gorm:"index:idx_link,unique;not null"`
	Code             string `json:"code" gorm:"index:idx_link,unique;not null"`
	LimitationTextID uint   `json:"limitation_text_id" gorm:"index:idx_link,unique;not null"`

	PackID     uint   `json:"pack_id" gorm:"index"`
	CodeSource string `json:"code_source"`
	Level      string `json:"level"`
	IsFallback bool   `json:"is_fallback"`

	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

func (CodeLink) TableName() string {
	return "code_links"
}
