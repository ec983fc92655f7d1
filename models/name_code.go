package models

import "time"

// NameCode match sources, in decreasing confidence order.
const (
	NameCodeDirectStruct = "DIRECT_STRUCT"
	NameCodeDirectText   = "DIRECT_TEXT"
	NameCodeSharedText   = "SHARED_TEXT"
	NameCodeOrdinal      = "ORDINAL_POSITION"
)

// NameCode is one derived (indication name, code) pair, harvested from
// limitation texts that carry both a bold header and a machine-readable code.
// The table is rebuilt on every run and read-only during the cascade.
type NameCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Code   string `json:"code" gorm:"index:idx_name_code,unique;not null"`
	NameDe string `json:"name_de" gorm:"index:idx_name_code,unique;not null"`
	NameFr string `json:"name_fr,omitempty"`
	NameIt string `json:"name_it,omitempty"`

	BagDossierNo    string  `json:"bag_dossier_no,omitempty" gorm:"index"`
	MatchSource     string  `json:"match_source"`
	MatchConfidence float64 `json:"match_confidence"`
}

func (NameCode) TableName() string {
	return "name_codes"
}
