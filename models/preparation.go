package models

import "time"

// Preparation is a regulatory drug family, keyed by its 5-digit authorisation
// number. It owns packs and limitation texts.
type Preparation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SwissmedicNo5 string `json:"swissmedic_no5" gorm:"uniqueIndex;not null"`
	NameDe        string `json:"name_de,omitempty" gorm:"index"`
	NameFr        string `json:"name_fr,omitempty"`
	NameIt        string `json:"name_it,omitempty"`
	AtcCode       string `json:"atc_code,omitempty" gorm:"index"`
	OrgGenCode    string `json:"org_gen_code,omitempty"` // O = original, G = generic

	FirstSeen int `json:"first_seen" gorm:"not null"`
	LastSeen  int `json:"last_seen" gorm:"not null"`
}

func (Preparation) TableName() string {
	return "preparations"
}
