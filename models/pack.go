package models

import "time"

// Pack is one sellable packaging unit (SKU), keyed by its GTIN. The
// [FirstSeen, LastSeen] interval (inclusive, in snapshot sequence numbers)
// covers the snapshots in which the pack was observed.
type Pack struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	GTIN          string `json:"gtin" gorm:"uniqueIndex;not null"`
	SwissmedicNo8 string `json:"swissmedic_no8,omitempty" gorm:"index"`
	PreparationID uint   `json:"preparation_id" gorm:"index;not null"`
	BagDossierNo  string `json:"bag_dossier_no,omitempty" gorm:"index"`
	DescriptionDe string `json:"description_de,omitempty"`

	PublicPrice    *float64 `json:"public_price,omitempty"`
	ExFactoryPrice *float64 `json:"exfactory_price,omitempty"`

	FirstSeen int `json:"first_seen" gorm:"not null"`
	LastSeen  int `json:"last_seen" gorm:"not null"`

	// Structured pack-size fields parsed out of DescriptionDe.
	FormType        string   `json:"form_type,omitempty" gorm:"index"`
	FormTypeRaw     string   `json:"form_type_raw,omitempty"`
	ContainerCount  *int     `json:"container_count,omitempty"`
	UnitCount       *int     `json:"unit_count,omitempty"`
	VolumePerUnit   *float64 `json:"volume_per_unit,omitempty"`
	VolumeUnit      string   `json:"volume_unit,omitempty"`
	TotalVolume     *float64 `json:"total_volume,omitempty"`
	DoseCount       *int     `json:"dose_count,omitempty"`
	Multiplier      *int     `json:"multiplier,omitempty"`
	MultipliedCount *int     `json:"multiplied_count,omitempty"`
	TotalUnits      *int     `json:"total_units,omitempty"`
	IsAlt           bool     `json:"is_alt"`
	Annotation      string   `json:"annotation,omitempty"`
	ParseConfidence string   `json:"parse_confidence,omitempty"`
	ParsePattern    string   `json:"parse_pattern,omitempty"`
}

func (Pack) TableName() string {
	return "packs"
}
