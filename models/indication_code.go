package models

import "time"

// IndicationCode source tags.
const (
	CodeSourceStructured = "STRUCTURED"
	CodeSourceTextParsed = "TEXT_PARSED"
	CodeSourceFallback   = "FALLBACK"
)

// Limitation levels as found in the source documents. The ITCODE level is
// discarded during ingestion.
const (
	LevelPack        = "PACK"
	LevelPreparation = "PREPARATION"
)

// IndicationCode is one code of the form DDDDD.DD (or the sentinel DDDDD.XX)
// attached to a limitation text and a preparation. The [FirstSeen, LastSeen]
// interval covers the snapshots in which the association was observed.
type IndicationCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Code             string `json:"code" gorm:"index:idx_code_assoc,unique;not null"`
	PreparationID    uint   `json:"preparation_id" gorm:"index:idx_code_assoc,unique;not null"`
	LimitationTextID uint   `json:"limitation_text_id" gorm:"index:idx_code_assoc,unique;not null"`

	BagDossierNo string `json:"bag_dossier_no,omitempty" gorm:"index"`
	Source       string `json:"source" gorm:"not null"` // STRUCTURED | TEXT_PARSED | FALLBACK
	Level        string `json:"level" gorm:"not null"`  // PACK | PREPARATION
	LimType      string `json:"lim_type,omitempty"`     // e.g. DIA for indication limitations

	FirstSeen int `json:"first_seen" gorm:"not null"`
	LastSeen  int `json:"last_seen" gorm:"not null"`
}

func (IndicationCode) TableName() string {
	return "indication_codes"
}

// IsFallback reports whether the code is a dossier-only sentinel (".XX").
func (ic *IndicationCode) IsFallback() bool {
	return len(ic.Code) > 3 && ic.Code[len(ic.Code)-3:] == ".XX"
}
