package models

import "time"

// RunReport stores the aggregate counts of one full pipeline run. These are
// the only failure signal of the batch core: an operator reviews them before
// trusting the output.
type RunReport struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Snapshots int `json:"snapshots"`

	// Preparations and Packs hold the counts of the newest snapshot, i.e.
	// the current catalog size. Texts and the code counters below accumulate
	// over every snapshot of the run.
	Preparations int `json:"preparations"`
	Packs        int `json:"packs"`
	Texts        int `json:"texts"`

	CodesStructured int `json:"codes_structured"`
	CodesTextParsed int `json:"codes_text_parsed"`
	CodesFallback   int `json:"codes_fallback"`

	CodeLinks          int `json:"code_links"`
	Segments           int `json:"segments"`
	SegmentsMatched    int `json:"segments_matched"`
	SegmentsUnresolved int `json:"segments_unresolved"`
	SkippedFragments   int `json:"skipped_fragments"`
	IdentityConflicts  int `json:"identity_conflicts"`
}

func (RunReport) TableName() string {
	return "run_reports"
}
