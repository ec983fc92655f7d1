package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sl-indications/models"
	"sl-indications/providers/slcatalog"
)

func TestIngestFullPreparation(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())
	ing := NewIngestor(store, testLogger())

	doc := &slcatalog.Document{
		Preparations: []slcatalog.Preparation{{
			SwissmedicNo5: "65432",
			NameDe:        "Revlimid",
			AtcCode:       "L04AX04",
			Limitations: []slcatalog.Limitation{{
				LimitationType: "DIA",
				DescriptionDe:  "<b>Multiples Myelom</b><br>Kriterien.",
				DescriptionFr:  "<b>Myélome multiple</b><br>Critères.",
				IndicationsCodes: []slcatalog.CodeRef{{Code: "21150.01"}},
			}},
			Packs: []slcatalog.Pack{{
				GTIN:          "7680654320011",
				SwissmedicNo8: "65432001",
				BagDossierNo:  "21150",
				DescriptionDe: "Blist 3 x 7 Stk",
				Prices: slcatalog.Prices{
					PublicPrice:    slcatalog.Price{Price: "5858.95"},
					ExFactoryPrice: slcatalog.Price{Price: "5500.00"},
				},
				Limitations: []slcatalog.Limitation{{
					LimitationType: "DIA",
					DescriptionDe:  "Nur kleine Packung.",
				}},
			}},
		}},
	}

	stats, err := ing.Ingest(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Preparations)
	assert.Equal(t, 1, stats.Packs)
	assert.Equal(t, 2, stats.Texts)
	assert.Equal(t, 1, stats.CodesStructured)
	assert.Equal(t, 1, stats.CodesFallback)
	assert.Equal(t, 0, stats.SkippedFragments)

	var pack models.Pack
	require.NoError(t, db.Where("gtin = ?", "7680654320011").First(&pack).Error)
	assert.Equal(t, "BLISTER", pack.FormType)
	require.NotNil(t, pack.TotalUnits)
	assert.Equal(t, 21, *pack.TotalUnits)
	require.NotNil(t, pack.PublicPrice)
	assert.Equal(t, 5858.95, *pack.PublicPrice)

	// Pack-level limitation without codes falls back to the dossier sentinel.
	var fallback models.IndicationCode
	require.NoError(t, db.Where("source = ?", models.CodeSourceFallback).First(&fallback).Error)
	assert.Equal(t, "21150.XX", fallback.Code)
	assert.Equal(t, models.LevelPack, fallback.Level)
	assert.True(t, fallback.IsFallback())

	var structured models.IndicationCode
	require.NoError(t, db.Where("source = ?", models.CodeSourceStructured).First(&structured).Error)
	assert.Equal(t, "21150.01", structured.Code)
	assert.Equal(t, models.LevelPreparation, structured.Level)
}

func TestIngestSkipsFragmentsWithoutIdentity(t *testing.T) {
	db := newTestDB(t)
	ing := NewIngestor(NewStore(db, testLogger()), testLogger())

	doc := &slcatalog.Document{
		Preparations: []slcatalog.Preparation{
			{NameDe: "Ohne Zulassungsnummer"},
			{
				SwissmedicNo5: "11111",
				Packs: []slcatalog.Pack{
					{DescriptionDe: "Blist 10 Stk"}, // no GTIN
					{GTIN: "7680111110001", DescriptionDe: "Blist 10 Stk"},
				},
			},
		},
	}

	stats, err := ing.Ingest(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Preparations)
	assert.Equal(t, 1, stats.Packs)
	assert.Equal(t, 2, stats.SkippedFragments)
}

func TestIngestRecordsLimitationCode(t *testing.T) {
	db := newTestDB(t)
	ing := NewIngestor(NewStore(db, testLogger()), testLogger())

	doc := &slcatalog.Document{
		Preparations: []slcatalog.Preparation{{
			SwissmedicNo5: "33333",
			Packs: []slcatalog.Pack{{
				GTIN:         "7680333330001",
				BagDossierNo: "30010",
				Limitations: []slcatalog.Limitation{{
					LimitationCode: "KLEINPACKUNG",
					LimitationType: "PER",
					DescriptionDe:  "<b>Kleinpackung</b><br>Erstverordnung.",
				}},
			}},
		}},
	}
	_, err := ing.Ingest(doc, 1)
	require.NoError(t, err)

	var text models.LimitationText
	require.NoError(t, db.First(&text).Error)
	assert.Equal(t, "KLEINPACKUNG", text.LimitationCode)
}

func TestUpsertLimitationTextBackfillsCode(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	body := "<b>Kleinpackung</b><br>Erstverordnung."
	text := models.LimitationText{ContentHash: ContentHash(body, "", ""), DescriptionDe: body}
	id, err := store.UpsertLimitationText(&text, 1)
	require.NoError(t, err)

	later := models.LimitationText{
		ContentHash:    ContentHash(body, "", ""),
		DescriptionDe:  body,
		LimitationCode: "KLEINPACKUNG",
	}
	id2, err := store.UpsertLimitationText(&later, 2)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	var saved models.LimitationText
	require.NoError(t, db.First(&saved, id).Error)
	assert.Equal(t, "KLEINPACKUNG", saved.LimitationCode)
	assert.Equal(t, 2, saved.LastSeen)
}

func TestIngestDeduplicatesTextsAcrossPreparations(t *testing.T) {
	db := newTestDB(t)
	ing := NewIngestor(NewStore(db, testLogger()), testLogger())

	shared := slcatalog.Limitation{
		LimitationType: "DIA",
		DescriptionDe:  "Gemeinsamer Text.",
		IndicationsCodes: []slcatalog.CodeRef{{Code: "20001.01"}},
	}
	doc := &slcatalog.Document{
		Preparations: []slcatalog.Preparation{
			{SwissmedicNo5: "22221", Limitations: []slcatalog.Limitation{shared}},
			{SwissmedicNo5: "22222", Limitations: []slcatalog.Limitation{shared}},
		},
	}

	_, err := ing.Ingest(doc, 1)
	require.NoError(t, err)

	var texts int64
	require.NoError(t, db.Model(&models.LimitationText{}).Count(&texts).Error)
	assert.Equal(t, int64(1), texts)

	// Both preparations keep their own association to the shared text.
	var assocs int64
	require.NoError(t, db.Model(&models.IndicationCode{}).Count(&assocs).Error)
	assert.Equal(t, int64(2), assocs)
}

func TestIngestAnnotatesCashback(t *testing.T) {
	db := newTestDB(t)
	ing := NewIngestor(NewStore(db, testLogger()), testLogger())

	doc := &slcatalog.Document{
		Preparations: []slcatalog.Preparation{{
			SwissmedicNo5: "33333",
			Limitations: []slcatalog.Limitation{{
				LimitationType: "DIA",
				DescriptionDe:  "Limitatio.",
				DescriptionFr: "Novartis Pharma Schweiz AG rembourse 30 % du prix " +
					"publique par emballage.",
				IndicationsCodes: []slcatalog.CodeRef{{Code: "20777.01"}},
			}},
		}},
	}

	_, err := ing.Ingest(doc, 1)
	require.NoError(t, err)

	var text models.LimitationText
	require.NoError(t, db.First(&text).Error)
	assert.True(t, text.IsCashback)
	assert.Equal(t, "Novartis Pharma Schweiz AG", text.CashbackCompany)
	assert.Equal(t, "percentage", text.CashbackCalcType)
	require.NotNil(t, text.CashbackCalcValue)
	assert.Equal(t, 30.0, *text.CashbackCalcValue)
	assert.Equal(t, "per_box", text.CashbackUnit)
}

func TestIngestEmptyLimitationIsIgnored(t *testing.T) {
	db := newTestDB(t)
	ing := NewIngestor(NewStore(db, testLogger()), testLogger())

	doc := &slcatalog.Document{
		Preparations: []slcatalog.Preparation{{
			SwissmedicNo5: "44444",
			Limitations:   []slcatalog.Limitation{{LimitationType: "DIA"}},
		}},
	}

	stats, err := ing.Ingest(doc, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Texts)
}
