package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sl-indications/models"
)

func TestUpsertPreparationTracksInterval(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	id, err := store.UpsertPreparation(&models.Preparation{
		SwissmedicNo5: "12345", NameDe: "Testex", AtcCode: "L04AB01",
	}, 1)
	require.NoError(t, err)

	// Re-observed three snapshots later with a renamed product.
	id2, err := store.UpsertPreparation(&models.Preparation{
		SwissmedicNo5: "12345", NameDe: "Testex Forte", AtcCode: "L04AB01",
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	var prep models.Preparation
	require.NoError(t, db.First(&prep, id).Error)
	assert.Equal(t, 1, prep.FirstSeen)
	assert.Equal(t, 4, prep.LastSeen)
	assert.Equal(t, "Testex Forte", prep.NameDe)
}

func TestUpsertPreparationLastSeenNeverDecreases(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	id, err := store.UpsertPreparation(&models.Preparation{SwissmedicNo5: "12345"}, 5)
	require.NoError(t, err)
	_, err = store.UpsertPreparation(&models.Preparation{SwissmedicNo5: "12345"}, 3)
	require.NoError(t, err)

	var prep models.Preparation
	require.NoError(t, db.First(&prep, id).Error)
	assert.Equal(t, 5, prep.FirstSeen)
	assert.Equal(t, 5, prep.LastSeen)
}

func TestUpsertPackIdentityConflict(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	_, err := store.UpsertPack(&models.Pack{GTIN: "7680123456789", PreparationID: 1}, 1)
	require.NoError(t, err)

	// Same GTIN shows up under another preparation: newer value wins.
	_, err = store.UpsertPack(&models.Pack{GTIN: "7680123456789", PreparationID: 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, store.IdentityConflicts)

	var pack models.Pack
	require.NoError(t, db.Where("gtin = ?", "7680123456789").First(&pack).Error)
	assert.Equal(t, uint(2), pack.PreparationID)
	assert.Equal(t, 1, pack.FirstSeen)
	assert.Equal(t, 2, pack.LastSeen)
}

func TestUpsertPackKeepsPriceWhenSnapshotHasNone(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	price := 123.45
	_, err := store.UpsertPack(&models.Pack{
		GTIN: "7680111111111", PreparationID: 1, PublicPrice: &price,
	}, 1)
	require.NoError(t, err)

	_, err = store.UpsertPack(&models.Pack{GTIN: "7680111111111", PreparationID: 1}, 2)
	require.NoError(t, err)

	var pack models.Pack
	require.NoError(t, db.Where("gtin = ?", "7680111111111").First(&pack).Error)
	require.NotNil(t, pack.PublicPrice)
	assert.Equal(t, 123.45, *pack.PublicPrice)
}

func TestUpsertPackRefreshesParsedDescription(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	units := 10
	_, err := store.UpsertPack(&models.Pack{
		GTIN: "7680222222222", PreparationID: 1,
		DescriptionDe: "Blist 10 Stk", FormType: "BLISTER", TotalUnits: &units,
	}, 1)
	require.NoError(t, err)

	newUnits := 30
	_, err = store.UpsertPack(&models.Pack{
		GTIN: "7680222222222", PreparationID: 1,
		DescriptionDe: "Blist 30 Stk", FormType: "BLISTER", TotalUnits: &newUnits,
	}, 2)
	require.NoError(t, err)

	var pack models.Pack
	require.NoError(t, db.Where("gtin = ?", "7680222222222").First(&pack).Error)
	assert.Equal(t, "Blist 30 Stk", pack.DescriptionDe)
	require.NotNil(t, pack.TotalUnits)
	assert.Equal(t, 30, *pack.TotalUnits)
}

func TestUpsertLimitationTextExtendsInterval(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	text := models.LimitationText{ContentHash: ContentHash("de", "fr", "it")}
	id, err := store.UpsertLimitationText(&text, 2)
	require.NoError(t, err)

	id2, err := store.UpsertLimitationText(&models.LimitationText{
		ContentHash: ContentHash("de", "fr", "it"),
	}, 6)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	var row models.LimitationText
	require.NoError(t, db.First(&row, id).Error)
	assert.Equal(t, 2, row.FirstSeen)
	assert.Equal(t, 6, row.LastSeen)
}

func TestUpsertIndicationCodeSourceUpgrade(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db, testLogger())

	id, err := store.UpsertIndicationCode(&models.IndicationCode{
		Code: "12345.01", PreparationID: 1, LimitationTextID: 1,
		Source: models.CodeSourceTextParsed, Level: models.LevelPreparation,
	}, 1)
	require.NoError(t, err)

	// The same code later appears machine-readable: the stronger source wins.
	_, err = store.UpsertIndicationCode(&models.IndicationCode{
		Code: "12345.01", PreparationID: 1, LimitationTextID: 1,
		Source: models.CodeSourceStructured, Level: models.LevelPreparation,
	}, 2)
	require.NoError(t, err)

	var row models.IndicationCode
	require.NoError(t, db.First(&row, id).Error)
	assert.Equal(t, models.CodeSourceStructured, row.Source)
	assert.Equal(t, 2, row.LastSeen)

	// The reverse direction never downgrades.
	_, err = store.UpsertIndicationCode(&models.IndicationCode{
		Code: "12345.01", PreparationID: 1, LimitationTextID: 1,
		Source: models.CodeSourceTextParsed, Level: models.LevelPreparation,
	}, 3)
	require.NoError(t, err)
	require.NoError(t, db.First(&row, id).Error)
	assert.Equal(t, models.CodeSourceStructured, row.Source)
}
