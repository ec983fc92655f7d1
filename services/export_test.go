package services

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sl-indications/models"
)

func TestCodeType(t *testing.T) {
	assert.Equal(t, "FALLBACK", CodeType("21150.XX", true))
	assert.Equal(t, "CROSS_INDICATION", CodeType("21150.XX", false))
	assert.Equal(t, "REAL_CODE", CodeType("21150.01", false))
}

func TestExportCSV(t *testing.T) {
	db := newTestDB(t)

	prep := models.Preparation{SwissmedicNo5: "65432", NameDe: "Revlimid", AtcCode: "L04AX04"}
	require.NoError(t, db.Create(&prep).Error)

	units := 21
	price := 5858.95
	pack := models.Pack{
		GTIN: "7680654320011", PreparationID: prep.ID,
		DescriptionDe: "Blist 3 x 7 Stk", FormType: "BLISTER",
		TotalUnits: &units, PublicPrice: &price,
	}
	require.NoError(t, db.Create(&pack).Error)

	text := models.LimitationText{
		ContentHash: ContentHash("x", "texte fr", ""), DescriptionFr: "texte fr",
		IsCashback: true, CashbackCompany: "Bristol-Myers Squibb SA",
	}
	require.NoError(t, db.Create(&text).Error)

	from := date(2024, 3, 1)
	require.NoError(t, db.Create(&models.CodeLink{
		GTIN: pack.GTIN, Code: "21150.01", LimitationTextID: text.ID,
		PackID: pack.ID, CodeSource: models.CodeSourceStructured,
		Level: models.LevelPreparation, EffectiveFrom: &from,
	}).Error)

	data, err := NewExporter(db, testLogger()).ExportCSV()
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])

	row := records[1]
	assert.Equal(t, "7680654320011", row[0])
	assert.Equal(t, "Revlimid", row[1])
	assert.Equal(t, "BLISTER", row[5])
	assert.Equal(t, "21", row[6])
	assert.Equal(t, "5858.95", row[7])
	assert.Equal(t, "21150.01", row[9])
	assert.Equal(t, "REAL_CODE", row[12])
	assert.Equal(t, "2024-03-01", row[14])
	assert.Equal(t, "true", row[16])
	assert.Equal(t, "Bristol-Myers Squibb SA", row[17])
}

func TestSummarize(t *testing.T) {
	db := newTestDB(t)

	seedText(t, db, "summary", []string{"Psoriasis"},
		[]seedCode{{"20123.01", models.CodeSourceStructured}})
	require.NoError(t, db.Create(&models.CodeLink{
		GTIN: "7680000000001", Code: "20123.XX", LimitationTextID: 1,
		IsFallback: true,
	}).Error)

	s, err := NewExporter(db, testLogger()).Summarize()
	require.NoError(t, err)

	assert.Equal(t, int64(1), s.Texts)
	assert.Equal(t, int64(1), s.Codes)
	assert.Equal(t, int64(1), s.CodeLinks)
	assert.Equal(t, int64(1), s.Segments)
	assert.Equal(t, int64(0), s.SegmentsMatched)
	assert.Equal(t, int64(1), s.SegmentsUnresolved)
	assert.Equal(t, int64(1), s.LinksByCodeType["FALLBACK"])
	// 20123.01 has no derived name yet, and "Psoriasis" is still unmatched.
	assert.Equal(t, int64(1), s.CodesWithoutNames)
	assert.Equal(t, int64(1), s.NamesWithoutCodes)
	assert.Nil(t, s.LastRun)
}
