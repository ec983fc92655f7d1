package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sl-indications/models"
)

const snapshotJanuary = `<?xml version="1.0" encoding="utf-8"?>
<Preparations ReleaseDate="01.01.2024">
  <Preparation>
    <SwissmedicNo5>65432</SwissmedicNo5>
    <NameDe>Otezla</NameDe>
    <AtcCode>L04AA32</AtcCode>
    <OrgGenCode>O</OrgGenCode>
    <Limitations>
      <Limitation>
        <LimitationType>DIA</LimitationType>
        <DescriptionDe>&lt;b&gt;Psoriasis&lt;/b&gt;&lt;br&gt;Kriterien eins.&lt;br&gt;&lt;br&gt;&lt;b&gt;Psoriasis-Arthritis&lt;/b&gt;&lt;br&gt;Kriterien zwei.</DescriptionDe>
        <DescriptionFr>&lt;b&gt;Psoriasis&lt;/b&gt;&lt;br&gt;Critères un.&lt;br&gt;&lt;br&gt;&lt;b&gt;Arthrite psoriasique&lt;/b&gt;&lt;br&gt;Critères deux.</DescriptionFr>
        <IndicationsCodes>
          <IndicationsCode Code="20123.02"/>
          <IndicationsCode Code="20123.01"/>
        </IndicationsCodes>
      </Limitation>
    </Limitations>
    <Packs>
      <Pack>
        <GTIN>7680654320011</GTIN>
        <SwissmedicNo8>65432001</SwissmedicNo8>
        <BagDossierNo>20123</BagDossierNo>
        <DescriptionDe>Blist 2 x 28 Stk</DescriptionDe>
        <Prices>
          <PublicPrice><Price>1041.35</Price></PublicPrice>
        </Prices>
      </Pack>
    </Packs>
  </Preparation>
</Preparations>`

const snapshotFebruary = `<?xml version="1.0" encoding="utf-8"?>
<Preparations ReleaseDate="01.02.2024">
  <Preparation>
    <SwissmedicNo5>65432</SwissmedicNo5>
    <NameDe>Otezla</NameDe>
    <AtcCode>L04AA32</AtcCode>
    <OrgGenCode>O</OrgGenCode>
    <Limitations>
      <Limitation>
        <LimitationType>DIA</LimitationType>
        <DescriptionDe>&lt;b&gt;Psoriasis&lt;/b&gt;&lt;br&gt;Kriterien eins.&lt;br&gt;&lt;br&gt;&lt;b&gt;Psoriasis-Arthritis&lt;/b&gt;&lt;br&gt;Kriterien zwei.</DescriptionDe>
        <DescriptionFr>&lt;b&gt;Psoriasis&lt;/b&gt;&lt;br&gt;Critères un.&lt;br&gt;&lt;br&gt;&lt;b&gt;Arthrite psoriasique&lt;/b&gt;&lt;br&gt;Critères deux.</DescriptionFr>
        <IndicationsCodes>
          <IndicationsCode Code="20123.02"/>
          <IndicationsCode Code="20123.01"/>
        </IndicationsCodes>
      </Limitation>
    </Limitations>
    <Packs>
      <Pack>
        <GTIN>7680654320011</GTIN>
        <SwissmedicNo8>65432001</SwissmedicNo8>
        <BagDossierNo>20123</BagDossierNo>
        <DescriptionDe>Blist 2 x 28 Stk</DescriptionDe>
        <Prices>
          <PublicPrice><Price>1041.35</Price></PublicPrice>
        </Prices>
      </Pack>
    </Packs>
  </Preparation>
</Preparations>`

func writeSnapshots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "Preparations-2024-01.xml"), []byte(snapshotJanuary), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "Preparations-2024-02.xml"), []byte(snapshotFebruary), 0o644))
	return dir
}

func TestPipelineEndToEnd(t *testing.T) {
	db := newTestDB(t)
	dir := writeSnapshots(t)

	report, err := NewPipeline(db, dir, testLogger()).Run()
	require.NoError(t, err)

	assert.Equal(t, 2, report.Snapshots)
	assert.Equal(t, 1, report.Preparations)
	assert.Equal(t, 1, report.Packs)
	assert.Equal(t, 2, report.Segments)
	assert.Equal(t, 2, report.SegmentsMatched)
	assert.Equal(t, 0, report.SegmentsUnresolved)
	assert.Equal(t, 2, report.CodeLinks)
	assert.Equal(t, 0, report.IdentityConflicts)

	// The pack was observed in both snapshots, so its code links span both.
	var links []models.CodeLink
	require.NoError(t, db.Order("code").Find(&links).Error)
	require.Len(t, links, 2)
	assert.Equal(t, "20123.01", links[0].Code)
	require.NotNil(t, links[0].EffectiveFrom)
	require.NotNil(t, links[0].EffectiveTo)
	assert.Equal(t, date(2024, 1, 1), links[0].EffectiveFrom.UTC())
	assert.Equal(t, date(2024, 2, 1), links[0].EffectiveTo.UTC())

	// Ordinal pairing resolves both segments at 0.8.
	var segs []models.Segment
	require.NoError(t, db.Order("segment_order").Find(&segs).Error)
	require.Len(t, segs, 2)
	assert.Equal(t, "Psoriasis", *segs[0].NameDe)
	assert.Equal(t, "20123.01", *segs[0].MatchedCode)
	assert.Equal(t, "Psoriasis-Arthritis", *segs[1].NameDe)
	assert.Equal(t, "20123.02", *segs[1].MatchedCode)
	assert.Equal(t, MatchOrdinal, *segs[0].MatchSource)

	var saved models.RunReport
	require.NoError(t, db.First(&saved).Error)
	assert.Equal(t, report.Segments, saved.Segments)
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	dir := writeSnapshots(t)

	pipe := NewPipeline(db, dir, testLogger())
	first, err := pipe.Run()
	require.NoError(t, err)
	second, err := pipe.Run()
	require.NoError(t, err)

	assert.Equal(t, first.Segments, second.Segments)
	assert.Equal(t, first.SegmentsMatched, second.SegmentsMatched)

	var snapshots int64
	require.NoError(t, db.Model(&models.Snapshot{}).Count(&snapshots).Error)
	assert.Equal(t, int64(2), snapshots)

	var links int64
	require.NoError(t, db.Model(&models.CodeLink{}).Count(&links).Error)
	assert.Equal(t, int64(2), links)
}

func TestPersistSegmentsSkipsSmallPackTexts(t *testing.T) {
	db := newTestDB(t)

	// Small-pack limitations carry bold spans too, but those never name
	// indications.
	smallPack := "<b>Kleinpackung</b><br>Erstverordnung.<br><br><b>Dosisanpassung</b><br>Details."
	require.NoError(t, db.Create(&models.LimitationText{
		ContentHash:    ContentHash(smallPack, "", ""),
		DescriptionDe:  smallPack,
		LimitationCode: "KLEINPACKUNG",
		FirstSeen:      1, LastSeen: 1,
	}).Error)

	indication := "<b>Morbus Crohn</b><br>Kriterien."
	require.NoError(t, db.Create(&models.LimitationText{
		ContentHash:   ContentHash(indication, "", ""),
		DescriptionDe: indication,
		FirstSeen:     1, LastSeen: 1,
	}).Error)

	p := &Pipeline{DB: db, Logger: testLogger()}
	total, err := p.persistSegments()
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	var segs []models.Segment
	require.NoError(t, db.Find(&segs).Error)
	require.Len(t, segs, 1)
	assert.Equal(t, "Morbus Crohn", *segs[0].NameDe)
}

func TestPipelineFailsWithoutSnapshots(t *testing.T) {
	db := newTestDB(t)
	_, err := NewPipeline(db, t.TempDir(), testLogger()).Run()
	assert.Error(t, err)
}
