package slcatalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDiscoverSortsByReleaseDate(t *testing.T) {
	dir := t.TempDir()
	// Spread over year subdirectories, purposely created out of order.
	writeFile(t, filepath.Join(dir, "2024"), "Preparations-2024-03.xml",
		`<Preparations ReleaseDate="01.03.2024"/>`)
	writeFile(t, filepath.Join(dir, "2023"), "Preparations-2023-12.xml",
		`<Preparations ReleaseDate="01.12.2023"/>`)
	writeFile(t, filepath.Join(dir, "2024"), "Preparations-2024-01.xml",
		`<Preparations ReleaseDate="2024-01-01"/>`)
	// Unrelated files are ignored.
	writeFile(t, dir, "README.txt", "notes")

	files, err := NewLoader(dir, zap.NewNop()).Discover()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "Preparations-2023-12.xml", files[0].Name)
	assert.Equal(t, "Preparations-2024-01.xml", files[1].Name)
	assert.Equal(t, "Preparations-2024-03.xml", files[2].Name)
}

func TestDiscoverSkipsFilesWithoutReleaseDate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Preparations-broken.xml", `<Preparations/>`)
	writeFile(t, dir, "Preparations-ok.xml", `<Preparations ReleaseDate="01.01.2024"/>`)

	files, err := NewLoader(dir, zap.NewNop()).Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Preparations-ok.xml", files[0].Name)
}

func TestLoadDecodesDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Preparations-2024-01.xml", `<?xml version="1.0" encoding="utf-8"?>
<Preparations ReleaseDate="01.01.2024">
  <Preparation>
    <SwissmedicNo5>65432</SwissmedicNo5>
    <NameDe>Revlimid</NameDe>
    <Packs>
      <Pack>
        <GTIN>7680654320011</GTIN>
        <BagDossierNo>21150</BagDossierNo>
      </Pack>
    </Packs>
    <Limitations>
      <Limitation>
        <LimitationType>DIA</LimitationType>
        <IndicationsCodes>
          <IndicationsCode Code="21150.01"/>
        </IndicationsCodes>
      </Limitation>
    </Limitations>
  </Preparation>
</Preparations>`)

	loader := NewLoader(dir, zap.NewNop())
	files, err := loader.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)

	doc, err := loader.Load(files[0])
	require.NoError(t, err)
	require.Len(t, doc.Preparations, 1)

	prep := doc.Preparations[0]
	assert.Equal(t, "65432", prep.SwissmedicNo5)
	assert.Equal(t, "Revlimid", prep.NameDe)
	require.Len(t, prep.Packs, 1)
	assert.Equal(t, "7680654320011", prep.Packs[0].GTIN)
	require.Len(t, prep.Limitations, 1)
	require.Len(t, prep.Limitations[0].IndicationsCodes, 1)
	assert.Equal(t, "21150.01", prep.Limitations[0].IndicationsCodes[0].Code)
}

func TestParseReleaseDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParseReleaseDate("01.03.2024")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseReleaseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseReleaseDate("März 2024")
	assert.Error(t, err)
}
