package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitByIndication(t *testing.T) {
	text := "<b>Psoriasis</b><br>Kriterien für Psoriasis.<br><br>" +
		"<b>Psoriasis-Arthritis</b><br>Kriterien für Arthritis."

	segs := SplitByIndication(text)
	require.Len(t, segs, 2)
	assert.Equal(t, "Psoriasis", segs[0].Name)
	assert.Contains(t, segs[0].Text, "Kriterien für Psoriasis.")
	assert.Equal(t, "Psoriasis-Arthritis", segs[1].Name)
	assert.Contains(t, segs[1].Text, "Kriterien für Arthritis.")
}

func TestSplitByIndicationIgnoresInlineBold(t *testing.T) {
	// Mid-sentence emphasis is not a header.
	assert.Nil(t, SplitByIndication("Behandlung nur <b>einmal</b> pro Jahr."))
	assert.Nil(t, SplitByIndication(""))
}

func TestIsStructuralName(t *testing.T) {
	structural := []string{
		"", "UND", "ODER", "et", "Vor Therapiebeginn muss",
		"Fr. 3'500.-", "CHF 100", "Therapieabbruch:", "12.5", "Erwachsene",
	}
	for _, name := range structural {
		assert.True(t, IsStructuralName(name), name)
	}

	indications := []string{
		"Psoriasis", "Psoriasis-Arthritis", "Multiples Myelom",
		"Morbus Crohn:", "COPD",
	}
	for _, name := range indications {
		assert.False(t, IsStructuralName(name), name)
	}
}

func TestSegmentTextAlignsLanguagesPositionally(t *testing.T) {
	de := "<b>Psoriasis</b><br>Text de 1.<br><br><b>Arthritis</b><br>Text de 2."
	fr := "<b>Psoriasis</b><br>Texte fr 1.<br><br><b>Arthrite</b><br>Texte fr 2."
	it := "<b>Psoriasi</b><br>Testo it 1."

	segs := SegmentText(de, fr, it)
	require.Len(t, segs, 2)

	assert.Equal(t, 0, segs[0].Order)
	assert.Equal(t, "Psoriasis", *segs[0].NameDe)
	assert.Equal(t, "Psoriasis", *segs[0].NameFr)
	assert.Equal(t, "Psoriasi", *segs[0].NameIt)

	assert.Equal(t, 1, segs[1].Order)
	assert.Equal(t, "Arthritis", *segs[1].NameDe)
	assert.Equal(t, "Arthrite", *segs[1].NameFr)
	assert.Nil(t, segs[1].NameIt)
}

func TestSegmentTextDropsStructuralHeadersAndRenumbers(t *testing.T) {
	de := "<b>Vor Therapiebeginn</b><br>Voraussetzungen.<br><br>" +
		"<b>Multiples Myelom</b><br>Kriterien."

	segs := SegmentText(de, "", "")
	require.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].Order)
	assert.Equal(t, "Multiples Myelom", *segs[0].NameDe)
}

func TestSegmentTextWithoutGermanHeaderIsDropped(t *testing.T) {
	// A position only the French body produced cannot be matched and is
	// filtered out; a text with no headers at all yields no segmentation.
	fr := "<b>Psoriasis</b><br>Texte."
	assert.Nil(t, SegmentText("Kein Header.", fr, ""))
}
