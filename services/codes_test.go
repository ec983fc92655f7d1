package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sl-indications/models"
	"sl-indications/providers/slcatalog"
)

func TestContentHash(t *testing.T) {
	h1 := ContentHash("de", "fr", "it")
	h2 := ContentHash("de", "fr", "it")
	h3 := ContentHash("de", "fr", "")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 16)
}

func TestSplitCode(t *testing.T) {
	d, i := SplitCode("21150.01")
	assert.Equal(t, "21150", d)
	assert.Equal(t, "01", i)

	d, i = SplitCode("21150")
	assert.Equal(t, "21150", d)
	assert.Equal(t, "", i)
}

func TestExtractCodesStructured(t *testing.T) {
	lim := slcatalog.Limitation{
		LimitationType: "DIA",
		DescriptionDe:  "irrelevant",
		IndicationsCodes: []slcatalog.CodeRef{
			{Code: "21150.02"}, {Code: "21150.01"}, {Code: "21150.01"},
		},
	}
	codes, source := ExtractCodes(&lim, "21150")
	assert.Equal(t, []string{"21150.01", "21150.02"}, codes)
	assert.Equal(t, models.CodeSourceStructured, source)
}

func TestExtractCodesPmIndications(t *testing.T) {
	lim := slcatalog.Limitation{
		LimitationType: "DIA",
		PmIndications:  []slcatalog.CodeRef{{Code: "20789.03"}},
	}
	codes, source := ExtractCodes(&lim, "")
	assert.Equal(t, []string{"20789.03"}, codes)
	assert.Equal(t, models.CodeSourceStructured, source)
}

func TestExtractCodesFromText(t *testing.T) {
	lim := slcatalog.Limitation{
		LimitationType: "DIA",
		DescriptionDe:  "Es ist folgender Indikationscode an den Versicherer zu übermitteln: 12345.01.",
		DescriptionFr:  "L'assureur reçoit le code d'indication suivant à transmettre: 12345.01.",
	}
	codes, source := ExtractCodes(&lim, "12345")
	assert.Equal(t, []string{"12345.01"}, codes)
	assert.Equal(t, models.CodeSourceTextParsed, source)
}

func TestExtractCodesFallback(t *testing.T) {
	lim := slcatalog.Limitation{
		LimitationType: "DIA",
		DescriptionDe:  "Keine Codes hier.",
	}
	codes, source := ExtractCodes(&lim, "54321")
	assert.Equal(t, []string{"54321.XX"}, codes)
	assert.Equal(t, models.CodeSourceFallback, source)
}

func TestExtractCodesNoDossierNoFallback(t *testing.T) {
	lim := slcatalog.Limitation{LimitationType: "DIA", DescriptionDe: "Keine Codes."}
	codes, source := ExtractCodes(&lim, "")
	assert.Empty(t, codes)
	assert.Equal(t, "", source)
}

func TestExtractCodesNonDiaGetsNoFallback(t *testing.T) {
	lim := slcatalog.Limitation{LimitationType: "AUD", DescriptionDe: "Mengenbegrenzung."}
	codes, _ := ExtractCodes(&lim, "54321")
	assert.Empty(t, codes)
}
