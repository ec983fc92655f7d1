package cashback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCompanyRembourse(t *testing.T) {
	d := Detect("La société Bristol-Myers Squibb SA rembourse 30 % du prix public par emballage.")
	assert.True(t, d.IsCashback)
	assert.Equal(t, "Bristol-Myers Squibb SA", d.Company)
	assert.Equal(t, []string{"company_rembourse"}, d.PatternsMatched)
}

func TestDetectRemboursePar(t *testing.T) {
	d := Detect("Le montant est remboursé par Amgen Switzerland AG à l'assureur.")
	assert.True(t, d.IsCashback)
	assert.Contains(t, d.Company, "Amgen Switzerland AG")
	assert.Equal(t, []string{"rembourse_par"}, d.PatternsMatched)
}

func TestDetectAssureurFacture(t *testing.T) {
	d := Detect("L'assureur facture à Novartis Pharma Schweiz AG le montant correspondant.")
	assert.True(t, d.IsCashback)
	assert.Equal(t, "Novartis Pharma Schweiz AG", d.Company)
	assert.Equal(t, []string{"assureur_facture"}, d.PatternsMatched)
}

func TestDetectTitulaireWithoutCompany(t *testing.T) {
	d := Detect("Le titulaire de l'autorisation rembourse la partie fixe du prix.")
	assert.True(t, d.IsCashback)
	assert.Equal(t, "", d.Company)
	assert.Equal(t, []string{"titulaire_rembourse"}, d.PatternsMatched)
}

func TestDetectHintOnly(t *testing.T) {
	d := Detect("Le fabricant rembourse 50 % du prix de la préparation.")
	assert.True(t, d.IsCashback)
	assert.Contains(t, d.PatternsMatched, "percentage")
}

func TestDetectRejectsInsurerSideReimbursement(t *testing.T) {
	texts := []string{
		"Une garantie de remboursement préalable est nécessaire.",
		"Nombre maximal de cycles à rembourser: 6.",
		"Ce produit est exclu du remboursement.",
	}
	for _, text := range texts {
		assert.True(t, IsFalsePositive(text), text)
		d := Detect(text)
		assert.False(t, d.IsCashback, text)
	}
}

func TestDetectStrongPatternBeatsFalsePositive(t *testing.T) {
	// A real refund clause is not cancelled by false-positive phrasing in
	// the same text.
	d := Detect("Une garantie de remboursement est requise. " +
		"La société Bristol-Myers Squibb SA rembourse 30 % du prix.")
	assert.True(t, d.IsCashback)
	assert.Equal(t, "Bristol-Myers Squibb SA", d.Company)
}

func TestDetectPlainTextIsNotCashback(t *testing.T) {
	d := Detect("Traitement du myélome multiple récidivant en association avec la dexaméthasone.")
	assert.False(t, d.IsCashback)
	assert.Empty(t, d.PatternsMatched)
}
