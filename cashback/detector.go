// Package cashback detects manufacturer refund clauses in the French
// limitation texts and extracts their calculation rule. The clauses say
// that the marketing-authorisation holder pays part of the price back to
// the health insurer; phrases about the insurer reimbursing the patient
// are the false positives the detector has to reject.
package cashback

import (
	"regexp"
	"strings"
)

// falsePositivePatterns describe reimbursement by the insurer, not the
// manufacturer. A text matching only these is not a cashback clause.
var falsePositivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`garantie\s+de\s+remboursement`),
	regexp.MustCompile(`garantie\s+écrite\s+de\s+remboursement`),
	regexp.MustCompile(`cycles?\s+à\s+rembourser`),
	regexp.MustCompile(`durée\s+(?:maximale\s+)?de\s+remboursement`),
	regexp.MustCompile(`nombre\s+maximal\s+de\s+cycles\s+à\s+rembourser`),
	regexp.MustCompile(`exclus?\s+du\s+remboursement`),
	regexp.MustCompile(`remboursement\s+de\s+\w+,?\s+et\s+ceci`),
	regexp.MustCompile(`obtenir\s+le\s+remboursement\s+de`),
	regexp.MustCompile(`[A-Z][a-z]+\s+est\s+remboursé\s+jusqu`),
	regexp.MustCompile(`est\s+remboursé\s+jusqu['’]à\s+(?:la\s+)?progression`),
}

const companyName = `[A-Z][A-Za-zÀ-ÿ\-]+(?:\s+[A-Za-zÀ-ÿ\-()&]+)*\s+(?:SA|AG|Sàrl|GmbH|Ltd|Suisse|Switzerland|Schweiz)`

var (
	reCompanyRembourse = regexp.MustCompile(`(?i)(?:la\s+)?(?:société|entreprise|firme)?\s*(` + companyName + `(?:\s+[A-Za-zÀ-ÿ\-()]+)?)\s+rembourse(?:ra)?`)
	reRemboursePar     = regexp.MustCompile(`(?i)remboursé(?:s|e|es)?\s+par\s+(?:la\s+)?(?:société|entreprise|firme)?\s*(` + companyName + `(?:\s+[A-Za-zÀ-ÿ\-()]+)?)`)
	reAssureurFacture  = regexp.MustCompile(`(?i)(?:l['\s])?assureur\s+facture\s+à\s+(?:la\s+)?(?:société|entreprise|firme)?\s*(` + companyName + `)(?:\s+(?:le|un|la|les)\s|\s*\.|\s*$)`)
	reTitulaire        = regexp.MustCompile(`(?i)(?:le\s+)?titulaire\s+(?:de\s+l['’\s]autorisation[\s,]+)?(?:de\s+[A-Z][A-Za-z0-9\-]+\s+)?(?:[^,\n]{1,50},\s+)?(?:rembourse(?:ra)?|restitue)`)
	reRembourseAssur   = regexp.MustCompile(`(?i)rembourse(?:nt|ra|ront)?\s+(?:à\s+)?l['’]assur(?:ance|eur)[\s\-]?maladie`)

	rePercentageHint = regexp.MustCompile(`(?i)rembourse.*\d+[.,]?\d*\s*%\s*(?:du|de|des)`)
	reAmountHint     = regexp.MustCompile(`(?i)rembourse(?:ra)?\s+(?:à\s+l'assureur)?.*?(?:CHF|Fr\.)\s*[\d']+`)
	reFixedPartHint  = regexp.MustCompile(`(?i)rembourse.*partie\s*fixe.*prix`)
	reFullRefundHint = regexp.MustCompile(`(?i)rembourse(?:ra)?\s+(?:intégralement|complètement)`)
)

// Detection is the outcome of scanning one limitation text.
type Detection struct {
	IsCashback      bool
	Company         string
	PatternsMatched []string
}

// IsFalsePositive reports whether the text contains phrasing that looks
// like a refund clause but describes insurer-side reimbursement.
func IsFalsePositive(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range falsePositivePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// Detect scans a limitation text for a manufacturer refund clause. The
// strong patterns short-circuit and carry the company name when the
// clause names one; the weaker hints only fire on refund wording near an
// amount, and a false-positive phrasing cancels them.
func Detect(text string) Detection {
	var d Detection
	hasFP := IsFalsePositive(text)

	if m := reCompanyRembourse.FindStringSubmatch(text); m != nil {
		return Detection{true, strings.TrimSpace(m[1]), []string{"company_rembourse"}}
	}
	if m := reRemboursePar.FindStringSubmatch(text); m != nil {
		return Detection{true, strings.TrimSpace(m[1]), []string{"rembourse_par"}}
	}
	if m := reAssureurFacture.FindStringSubmatch(text); m != nil {
		return Detection{true, strings.TrimSpace(m[1]), []string{"assureur_facture"}}
	}
	if reTitulaire.MatchString(text) {
		return Detection{true, "", []string{"titulaire_rembourse"}}
	}
	if reRembourseAssur.MatchString(text) {
		return Detection{true, "", []string{"rembourse_assurance"}}
	}

	switch {
	case rePercentageHint.MatchString(text):
		d.IsCashback = true
		d.PatternsMatched = append(d.PatternsMatched, "percentage")
	case reAmountHint.MatchString(text):
		d.IsCashback = true
		d.PatternsMatched = append(d.PatternsMatched, "amount")
	case reFixedPartHint.MatchString(text):
		d.IsCashback = true
		d.PatternsMatched = append(d.PatternsMatched, "fixed_part")
	case reFullRefundHint.MatchString(text):
		d.IsCashback = true
		d.PatternsMatched = append(d.PatternsMatched, "full_refund")
	}

	if hasFP && len(d.PatternsMatched) == 0 {
		d.IsCashback = false
	}
	return d
}
