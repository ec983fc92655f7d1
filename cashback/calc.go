package cashback

import (
	"regexp"
	"strconv"
	"strings"
)

type calcPattern struct {
	re       *regexp.Regexp
	calcType string
	hasValue bool
}

// calculationPatterns are tried in order; the first hit decides the
// calculation type. Types without a value (full_refund, undisclosed)
// describe the rule qualitatively.
var calculationPatterns = []calcPattern{
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*%`), "percentage", true},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:CHF|francs?)`), "chf_fixed", true},
	{regexp.MustCompile(`(?i)(?:CHF|francs?)\s*(\d+(?:[.,]\d+)?)`), "chf_fixed", true},
	{regexp.MustCompile(`(?i)Fr\.\s*(\d+(?:[.,]\d+)?)`), "chf_fixed", true},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*Fr\.`), "chf_fixed", true},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:CHF|francs?)\s*/?\s*(?:par\s+)?mg`), "per_mg", true},
	{regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:centimes?|cts?)\s*/?\s*(?:par\s+)?mg`), "per_mg_centimes", true},
	{regexp.MustCompile(`(?i)co[ûu]ts?\s+(?:de\s+)?(?:la\s+)?totalit[ée]\s+(?:de\s+)?l['’]emballage`), "full_refund", false},
	{regexp.MustCompile(`(?i)co[ûu]ts?\s+(?:de\s+)?l['’]emballage\s+complet`), "full_refund", false},
	{regexp.MustCompile(`(?i)prix\s+(?:d['’]?[ée]part\s+)?(?:usine|fabrique|PEX|PEXF)`), "full_refund_pex", false},
	{regexp.MustCompile(`(?i)[àa]\s+partir\s+d[ue]\s+(\d+)e?\s+(?:paquet|emballage|bo[îi]te)`), "threshold_box", true},
	{regexp.MustCompile(`(?i)rembourse(?:ra)?(?:\s+[àa]\s+[^0-9]*?)?\s+(\d+)(?:\s*\.|\s*,|\s+La)`), "amount_number_only", true},
	{regexp.MustCompile(`(?i)taux\s+de\s+(\d+(?:[.,]\d+)?)`), "percentage_implicit", true},
	{regexp.MustCompile(`(?i)co[ûu]ts?\s+correspondant`), "cost_refund", false},
	{regexp.MustCompile(`(?i)(?:part|partie|montant|pourcentage)\s+(?:non\s+)?(?:divulgu[ée]e?|communiqu[ée]e?|publi[ée]e?)`), "undisclosed", false},
	{regexp.MustCompile(`(?i)(?:convenu|n[ée]goci[ée])\s+(?:avec|entre)`), "undisclosed", false},
	{regexp.MustCompile(`(?i)selon\s+(?:accord|convention|contrat)`), "undisclosed", false},
	{regexp.MustCompile(`(?i)(?:partie|part)\s+fixe\s+(?:du\s+)?prix`), "undisclosed_fixed", false},
	{regexp.MustCompile(`(?i)rembourse(?:ra)?[^.]*?(?:Fr\.|montant)`), "amount_unspecified", false},
}

type unitPattern struct {
	re   *regexp.Regexp
	unit string
}

var unitPatterns = []unitPattern{
	{regexp.MustCompile(`pour\s+chaque\s+(?:emballage|bo[îi]te)`), "per_box"},
	{regexp.MustCompile(`chaque\s+(?:emballage|bo[îi]te)\s+(?:de\s+|achet[ée])`), "per_box"},
	{regexp.MustCompile(`par\s+(?:emballage|bo[îi]te)`), "per_box"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+flacon`), "per_flacon"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+seringue`), "per_syringe"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+stylo`), "per_pen"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+(?:auto-?injecteur|pen)`), "per_pen"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+solution`), "per_syringe"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+(?:dose|injection|administration)`), "per_dose"},
	{regexp.MustCompile(`(?:par|pour\s+chaque)\s+mg`), "per_mg"},
	{regexp.MustCompile(`/\s*mg\b`), "per_mg"},
	{regexp.MustCompile(`par\s+milligramme`), "per_mg"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+cycle`), "per_cycle"},
	{regexp.MustCompile(`(?:par|pour\s+chaque)\s+mois`), "per_month"},
	{regexp.MustCompile(`mensuel(?:lement)?`), "per_month"},
	{regexp.MustCompile(`(?:pour\s+chaque|par)\s+patient`), "per_patient"},
	{regexp.MustCompile(`par\s+an(?:née)?(?:\s+civile)?`), "per_year"},
	{regexp.MustCompile(`(?:par|pour\s+chaque)\s+traitement`), "per_treatment"},
	{regexp.MustCompile(`(?:par|pour\s+chaque)\s+semaine`), "per_week"},
	{regexp.MustCompile(`(?:pour\s+chaque|par|chaque)\s+paquet`), "per_box"},
}

// Calculation is the refund rule recovered from a clause. Value is nil
// for qualitative types.
type Calculation struct {
	Type  string
	Value *float64
}

// ExtractCalculation returns the first calculation rule found in the
// text, or type "unknown".
func ExtractCalculation(text string) Calculation {
	for _, p := range calculationPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		c := Calculation{Type: p.calcType}
		if p.hasValue && len(m) > 1 {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
				c.Value = &v
			}
		}
		return c
	}
	return Calculation{Type: "unknown"}
}

// ExtractUnit returns the refund unit ("per_box", "per_mg", ...) or
// "unknown".
func ExtractUnit(text string) string {
	lower := strings.ToLower(text)
	for _, p := range unitPatterns {
		if p.re.MatchString(lower) {
			return p.unit
		}
	}
	return "unknown"
}

var (
	reTags = regexp.MustCompile(`</?(?:br\s*/?|b|u)>`)
	reWS   = regexp.MustCompile(`\s+`)
)

// CleanHTML strips the markup the catalog embeds in limitation texts and
// collapses whitespace, so the French patterns see plain sentences.
func CleanHTML(text string) string {
	text = reTags.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = reWS.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
