// Package packdesc parses the free-text German pack descriptions of the
// catalog ("Blist 10 x 10 Stk", "Durchstf 1 Stk 10 ml") into structured
// SKU attributes. The grammar is a fixed cascade of patterns tried in
// order; the first match wins and sets the parse pattern tag.
package packdesc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FormTypeMap maps the catalog's German form abbreviations to
// standardised container types.
var FormTypeMap = map[string]string{
	"Fertigspr COP":   "SYRINGE",
	"Plastik-Fertspr": "SYRINGE",
	"Fertigspr":       "SYRINGE",
	"Fertspr":         "SYRINGE",
	"Spr":             "SYRINGE",
	"Spritzamp":       "SYRINGE_AMPOULE",
	"Dosierspr":       "METERED_SYRINGE",
	"Zyl Amp":         "SYRINGE_AMPOULE",
	"Fertigpen":       "PEN",
	"Fertpen":         "PEN",
	"vorgef Injektor": "INJECTOR",
	"Injektor":        "INJECTOR",
	"Fertinj":         "INJECTOR",
	"Inj kit":         "INJECTION_KIT",
	"Act O Vial":      "VIAL",
	"Durchstfl":       "VIAL",
	"Durchstf":        "VIAL",
	"Onco-Tain":       "VIAL",
	"Cytosafe":        "VIAL",
	"Vial":            "VIAL",
	"Zweik Amp":       "AMPOULE",
	"Trinkamp":        "ORAL_AMPOULE",
	"Amp":             "AMPOULE",
	"Plast Fl":        "BOTTLE",
	"Glasfl":          "BOTTLE",
	"Glas Fl":         "BOTTLE",
	"Tropffl":         "BOTTLE",
	"Dosierfl":        "BOTTLE",
	"PP Fl":           "BOTTLE",
	"Glas":            "BOTTLE",
	"Fl":              "BOTTLE",
	"PocketPack":      "BLISTER",
	"Blist":           "BLISTER",
	"Doppel Btl":      "SACHET",
	"Dppl Btl":        "SACHET",
	"KabiPac":         "SACHET",
	"Stick":           "SACHET",
	"Btl":             "SACHET",
	"Infusionsbtl":    "BAG",
	"Polybag":         "BAG",
	"Freeflex":        "BAG",
	"Tb":              "TUBE",
	"Dosierpumpe":     "DISPENSER",
	"Disp":            "DISPENSER",
	"Ds":              "DISPENSER",
	"Dosieraeros":     "AEROSOL",
	"Monodos":         "MONODOSE",
	"Unidos":          "MONODOSE",
	"Respule":         "MONODOSE",
	"Patronen":        "CARTRIDGE",
	"Patrone":         "CARTRIDGE",
	"Set":             "SET",
	"Tagesdosen":      "DAILY_DOSE",
	"Topf":            "JAR",
}

// formAlternation joins the form tokens longest-first so "Plast Fl"
// matches before "Fl".
func formAlternation() string {
	tokens := make([]string, 0, len(FormTypeMap))
	for t := range FormTypeMap {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return strings.Join(quoted, "|")
}

const (
	numPat  = `(\d+(?:\.\d+)?)`
	unitPat = `(ml|g|MBq|GBq|kBq|Stk|Dos|Dosen)`
)

var (
	formPat = formAlternation()

	reAnnotation = regexp.MustCompile(`\s*\(([^)]+)\)`)
	reSubPack    = regexp.MustCompile(`^\d+\s*x\s*\d+`)

	reTrailingDot = regexp.MustCompile(`\.\s*$`)
	reMidDot      = regexp.MustCompile(`(\w)\.\s`)
	reQualifier   = regexp.MustCompile(`(Fertspr|Durchstf|Fertpen)\s+\S+-\S+\s+`)

	reP1   = regexp.MustCompile(`^(` + formPat + `)\s+` + numPat + `\s*x\s*` + numPat + `\s*x\s*` + numPat + `\s+` + unitPat + `$`)
	reP1b  = regexp.MustCompile(`^(` + formPat + `)\s+` + numPat + `\s*x\s*` + numPat + `\s+` + unitPat + `$`)
	reP2   = regexp.MustCompile(`^` + numPat + `\s*x\s*(` + formPat + `)\s+` + numPat + `\s+` + unitPat + `$`)
	reP3   = regexp.MustCompile(`^` + numPat + `\s*x\s*` + numPat + `\s+` + unitPat + `$`)
	reP4   = regexp.MustCompile(`^` + numPat + `\s+(` + formPat + `)\s+` + numPat + `\s+` + unitPat + `$`)
	reP5   = regexp.MustCompile(`^(` + formPat + `)\s+` + numPat + `\s+(Stk)$`)
	reP6   = regexp.MustCompile(`^(` + formPat + `)\s+` + numPat + `\s+` + unitPat + `$`)
	reP7   = regexp.MustCompile(`^(` + formPat + `)\s+` + numPat + `\s+(Dos|Dosen)$`)
	reP8   = regexp.MustCompile(`^` + numPat + `\s+(` + formPat + `)$`)
	reP8b  = regexp.MustCompile(`^` + numPat + `\s*x\s*` + numPat + `\s+(` + formPat + `)$`)
	reP9   = regexp.MustCompile(`^` + numPat + `\s+` + unitPat + `$`)
	reP10  = regexp.MustCompile(`^` + numPat + `\s+` + numPat + `\s+` + unitPat + `$`)
	reP11  = regexp.MustCompile(`^` + numPat + `\s+(ml|g)\s+zur\s+(.+)$`)
	reP12  = regexp.MustCompile(`^(` + formPat + `)\s+` + numPat + `\s+Stk\s+` + numPat + `\s+` + unitPat + `$`)
	reP13  = regexp.MustCompile(`^` + numPat + `\s+(ml|g)\s+` + numPat + `\s+Stk$`)
	reP14  = regexp.MustCompile(`^` + numPat + `\s+(` + formPat + `)\s+` + numPat + `\s+Btl\s+[àa]\s+` + numPat + `\s+Stk$`)
	reBare = regexp.MustCompile(`^(` + formPat + `)$`)

	reSubstanceQty = regexp.MustCompile(`^(<|ca\.\s*|min\.\s*|max\.\s*|~\s*)`)
)

// Result holds all attributes recovered from one description. Pointer
// fields stay nil when the matched pattern carries no such component.
type Result struct {
	FormType        string
	FormTypeRaw     string
	ContainerCount  *int
	UnitCount       *int
	VolumePerUnit   *float64
	VolumeUnit      string
	TotalVolume     *float64
	DoseCount       *int
	Multiplier      *int
	MultipliedCount *int
	TotalUnits      *int
	IsAlt           bool
	Annotation      string
	ParseConfidence string
	ParsePattern    string
}

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func num(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func (r *Result) setForm(raw string) {
	r.FormTypeRaw = raw
	r.FormType = FormTypeMap[raw]
}

// Parse parses one pack description. It never fails; unrecognised input
// comes back with ParsePattern "UNMATCHED" and confidence "LOW".
func Parse(rawDesc string) Result {
	r := Result{ParseConfidence: "LOW", ParsePattern: "UNMATCHED"}
	if strings.TrimSpace(rawDesc) == "" {
		return r
	}
	desc := strings.TrimSpace(rawDesc)

	// Pull parenthetical annotations out first; "(alt)" / "(ancien)" marks
	// the superseded variant of a relisted pack.
	var textAnnots []string
	for _, m := range reAnnotation.FindAllStringSubmatch(desc, -1) {
		a := strings.TrimSpace(m[1])
		if l := strings.ToLower(a); l == "alt" || l == "ancien" {
			r.IsAlt = true
		} else if !reSubPack.MatchString(a) {
			textAnnots = append(textAnnots, a)
		}
	}
	desc = strings.TrimSpace(reAnnotation.ReplaceAllString(desc, ""))
	if len(textAnnots) > 0 {
		r.Annotation = strings.Join(textAnnots, "; ")
	}

	desc = reTrailingDot.ReplaceAllString(desc, "")
	desc = reMidDot.ReplaceAllString(desc, "$1 ")
	desc = strings.TrimSuffix(desc, ".")
	desc = reQualifier.ReplaceAllString(desc, "$1 ")

	if m := reP1.FindStringSubmatch(desc); m != nil {
		r.setForm(m[1])
		n1, n2, n3, unit := num(m[2]), num(m[3]), num(m[4]), m[5]
		r.Multiplier = intp(int(n1))
		r.MultipliedCount = intp(int(n2))
		if unit == "Stk" || unit == "Dos" || unit == "Dosen" {
			r.UnitCount = intp(int(n3))
			r.TotalUnits = intp(int(n1) * int(n2) * int(n3))
			if unit != "Stk" {
				r.DoseCount = r.TotalUnits
			}
		} else {
			r.VolumePerUnit = floatp(n3)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1 * n2 * n3)
			r.TotalUnits = intp(int(n1) * int(n2))
		}
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P1_TRIPLE"
		return r
	}

	if m := reP1b.FindStringSubmatch(desc); m != nil {
		r.setForm(m[1])
		n1, n2, unit := num(m[2]), num(m[3]), m[4]
		r.Multiplier = intp(int(n1))
		r.MultipliedCount = intp(int(n2))
		switch unit {
		case "Stk":
			r.UnitCount = intp(int(n2))
			r.TotalUnits = intp(int(n1) * int(n2))
		case "Dos", "Dosen":
			r.DoseCount = intp(int(n1) * int(n2))
			r.TotalUnits = intp(int(n1))
		default:
			r.VolumePerUnit = floatp(n2)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1 * n2)
			r.TotalUnits = intp(int(n1))
		}
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P1B_FORM_MULT"
		return r
	}

	if m := reP8b.FindStringSubmatch(desc); m != nil {
		n1, n2 := num(m[1]), num(m[2])
		r.setForm(m[3])
		r.Multiplier = intp(int(n1))
		r.ContainerCount = intp(int(n2))
		r.TotalUnits = intp(int(n1) * int(n2))
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "P8B_MULT_FORM_BARE"
		return r
	}

	if m := reP2.FindStringSubmatch(desc); m != nil {
		n1 := num(m[1])
		r.setForm(m[2])
		n2, unit := num(m[3]), m[4]
		r.Multiplier = intp(int(n1))
		switch unit {
		case "Stk":
			r.UnitCount = intp(int(n2))
			r.TotalUnits = intp(int(n1) * int(n2))
		case "Dos", "Dosen":
			r.DoseCount = intp(int(n1) * int(n2))
			r.TotalUnits = intp(int(n1))
		default:
			r.VolumePerUnit = floatp(n2)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1 * n2)
			r.ContainerCount = intp(int(n1))
			r.TotalUnits = intp(int(n1))
		}
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P2_MULT_FORM_UNIT"
		return r
	}

	if m := reP3.FindStringSubmatch(desc); m != nil {
		n1, n2, unit := num(m[1]), num(m[2]), m[3]
		r.Multiplier = intp(int(n1))
		r.MultipliedCount = intp(int(n2))
		switch unit {
		case "Stk":
			r.UnitCount = intp(int(n2))
			r.TotalUnits = intp(int(n1) * int(n2))
		case "Dos", "Dosen":
			r.DoseCount = intp(int(n1) * int(n2))
			r.TotalUnits = intp(int(n1))
		default:
			r.VolumePerUnit = floatp(n2)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1 * n2)
			r.TotalUnits = intp(int(n1))
		}
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P3_MULT_UNIT"
		return r
	}

	if m := reP4.FindStringSubmatch(desc); m != nil {
		n1 := num(m[1])
		r.setForm(m[2])
		n2, unit := num(m[3]), m[4]
		r.ContainerCount = intp(int(n1))
		switch unit {
		case "Stk":
			r.UnitCount = intp(int(n2))
			r.TotalUnits = intp(int(n1) * int(n2))
		case "Dos", "Dosen":
			r.DoseCount = intp(int(n1) * int(n2))
			r.TotalUnits = intp(int(n1))
		default:
			r.VolumePerUnit = floatp(n2)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1 * n2)
			r.TotalUnits = intp(int(n1))
		}
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P4_N_FORM_VOL"
		return r
	}

	if m := reP5.FindStringSubmatch(desc); m != nil {
		r.setForm(m[1])
		n1 := int(num(m[2]))
		r.UnitCount = intp(n1)
		r.ContainerCount = intp(n1)
		r.TotalUnits = intp(n1)
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P5_FORM_STK"
		return r
	}

	// P7 before P6 so "Dosierspr 140 Dos" is recorded as a dose count.
	if m := reP7.FindStringSubmatch(desc); m != nil {
		r.setForm(m[1])
		r.DoseCount = intp(int(num(m[2])))
		r.ContainerCount = intp(1)
		r.TotalUnits = intp(1)
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P7_FORM_DOS"
		return r
	}

	if m := reP6.FindStringSubmatch(desc); m != nil && m[3] != "Stk" {
		r.setForm(m[1])
		n1 := num(m[2])
		r.VolumePerUnit = floatp(n1)
		r.VolumeUnit = m[3]
		r.ContainerCount = intp(1)
		r.TotalVolume = floatp(n1)
		r.TotalUnits = intp(1)
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P6_FORM_VOL"
		return r
	}

	if m := reP8.FindStringSubmatch(desc); m != nil {
		n1 := int(num(m[1]))
		r.setForm(m[2])
		r.ContainerCount = intp(n1)
		r.TotalUnits = intp(n1)
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "P8_N_FORM"
		return r
	}

	if m := reP11.FindStringSubmatch(desc); m != nil {
		n1 := num(m[1])
		r.VolumePerUnit = floatp(n1)
		r.VolumeUnit = m[2]
		r.TotalVolume = floatp(n1)
		r.TotalUnits = intp(1)
		if r.Annotation != "" {
			r.Annotation += "; zur " + m[3]
		} else {
			r.Annotation = "zur " + m[3]
		}
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "P11_VOL_ZUR"
		return r
	}

	if m := reP10.FindStringSubmatch(desc); m != nil {
		n1, n2, unit := num(m[1]), num(m[2]), m[3]
		r.ContainerCount = intp(int(n1))
		switch unit {
		case "Stk":
			r.UnitCount = intp(int(n2))
			r.TotalUnits = intp(int(n1) * int(n2))
		case "Dos", "Dosen":
			r.DoseCount = intp(int(n1) * int(n2))
			r.TotalUnits = intp(int(n1))
		default:
			r.VolumePerUnit = floatp(n2)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1 * n2)
			r.TotalUnits = intp(int(n1))
		}
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "P10_N_N_UNIT"
		return r
	}

	if m := reP9.FindStringSubmatch(desc); m != nil {
		n1, unit := num(m[1]), m[2]
		switch unit {
		case "Stk":
			r.UnitCount = intp(int(n1))
			r.TotalUnits = intp(int(n1))
		case "Dos", "Dosen":
			r.DoseCount = intp(int(n1))
			r.TotalUnits = intp(1)
		default:
			r.VolumePerUnit = floatp(n1)
			r.VolumeUnit = unit
			r.TotalVolume = floatp(n1)
			r.TotalUnits = intp(1)
		}
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P9_SIMPLE"
		return r
	}

	if m := reP14.FindStringSubmatch(desc); m != nil {
		n1 := int(num(m[1]))
		r.setForm(m[2])
		n2, n3 := int(num(m[3])), int(num(m[4]))
		r.ContainerCount = intp(n1)
		r.UnitCount = intp(n3)
		r.TotalUnits = intp(n1)
		r.Annotation = fmt.Sprintf("%d Btl à %d Stk", n2, n3)
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "P14_MONODOS_BTL"
		return r
	}

	if m := reP12.FindStringSubmatch(desc); m != nil {
		r.setForm(m[1])
		n1, n2, unit := num(m[2]), num(m[3]), m[4]
		r.ContainerCount = intp(int(n1))
		r.TotalUnits = intp(int(n1))
		r.VolumePerUnit = floatp(n2)
		r.VolumeUnit = unit
		r.TotalVolume = floatp(n1 * n2)
		r.ParseConfidence = "HIGH"
		r.ParsePattern = "P12_FORM_STK_VOL"
		return r
	}

	if m := reP13.FindStringSubmatch(desc); m != nil {
		n1, unit, n2 := num(m[1]), m[2], num(m[3])
		r.VolumePerUnit = floatp(n1)
		r.VolumeUnit = unit
		r.ContainerCount = intp(int(n2))
		r.TotalUnits = intp(int(n2))
		r.TotalVolume = floatp(n1 * n2)
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "P13_VOL_STK"
		return r
	}

	if m := reBare.FindStringSubmatch(desc); m != nil {
		r.setForm(m[1])
		r.ContainerCount = intp(1)
		r.TotalUnits = intp(1)
		r.ParseConfidence = "MEDIUM"
		r.ParsePattern = "BARE_FORM"
		return r
	}

	return r
}

// ParseSubstanceQty parses a substance quantity string ("150", "12.5",
// "<0.007", "ca. 100") to its numeric value.
func ParseSubstanceQty(qty string) *float64 {
	qty = strings.TrimSpace(qty)
	if qty == "" {
		return nil
	}
	cleaned := reSubstanceQty.ReplaceAllString(qty, "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}
