package impressos

import "strings"

// referenceRanges holds adult reference ranges for the analytes that show up
// in generated lab exhibits. Appending them is cosmetic enrichment for the
// candidate-facing printout; unknown analytes are simply skipped.
var referenceRanges = map[string]string{
	"hemoglobina": "12-16 g/dL",
	"hematócrito": "36-46%",
	"leucócitos":  "4.000-10.000/mm³",
	"plaquetas":   "150.000-400.000/mm³",
	"creatinina":  "0,6-1,2 mg/dL",
	"ureia":       "10-40 mg/dL",
	"glicemia":    "70-99 mg/dL",
	"sódio":       "135-145 mEq/L",
	"potássio":    "3,5-5,0 mEq/L",
	"troponina":   "< 14 ng/L",
	"pcr":         "< 5 mg/L",
	"lactato":     "0,5-2,2 mmol/L",
}

// referenceRangeFor looks an analyte up by substring against the normalized
// item key. Returns the range and whether one is known.
func referenceRangeFor(chave string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(chave))
	if normalized == "" {
		return "", false
	}
	for analyte, vr := range referenceRanges {
		if strings.Contains(normalized, analyte) {
			return vr, true
		}
	}
	return "", false
}

// hasReferenceRange reports whether the value already carries a parenthetical
// or explicit reference annotation.
func hasReferenceRange(valor string) bool {
	return strings.Contains(valor, "(") || strings.Contains(strings.ToLower(valor), "vr:")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
