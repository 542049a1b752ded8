package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

// SlotValue carries whatever a single extraction produced. Only the fields
// relevant to the requested stage are populated.
type SlotValue struct {
	Need        string
	Preferences string
	Budget      float64
	Affirmative bool
	Negative    bool
	Choice      int // 1-based option index, 0 when absent
	ChoiceText  string
	Percent     float64 // down payment as a fraction of price
	Amount      float64 // down payment as an absolute amount
	TermMonths  int
	Name        string
	Phone       string
	ContactTime string
}

// Extractor turns free text into the slot a stage expects. Implementations
// may be rule-based or model-backed; ok=false means ambiguous, and the
// machine re-asks.
type Extractor interface {
	Extract(stage Stage, text string) (SlotValue, bool)
	// Scan finds unambiguous downstream values in any message, for recording
	// ahead of their stage. Only values with an explicit marker qualify.
	Scan(text string) SlotValue
}

// RulesExtractor is the default keyword-and-pattern extractor for Spanish
// (with a few English synonyms thrown in).
type RulesExtractor struct{}

func NewRulesExtractor() *RulesExtractor { return &RulesExtractor{} }

var needSynonyms = map[string]string{
	"familia":    "family",
	"familiar":   "family",
	"hijos":      "family",
	"ninos":      "family",
	"espacioso":  "family",
	"minivan":    "family",
	"ciudad":     "city",
	"urbano":     "city",
	"compacto":   "compact",
	"pequeno":    "compact",
	"chico":      "compact",
	"trabajo":    "work",
	"carga":      "work",
	"pickup":     "work",
	"camioneta":  "suv",
	"suv":        "suv",
	"sedan":      "sedan",
	"lujo":       "luxury",
	"ejecutivo":  "luxury",
	"family":     "family",
	"city":       "city",
	"work":       "work",
	"hatchback":  "compact",
	"todoterreno": "suv",
}

var (
	moneyPattern    = regexp.MustCompile(`\$?\s*(\d{1,3}(?:[.,]\d{3})+|\d+(?:\.\d+)?)\s*(mil|k)?`)
	percentPattern  = regexp.MustCompile(`(\d{1,2}(?:\.\d+)?)\s*(%|por\s?ciento)`)
	termPattern     = regexp.MustCompile(`(\d{1,2})\s*(meses|mes|anos|anios|years)`)
	phonePattern    = regexp.MustCompile(`(?:\+?52\s?)?(\d[\d\s\-\.]{8,14}\d)`)
	nonDigitPattern = regexp.MustCompile(`\D`)
	namePrefixes    = regexp.MustCompile(`^(me llamo|mi nombre es|soy|nombre:?)\s+`)
)

var affirmatives = map[string]struct{}{
	"si": {}, "claro": {}, "ok": {}, "okay": {}, "dale": {}, "va": {},
	"sale": {}, "perfecto": {}, "porsupuesto": {}, "obvio": {}, "yes": {},
	"interesa": {}, "quiero": {}, "adelante": {},
}

var negatives = map[string]struct{}{
	"no": {}, "nel": {}, "negativo": {}, "luego": {}, "despues": {},
	"contado": {}, "gracias,no": {},
}

var contactTimeMarkers = []string{
	"manana", "tarde", "noche", "mediodia", "am", "pm", "hrs", "horas",
	"hoy", "lunes", "martes", "miercoles", "jueves", "viernes", "sabado",
	"domingo", "semana", "despues de", "antes de", "entre",
}

var ordinalChoices = map[string]int{
	"1": 1, "2": 2, "3": 3,
	"uno": 1, "dos": 2, "tres": 3,
	"primera": 1, "primero": 1, "segunda": 2, "segundo": 2,
	"tercera": 3, "tercero": 3,
}

// Extract applies the rules for one stage.
func (e *RulesExtractor) Extract(stage Stage, text string) (SlotValue, bool) {
	norm := normalizeText(text)
	switch stage {
	case StageNeed:
		return e.extractNeed(norm)
	case StageBudget:
		return e.extractBudget(norm)
	case StageOptions:
		return e.extractChoice(norm, text)
	case StageFinancingInterest:
		return e.extractYesNo(norm)
	case StageDownPayment:
		return e.extractDownPayment(norm)
	case StageTerm:
		return e.extractTerm(norm)
	case StageLeadName:
		return e.extractName(text)
	case StageLeadPhone:
		return e.extractPhone(norm)
	case StageLeadTime:
		return e.extractContactTime(norm, text)
	}
	return SlotValue{}, false
}

// Scan records downstream values only when an explicit marker makes them
// unambiguous: a currency or "mil" marker for budget, a percent sign for the
// down payment, a time unit for the term, a full phone number.
func (e *RulesExtractor) Scan(text string) SlotValue {
	norm := normalizeText(text)
	var out SlotValue

	if m := moneyPattern.FindStringSubmatch(norm); m != nil {
		explicit := strings.Contains(m[0], "$") || m[2] != ""
		if v, ok := parseMoney(m[1], m[2]); ok && explicit && v >= 10000 && v <= 10_000_000 {
			out.Budget = v
		}
	}
	if m := percentPattern.FindStringSubmatch(norm); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 && v < 100 {
			out.Percent = v / 100
		}
	}
	if m := termPattern.FindStringSubmatch(norm); m != nil {
		out.TermMonths = termToMonths(m[1], m[2])
	}
	if phone, ok := parsePhone(norm); ok {
		out.Phone = phone
	}
	return out
}

func (e *RulesExtractor) extractNeed(norm string) (SlotValue, bool) {
	words := strings.Fields(norm)
	var need string
	var prefs []string
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?$")
		if mapped, ok := needSynonyms[w]; ok && need == "" {
			need = mapped
			continue
		}
		// Brand-looking words become soft preferences.
		if len(w) > 3 && !isCommonWord(w) && !strings.ContainsAny(w, "0123456789") {
			prefs = append(prefs, w)
		}
	}
	if need == "" {
		return SlotValue{}, false
	}
	return SlotValue{Need: need, Preferences: strings.Join(prefs, " ")}, true
}

func (e *RulesExtractor) extractBudget(norm string) (SlotValue, bool) {
	m := moneyPattern.FindStringSubmatch(norm)
	if m == nil {
		return SlotValue{}, false
	}
	v, ok := parseMoney(m[1], m[2])
	if !ok {
		return SlotValue{}, false
	}
	// A bare small figure at the budget stage reads as thousands of pesos.
	if v < 1000 && m[2] == "" {
		v *= 1000
	}
	if v < 1000 || v > 10_000_000 {
		return SlotValue{}, false
	}
	return SlotValue{Budget: v}, true
}

func (e *RulesExtractor) extractChoice(norm, raw string) (SlotValue, bool) {
	for _, w := range strings.Fields(norm) {
		w = strings.TrimPrefix(w, "opcion")
		w = strings.Trim(w, ".,;:)")
		if idx, ok := ordinalChoices[w]; ok {
			return SlotValue{Choice: idx, ChoiceText: raw}, true
		}
	}
	// No index; the machine may still match the text against model names.
	if strings.TrimSpace(raw) != "" {
		return SlotValue{ChoiceText: raw}, true
	}
	return SlotValue{}, false
}

func (e *RulesExtractor) extractYesNo(norm string) (SlotValue, bool) {
	for _, w := range strings.Fields(norm) {
		w = strings.Trim(w, ".,;:!")
		if _, ok := affirmatives[w]; ok {
			return SlotValue{Affirmative: true}, true
		}
		if _, ok := negatives[w]; ok {
			return SlotValue{Negative: true}, true
		}
	}
	return SlotValue{}, false
}

func (e *RulesExtractor) extractDownPayment(norm string) (SlotValue, bool) {
	if m := percentPattern.FindStringSubmatch(norm); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return SlotValue{Percent: v / 100}, true
		}
	}
	if m := moneyPattern.FindStringSubmatch(norm); m != nil {
		if v, ok := parseMoney(m[1], m[2]); ok {
			// A figure up to 100 with no money marker is a percentage.
			if v <= 100 && !strings.Contains(m[0], "$") && m[2] == "" {
				return SlotValue{Percent: v / 100}, true
			}
			return SlotValue{Amount: v}, true
		}
	}
	return SlotValue{}, false
}

func (e *RulesExtractor) extractTerm(norm string) (SlotValue, bool) {
	if m := termPattern.FindStringSubmatch(norm); m != nil {
		if months := termToMonths(m[1], m[2]); months > 0 {
			return SlotValue{TermMonths: months}, true
		}
	}
	// A bare number reads as months.
	for _, w := range strings.Fields(norm) {
		if v, err := strconv.Atoi(strings.Trim(w, ".,")); err == nil && v > 0 {
			return SlotValue{TermMonths: v}, true
		}
	}
	return SlotValue{}, false
}

func (e *RulesExtractor) extractName(raw string) (SlotValue, bool) {
	text := strings.TrimSpace(raw)
	text = namePrefixes.ReplaceAllString(strings.ToLower(text), "")
	if text == "" {
		return SlotValue{}, false
	}
	words := strings.Fields(text)
	if len(words) > 4 {
		return SlotValue{}, false
	}
	for _, w := range words {
		if strings.IndexFunc(w, func(r rune) bool {
			return (r >= '0' && r <= '9') || r == '@' || r == '#'
		}) >= 0 {
			return SlotValue{}, false
		}
	}
	return SlotValue{Name: titleCase(words)}, true
}

func (e *RulesExtractor) extractPhone(norm string) (SlotValue, bool) {
	phone, ok := parsePhone(norm)
	if !ok {
		return SlotValue{}, false
	}
	return SlotValue{Phone: phone}, true
}

func (e *RulesExtractor) extractContactTime(norm, raw string) (SlotValue, bool) {
	for _, marker := range contactTimeMarkers {
		if strings.Contains(norm, marker) {
			return SlotValue{ContactTime: strings.TrimSpace(raw)}, true
		}
	}
	return SlotValue{}, false
}

func parseMoney(number, suffix string) (float64, bool) {
	cleaned := strings.ReplaceAll(number, ",", "")
	// "300.000" style thousands keep only digits; "4565.27" keeps the point.
	if strings.Count(cleaned, ".") == 1 {
		parts := strings.SplitN(cleaned, ".", 2)
		if len(parts[1]) == 3 {
			cleaned = parts[0] + parts[1]
		}
	} else {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if suffix == "mil" || suffix == "k" {
		v *= 1000
	}
	return v, true
}

func termToMonths(number, unit string) int {
	v, err := strconv.Atoi(number)
	if err != nil || v <= 0 {
		return 0
	}
	switch unit {
	case "anos", "anios", "years":
		return v * 12
	default:
		return v
	}
}

func parsePhone(norm string) (string, bool) {
	m := phonePattern.FindStringSubmatch(norm)
	if m == nil {
		return "", false
	}
	digits := nonDigitPattern.ReplaceAllString(m[0], "")
	if len(digits) == 12 && strings.HasPrefix(digits, "52") {
		digits = digits[2:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits, true
}

var commonWords = map[string]struct{}{
	"auto": {}, "coche": {}, "carro": {}, "busco": {}, "quiero": {},
	"necesito": {}, "algo": {}, "para": {}, "estoy": {}, "buscando": {},
	"vehiculo": {}, "tengo": {}, "presupuesto": {}, "como": {}, "unos": {},
	"pesos": {}, "aproximadamente": {}, "grande": {}, "bueno": {},
}

func isCommonWord(w string) bool {
	_, ok := commonWords[w]
	return ok
}

func titleCase(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		r := []rune(w)
		out[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(out, " ")
}

// normalizeText lowercases and strips Spanish accents so keyword tables stay
// small.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case 'á':
			b.WriteRune('a')
		case 'é':
			b.WriteRune('e')
		case 'í':
			b.WriteRune('i')
		case 'ó':
			b.WriteRune('o')
		case 'ú', 'ü':
			b.WriteRune('u')
		case 'ñ':
			b.WriteRune('n')
		case '¿', '¡':
			// drop inverted punctuation
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
