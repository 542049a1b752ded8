package conversation

import "testing"

func TestExtractNeed(t *testing.T) {
	e := NewRulesExtractor()
	cases := []struct {
		text string
		need string
		ok   bool
	}{
		{"Estoy buscando un auto familiar", "family", true},
		{"algo para la ciudad", "city", true},
		{"necesito una camioneta", "suv", true},
		{"un sedán ejecutivo", "sedan", true},
		{"quiero vender mi casa", "", false},
	}
	for _, tc := range cases {
		v, ok := e.Extract(StageNeed, tc.text)
		if ok != tc.ok || v.Need != tc.need {
			t.Errorf("%q: got (%q, %v), want (%q, %v)", tc.text, v.Need, ok, tc.need, tc.ok)
		}
	}
}

func TestExtractNeedPreferences(t *testing.T) {
	e := NewRulesExtractor()
	v, ok := e.Extract(StageNeed, "una camioneta Mazda")
	if !ok || v.Preferences != "mazda" {
		t.Errorf("expected mazda preference, got %+v ok=%v", v, ok)
	}
}

func TestExtractBudget(t *testing.T) {
	e := NewRulesExtractor()
	cases := []struct {
		text   string
		budget float64
		ok     bool
	}{
		{"$300,000", 300000, true},
		{"300 mil", 300000, true},
		{"300k", 300000, true},
		{"tengo unos 250", 250000, true},
		{"300.000 pesos", 300000, true},
		{"no tengo idea", 0, false},
	}
	for _, tc := range cases {
		v, ok := e.Extract(StageBudget, tc.text)
		if ok != tc.ok || v.Budget != tc.budget {
			t.Errorf("%q: got (%f, %v), want (%f, %v)", tc.text, v.Budget, ok, tc.budget, tc.ok)
		}
	}
}

func TestExtractYesNo(t *testing.T) {
	e := NewRulesExtractor()
	if v, ok := e.Extract(StageFinancingInterest, "Sí, claro"); !ok || !v.Affirmative {
		t.Errorf("expected affirmative, got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageFinancingInterest, "no, gracias"); !ok || !v.Negative {
		t.Errorf("expected negative, got %+v ok=%v", v, ok)
	}
	if _, ok := e.Extract(StageFinancingInterest, "depende"); ok {
		t.Error("ambiguous answer should not extract")
	}
}

func TestExtractDownPayment(t *testing.T) {
	e := NewRulesExtractor()
	if v, ok := e.Extract(StageDownPayment, "20%"); !ok || v.Percent != 0.20 {
		t.Errorf("percent: got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageDownPayment, "el 15 por ciento"); !ok || v.Percent != 0.15 {
		t.Errorf("por ciento: got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageDownPayment, "20"); !ok || v.Percent != 0.20 {
		t.Errorf("bare number: got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageDownPayment, "$59,000"); !ok || v.Amount != 59000 {
		t.Errorf("amount: got %+v ok=%v", v, ok)
	}
}

func TestExtractTerm(t *testing.T) {
	e := NewRulesExtractor()
	if v, ok := e.Extract(StageTerm, "48 meses"); !ok || v.TermMonths != 48 {
		t.Errorf("months: got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageTerm, "a 4 años"); !ok || v.TermMonths != 48 {
		t.Errorf("years: got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageTerm, "60"); !ok || v.TermMonths != 60 {
		t.Errorf("bare: got %+v ok=%v", v, ok)
	}
}

func TestExtractName(t *testing.T) {
	e := NewRulesExtractor()
	if v, ok := e.Extract(StageLeadName, "Me llamo Laura Martínez"); !ok || v.Name != "Laura Martínez" {
		t.Errorf("got %+v ok=%v", v, ok)
	}
	if v, ok := e.Extract(StageLeadName, "carlos"); !ok || v.Name != "Carlos" {
		t.Errorf("got %+v ok=%v", v, ok)
	}
	if _, ok := e.Extract(StageLeadName, "soy el usuario 4521"); ok {
		t.Error("digits should not pass as a name")
	}
}

func TestExtractPhone(t *testing.T) {
	e := NewRulesExtractor()
	cases := []struct {
		text  string
		phone string
		ok    bool
	}{
		{"5512345678", "5512345678", true},
		{"55 1234 5678", "5512345678", true},
		{"+52 5512345678", "5512345678", true},
		{"55-12-34-56-78", "5512345678", true},
		{"12345", "", false},
	}
	for _, tc := range cases {
		v, ok := e.Extract(StageLeadPhone, tc.text)
		if ok != tc.ok || v.Phone != tc.phone {
			t.Errorf("%q: got (%q, %v), want (%q, %v)", tc.text, v.Phone, ok, tc.phone, tc.ok)
		}
	}
}

func TestExtractContactTime(t *testing.T) {
	e := NewRulesExtractor()
	if v, ok := e.Extract(StageLeadTime, "Por la tarde"); !ok || v.ContactTime != "Por la tarde" {
		t.Errorf("got %+v ok=%v", v, ok)
	}
	if _, ok := e.Extract(StageLeadTime, "como sea"); ok {
		t.Error("no time marker should not extract")
	}
}

func TestScanRequiresExplicitMarkers(t *testing.T) {
	e := NewRulesExtractor()

	v := e.Scan("busco algo familiar con $300,000 de presupuesto")
	if v.Budget != 300000 {
		t.Errorf("expected budget from $ marker, got %f", v.Budget)
	}

	v = e.Scan("tengo 300000 guardados")
	if v.Budget != 0 {
		t.Errorf("bare figure should not scan as budget, got %f", v.Budget)
	}

	v = e.Scan("puedo dar el 20% a 48 meses, mi cel es 5512345678")
	if v.Percent != 0.20 || v.TermMonths != 48 || v.Phone != "5512345678" {
		t.Errorf("expected percent, term and phone, got %+v", v)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{300000, "$300,000"},
		{50000, "$50,000"},
		{4565.27, "$4,565.27"},
		{1234567.5, "$1,234,567.50"},
		{950, "$950"},
	}
	for _, tc := range cases {
		if got := formatMoney(tc.in); got != tc.want {
			t.Errorf("formatMoney(%f) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
