package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/autoventas/sales-ai-platform/internal/catalog"
	"github.com/autoventas/sales-ai-platform/internal/knowledge"
)

func testMatcher() *catalog.Matcher {
	return catalog.NewMatcherFromVehicles([]catalog.Vehicle{
		{Brand: "Honda", Model: "CR-V", Year: 2019, Price: 280000, Type: "suv"},
		{Brand: "Mazda", Model: "CX-5", Year: 2020, Price: 295000, Type: "suv"},
		{Brand: "Toyota", Model: "Sienna", Year: 2021, Price: 410000, Type: "minivan"},
		{Brand: "Nissan", Model: "Versa", Year: 2021, Price: 245000, Type: "sedan"},
	})
}

func testMachine(t *testing.T) *Machine {
	t.Helper()
	return NewMachine(testMatcher(), nil, nil, 3, nil)
}

func step(t *testing.T, m *Machine, state *State, input string) Outcome {
	t.Helper()
	return m.Step(context.Background(), state, input)
}

func TestFullFlowToHandoff(t *testing.T) {
	m := testMachine(t)
	state := NewState("wa:5215512345678", "webhook")
	lastOrder := state.Stage.Order()

	advance := func(input string) Outcome {
		out := step(t, m, state, input)
		if out.State.Stage.Order() < lastOrder {
			t.Fatalf("stage went backwards: %s after order %d", out.State.Stage, lastOrder)
		}
		lastOrder = out.State.Stage.Order()
		state = out.State
		return out
	}

	out := advance("Estoy buscando un auto familiar")
	if state.Stage != StageBudget {
		t.Fatalf("expected BUDGET after need, got %s", state.Stage)
	}
	if !strings.Contains(out.Reply, "presupuesto") {
		t.Errorf("expected budget question, got %q", out.Reply)
	}

	out = advance("$300,000")
	if state.Stage != StageOptions {
		t.Fatalf("expected OPTIONS after budget, got %s", state.Stage)
	}
	if !strings.Contains(out.Reply, "1.") || !strings.Contains(out.Reply, "CX-5") {
		t.Errorf("expected numbered options, got %q", out.Reply)
	}

	out = advance("la 1")
	if state.Stage != StageFinancingInterest {
		t.Fatalf("expected FINANCING_INTEREST after choice, got %s", state.Stage)
	}
	if state.Slots.ChosenOption != "Mazda CX-5 2020" {
		t.Errorf("closest budget fit should be chosen, got %q", state.Slots.ChosenOption)
	}

	advance("sí, me interesa")
	if state.Stage != StageDownPayment {
		t.Fatalf("expected DOWN_PAYMENT, got %s", state.Stage)
	}

	advance("20%")
	if state.Stage != StageTerm {
		t.Fatalf("expected TERM, got %s", state.Stage)
	}
	if state.Slots.DownPaymentPct != 0.20 {
		t.Errorf("expected 0.20 down payment, got %f", state.Slots.DownPaymentPct)
	}

	out = advance("48 meses")
	if state.Stage != StageLeadName {
		t.Fatalf("expected LEAD_NAME after term, got %s", state.Stage)
	}
	if !strings.Contains(out.Reply, "al mes") || !strings.Contains(out.Reply, "nombre") {
		t.Errorf("expected plan summary plus name question, got %q", out.Reply)
	}

	advance("Me llamo Laura Martínez")
	if state.Stage != StageLeadPhone {
		t.Fatalf("expected LEAD_PHONE, got %s", state.Stage)
	}

	advance("55 1234 5678")
	if state.Stage != StageLeadTime {
		t.Fatalf("expected LEAD_TIME, got %s", state.Stage)
	}

	out = advance("Por la tarde, después de las 6 pm")
	if state.Stage != StageHandoff {
		t.Fatalf("expected HANDOFF, got %s", state.Stage)
	}
	if out.Lead == nil {
		t.Fatal("completed lead capture must emit a lead side effect")
	}
	if out.Lead.Name != "Laura Martínez" || out.Lead.Phone != "5512345678" || out.Lead.ContactTime == "" {
		t.Errorf("lead incomplete: %+v", out.Lead)
	}
	if out.Lead.VehicleSummary != "Mazda CX-5 2020" {
		t.Errorf("lead should carry the chosen vehicle, got %q", out.Lead.VehicleSummary)
	}
}

func TestHandoffIsTerminal(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")
	state.Stage = StageHandoff
	state.TurnCount = 9

	out := step(t, m, state, "hola?")
	if out.State != state {
		t.Error("terminal state must not be mutated")
	}
	if out.Reply != msgHandoffIdle {
		t.Errorf("expected fixed handoff reply, got %q", out.Reply)
	}
	if out.Lead != nil {
		t.Error("terminal turns must not emit side effects")
	}
}

func TestClarifyCapEscapesToHandoff(t *testing.T) {
	m := NewMachine(testMatcher(), nil, nil, 2, nil)
	state := NewState("s", "api")

	out := step(t, m, state, "xyzzy blorp")
	if out.State.Stage != StageNeed {
		t.Fatalf("first failure should stay at NEED, got %s", out.State.Stage)
	}
	if out.State.ClarifyAttempts != 1 {
		t.Fatalf("expected one clarify attempt, got %d", out.State.ClarifyAttempts)
	}

	out = step(t, m, out.State, "blorp xyzzy")
	if out.State.Stage != StageHandoff {
		t.Errorf("exhausted attempts should hand off, got %s", out.State.Stage)
	}
	if out.Reply != msgHandoffEscape {
		t.Errorf("expected escape copy, got %q", out.Reply)
	}
}

func TestClarifyCounterResetsOnSuccess(t *testing.T) {
	m := NewMachine(testMatcher(), nil, nil, 2, nil)
	state := NewState("s", "api")

	out := step(t, m, state, "mmmmm")
	out = step(t, m, out.State, "busco algo para la familia")
	if out.State.ClarifyAttempts != 0 {
		t.Errorf("success should reset attempts, got %d", out.State.ClarifyAttempts)
	}
	if out.State.Stage != StageBudget {
		t.Errorf("expected BUDGET, got %s", out.State.Stage)
	}
}

func TestBudgetBelowMinimumReasks(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")
	state.Stage = StageBudget
	state.Slots.Need = "family"
	state.TurnCount = 1

	out := step(t, m, state, "30 mil")
	if out.State.Stage != StageBudget {
		t.Errorf("below-minimum budget should stay at BUDGET, got %s", out.State.Stage)
	}
	if out.Reply != msgBudgetTooLow {
		t.Errorf("expected minimum-budget copy, got %q", out.Reply)
	}
}

func TestNoOptionsAsksToRelax(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")
	state.Stage = StageBudget
	state.Slots.Need = "family"
	state.TurnCount = 1

	// Valid budget, but no family vehicle sells for less.
	out := step(t, m, state, "$60,000")
	if out.State.Stage != StageBudget {
		t.Errorf("zero matches should stay at BUDGET, got %s", out.State.Stage)
	}
	if out.Reply != msgNoOptions {
		t.Errorf("expected relax-constraints copy, got %q", out.Reply)
	}
	if out.State.Slots.Budget != 0 {
		t.Error("budget slot should clear so the next message can replace it")
	}
}

func TestFinancingDeclinedSkipsToLeadCapture(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")
	state.Stage = StageFinancingInterest
	state.Slots = Slots{Need: "family", Budget: 300000, ChosenOption: "Mazda CX-5 2020", ChosenPrice: 295000}
	state.TurnCount = 3

	out := step(t, m, state, "no, lo pagaría de contado")
	if out.State.Stage != StageLeadName {
		t.Errorf("declined financing should move to LEAD_NAME, got %s", out.State.Stage)
	}
	if !strings.Contains(out.Reply, "nombre") {
		t.Errorf("expected name question, got %q", out.Reply)
	}
}

func TestShortCircuitRecordsBudgetEarly(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")

	out := step(t, m, state, "Busco algo familiar, tengo $300,000")
	if out.State.Stage != StageOptions {
		t.Fatalf("budget mentioned at NEED should carry through to OPTIONS, got %s", out.State.Stage)
	}
	if out.State.Slots.Budget != 300000 {
		t.Errorf("expected recorded budget, got %f", out.State.Slots.Budget)
	}
	if !strings.Contains(out.Reply, "1.") {
		t.Errorf("expected options in the same turn, got %q", out.Reply)
	}
}

func TestFAQDetourPreservesStage(t *testing.T) {
	repo := knowledge.NewRepositoryFromContent(
		"# Garantía\n\nTodos los autos incluyen tres meses de garantia extensible a un año.\n", nil)
	grounder := knowledge.NewGrounder(repo, nil, 0.1, 5, 0, nil)
	m := NewMachine(testMatcher(), grounder, nil, 3, nil)

	state := NewState("s", "api")
	state.Stage = StageBudget
	state.Slots.Need = "family"
	state.TurnCount = 1

	out := step(t, m, state, "¿Qué garantía incluyen los autos?")
	if out.State.Stage != StageBudget {
		t.Errorf("FAQ detour must preserve the stage, got %s", out.State.Stage)
	}
	if !out.FAQDetour || !out.Grounded {
		t.Errorf("expected grounded detour, got %+v", out)
	}
	if !strings.Contains(out.Reply, "garantia") || !strings.Contains(out.Reply, "presupuesto") {
		t.Errorf("expected answer plus pending question, got %q", out.Reply)
	}
	if out.State.ClarifyAttempts != 0 {
		t.Error("a detour is not a failed clarification")
	}
}

func TestFAQDetourUngroundedUsesFallback(t *testing.T) {
	repo := knowledge.NewRepositoryFromContent("# Garantía\n\nTres meses de garantia.\n", nil)
	grounder := knowledge.NewGrounder(repo, nil, 0.99, 5, 0, nil)
	m := NewMachine(testMatcher(), grounder, nil, 3, nil)

	state := NewState("s", "api")
	state.Stage = StageBudget
	state.Slots.Need = "family"
	state.TurnCount = 1

	out := step(t, m, state, "¿Tienen sucursal en Mérida?")
	if !out.FAQDetour || out.Grounded {
		t.Fatalf("expected ungrounded detour, got %+v", out)
	}
	if !strings.Contains(out.Reply, msgFAQFallback) {
		t.Errorf("ungrounded questions must use the fixed fallback, got %q", out.Reply)
	}
}

func TestResetStartsOver(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")
	state.Stage = StageTerm
	state.Slots = Slots{Need: "family", Budget: 300000, ChosenOption: "Mazda CX-5 2020", ChosenPrice: 295000, DownPaymentPct: 0.2}
	state.TurnCount = 6
	state.Version = 6

	out := step(t, m, state, "mejor empezar de nuevo")
	if out.State.Stage != StageNeed {
		t.Errorf("reset should return to NEED, got %s", out.State.Stage)
	}
	if out.State.Slots != (Slots{}) {
		t.Errorf("reset should clear slots, got %+v", out.State.Slots)
	}
	if out.State.Version != 6 {
		t.Error("reset must keep the persistence version")
	}
	if out.State.TurnCount != 7 {
		t.Errorf("reset still counts as a turn, got %d", out.State.TurnCount)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	m := testMachine(t)
	state := NewState("s", "api")
	before := *state

	m.Step(context.Background(), state, "busco algo familiar")
	if *state != before {
		t.Error("Step must treat the input snapshot as read-only")
	}
}
