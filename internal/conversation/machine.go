package conversation

import (
	"context"
	"strconv"
	"strings"

	"github.com/autoventas/sales-ai-platform/internal/catalog"
	"github.com/autoventas/sales-ai-platform/internal/financing"
	"github.com/autoventas/sales-ai-platform/internal/knowledge"
	"github.com/autoventas/sales-ai-platform/internal/leads"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

// Outcome is everything a turn produces. The machine performs no I/O itself:
// Lead is a side effect for the orchestrator to execute after the state save.
type Outcome struct {
	State              *State
	Reply              string
	SuggestedQuestions []string
	Lead               *leads.Lead
	FAQDetour          bool
	Grounded           bool
}

// MinBudget is the lowest workable budget in pesos; anything below it gets a
// polite correction instead of an empty catalog search.
const MinBudget = 50000.0

// Machine drives the commercial flow. Step is a pure function of the state
// snapshot and the inbound message; callers own persistence and locking.
type Machine struct {
	catalog    *catalog.Matcher
	grounder   *knowledge.Grounder
	extractor  Extractor
	clarifyMax int
	logger     *logging.Logger
}

// NewMachine builds the state machine. grounder may be nil to disable the
// FAQ detour.
func NewMachine(matcher *catalog.Matcher, grounder *knowledge.Grounder, extractor Extractor, clarifyMax int, logger *logging.Logger) *Machine {
	if matcher == nil {
		panic("conversation: catalog matcher cannot be nil")
	}
	if extractor == nil {
		extractor = NewRulesExtractor()
	}
	if clarifyMax <= 0 {
		clarifyMax = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{
		catalog:    matcher,
		grounder:   grounder,
		extractor:  extractor,
		clarifyMax: clarifyMax,
		logger:     logger,
	}
}

var resetKeywords = []string{"reiniciar", "empezar de nuevo", "reset", "borrar todo", "comenzar de nuevo"}

// Step processes one inbound message against the state snapshot and returns
// the next snapshot plus the reply. The input state is never mutated.
func (m *Machine) Step(ctx context.Context, prev *State, input string) Outcome {
	input = strings.TrimSpace(input)
	norm := normalizeText(input)

	// Terminal state: fixed reply, no mutation.
	if prev.Stage == StageHandoff {
		return Outcome{State: prev, Reply: msgHandoffIdle}
	}

	if isReset(norm) {
		fresh := NewState(prev.SessionID, prev.Channel)
		fresh.Version = prev.Version
		fresh.TurnCount = prev.TurnCount + 1
		return Outcome{
			State:              fresh,
			Reply:              msgReset + " " + msgGreeting,
			SuggestedQuestions: suggestedQuestions(),
		}
	}

	state := prev.Clone()
	state.TurnCount++

	if state.TurnCount == 1 && input == "" {
		return Outcome{State: state, Reply: msgGreeting, SuggestedQuestions: suggestedQuestions()}
	}

	// Record unambiguous downstream values before the stage moves, so the
	// ahead-of-stage order checks compare against where the user actually is.
	m.recordAhead(state, m.extractor.Scan(input))

	if value, ok := m.extractor.Extract(state.Stage, input); ok {
		if outcome, handled := m.applySlot(state, value); handled {
			return outcome
		}
	}

	// Extraction failed or the value could not be applied. A question takes
	// the FAQ detour and keeps the flow stage; anything else burns a
	// clarification attempt.
	if answer, detour := m.tryFAQ(ctx, norm, input); detour {
		pending := m.continueFlow(state)
		return Outcome{
			State:     state,
			Reply:     answer.Text + "\n\n" + strings.Join(pending, "\n\n"),
			FAQDetour: true,
			Grounded:  answer.Grounded,
		}
	}
	state.ClarifyAttempts++
	if state.ClarifyAttempts >= m.clarifyMax {
		m.logger.Info("clarification limit reached, escalating to a human",
			"session_id", state.SessionID,
			"stage", string(state.Stage),
			"attempts", state.ClarifyAttempts)
		state.Stage = StageHandoff
		return Outcome{State: state, Reply: msgHandoffEscape}
	}
	return Outcome{State: state, Reply: clarifyByStage[state.Stage]}
}

// applySlot applies an extracted value to the current stage. The returned
// Outcome is final when handled is true.
func (m *Machine) applySlot(state *State, value SlotValue) (Outcome, bool) {
	switch state.Stage {
	case StageNeed:
		state.Slots.Need = value.Need
		if value.Preferences != "" {
			state.Slots.Preferences = value.Preferences
		}

	case StageBudget:
		if value.Budget < MinBudget {
			state.ClarifyAttempts = 0
			return Outcome{State: state, Reply: msgBudgetTooLow}, true
		}
		state.Slots.Budget = value.Budget

	case StageOptions:
		option, ok := m.resolveChoice(state, value)
		if !ok {
			return Outcome{}, false
		}
		state.Slots.ChosenOption = optionLabel(option)
		state.Slots.ChosenPrice = option.Price

	case StageFinancingInterest:
		// The only stage without a backing slot; advance explicitly.
		if value.Affirmative {
			state.Stage = StageDownPayment
		} else {
			state.Stage = StageLeadName
		}

	case StageDownPayment:
		pct := value.Percent
		if pct == 0 && value.Amount > 0 && state.Slots.ChosenPrice > 0 {
			pct = value.Amount / state.Slots.ChosenPrice
		}
		if pct <= 0 || pct >= 1 {
			return Outcome{}, false
		}
		if pct < financing.MinDownPaymentPct {
			state.ClarifyAttempts = 0
			return Outcome{State: state, Reply: msgDownPaymentTooLow(state.Slots.ChosenPrice)}, true
		}
		state.Slots.DownPaymentPct = pct

	case StageTerm:
		if _, err := financing.Calculate(state.Slots.ChosenPrice, state.Slots.DownPaymentPct, value.TermMonths); err != nil {
			state.ClarifyAttempts = 0
			return Outcome{State: state, Reply: msgInvalidTerm}, true
		}
		state.Slots.TermMonths = value.TermMonths

	case StageLeadName:
		state.Slots.LeadName = value.Name

	case StageLeadPhone:
		state.Slots.LeadPhone = value.Phone

	case StageLeadTime:
		state.Slots.LeadTime = value.ContactTime

	default:
		return Outcome{}, false
	}

	state.ClarifyAttempts = 0
	parts := m.continueFlow(state)
	outcome := Outcome{State: state, Reply: strings.Join(parts, "\n\n")}
	if state.TurnCount == 1 {
		outcome.SuggestedQuestions = suggestedQuestions()
	}
	if state.Stage == StageHandoff && leadComplete(state) {
		outcome.Lead = m.buildLead(state)
	}
	return outcome, true
}

// continueFlow advances through stages whose slots are already recorded,
// collecting interstitial replies, and stops at the first stage that still
// needs input. It returns the message parts for this turn.
func (m *Machine) continueFlow(state *State) []string {
	var parts []string
	for {
		switch state.Stage {
		case StageNeed:
			if state.Slots.Need == "" {
				return append(parts, msgAskNeed)
			}
			state.Stage = StageBudget

		case StageBudget:
			if state.Slots.Budget == 0 {
				return append(parts, msgAskBudget)
			}
			options := m.options(state)
			if len(options) == 0 {
				// Nothing fits; clear the budget so the next message can
				// supply a new one.
				state.Slots.Budget = 0
				return append(parts, msgNoOptions)
			}
			state.Stage = StageOptions

		case StageOptions:
			if state.Slots.ChosenOption == "" {
				return append(parts, renderOptions(m.options(state)))
			}
			state.Stage = StageFinancingInterest

		case StageFinancingInterest:
			// No slot backs this stage; it is always asked.
			return append(parts, msgAskFinancing)

		case StageDownPayment:
			if state.Slots.DownPaymentPct == 0 {
				return append(parts, msgAskDownPayment(state.Slots.ChosenPrice))
			}
			state.Stage = StageTerm

		case StageTerm:
			if state.Slots.TermMonths == 0 {
				return append(parts, msgAskTerm)
			}
			plan, err := financing.Calculate(state.Slots.ChosenPrice, state.Slots.DownPaymentPct, state.Slots.TermMonths)
			if err != nil {
				state.Slots.TermMonths = 0
				return append(parts, msgInvalidTerm)
			}
			downPayment := state.Slots.ChosenPrice * state.Slots.DownPaymentPct
			parts = append(parts, renderPlan(state.Slots.ChosenOption, downPayment, plan))
			state.Stage = StageLeadName

		case StageLeadName:
			if state.Slots.LeadName == "" {
				return append(parts, msgAskName)
			}
			state.Stage = StageLeadPhone

		case StageLeadPhone:
			if state.Slots.LeadPhone == "" {
				return append(parts, msgAskPhone)
			}
			state.Stage = StageLeadTime

		case StageLeadTime:
			if state.Slots.LeadTime == "" {
				return append(parts, msgAskTime)
			}
			state.Stage = StageHandoff

		case StageHandoff:
			return append(parts, msgHandoffConfirm(state.Slots.LeadName))

		default:
			return parts
		}
	}
}

// recordAhead stores unambiguous downstream values mentioned early, without
// letting the flow skip the stages that would present them.
func (m *Machine) recordAhead(state *State, value SlotValue) {
	if value.Budget >= MinBudget && state.Slots.Budget == 0 && state.Stage.Order() < StageBudget.Order() {
		state.Slots.Budget = value.Budget
	}
	if value.Percent >= financing.MinDownPaymentPct && value.Percent < 1 &&
		state.Slots.DownPaymentPct == 0 && state.Stage.Order() < StageDownPayment.Order() {
		state.Slots.DownPaymentPct = value.Percent
	}
	if value.TermMonths > 0 && state.Slots.TermMonths == 0 && state.Stage.Order() < StageTerm.Order() {
		if _, err := financing.Calculate(1, financing.MinDownPaymentPct, value.TermMonths); err == nil {
			state.Slots.TermMonths = value.TermMonths
		}
	}
	if value.Phone != "" && state.Slots.LeadPhone == "" && state.Stage.Order() < StageLeadPhone.Order() {
		state.Slots.LeadPhone = value.Phone
	}
}

func (m *Machine) options(state *State) []catalog.Vehicle {
	return m.catalog.Find(state.Slots.Need, state.Slots.Budget, state.Slots.Preferences)
}

// resolveChoice maps the extraction to one of the options currently on
// offer, by index or by brand/model mention.
func (m *Machine) resolveChoice(state *State, value SlotValue) (catalog.Vehicle, bool) {
	options := m.options(state)
	if len(options) == 0 {
		return catalog.Vehicle{}, false
	}
	if value.Choice >= 1 && value.Choice <= len(options) {
		return options[value.Choice-1], true
	}
	norm := normalizeText(value.ChoiceText)
	for _, option := range options {
		if strings.Contains(norm, normalizeText(option.Model)) ||
			strings.Contains(norm, normalizeText(option.Brand)) {
			return option, true
		}
	}
	return catalog.Vehicle{}, false
}

var faqMarkers = []string{
	"?", "que ", "cual", "como", "cuanto", "cuando", "donde", "quien",
	"tienen", "puedo", "hay ", "incluye", "garantia", "prueba de manejo",
	"devolucion", "sucursal", "aceptan", "venden",
}

func (m *Machine) tryFAQ(ctx context.Context, norm, raw string) (knowledge.Answer, bool) {
	if m.grounder == nil {
		return knowledge.Answer{}, false
	}
	question := false
	for _, marker := range faqMarkers {
		if strings.Contains(norm, marker) {
			question = true
			break
		}
	}
	if !question {
		return knowledge.Answer{}, false
	}
	answer := m.grounder.Ground(ctx, raw)
	if !answer.Grounded {
		answer.Text = msgFAQFallback
	}
	return answer, true
}

func (m *Machine) buildLead(state *State) *leads.Lead {
	lead := &leads.Lead{
		SessionID:      state.SessionID,
		Name:           state.Slots.LeadName,
		Phone:          state.Slots.LeadPhone,
		ContactTime:    state.Slots.LeadTime,
		Need:           state.Slots.Need,
		Budget:         state.Slots.Budget,
		VehicleSummary: state.Slots.ChosenOption,
		Channel:        state.Channel,
	}
	if state.Slots.DownPaymentPct > 0 && state.Slots.TermMonths > 0 {
		if plan, err := financing.Calculate(state.Slots.ChosenPrice, state.Slots.DownPaymentPct, state.Slots.TermMonths); err == nil {
			lead.PlanSummary = renderPlan(state.Slots.ChosenOption, state.Slots.ChosenPrice*state.Slots.DownPaymentPct, plan)
		}
	}
	return lead
}

func leadComplete(state *State) bool {
	return state.Slots.LeadName != "" && state.Slots.LeadPhone != "" && state.Slots.LeadTime != ""
}

func optionLabel(v catalog.Vehicle) string {
	return v.Brand + " " + v.Model + " " + strconv.Itoa(v.Year)
}

func isReset(norm string) bool {
	for _, kw := range resetKeywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

func suggestedQuestions() []string {
	out := make([]string, len(defaultSuggestedQuestions))
	copy(out, defaultSuggestedQuestions)
	return out
}
