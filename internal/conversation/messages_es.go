package conversation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/autoventas/sales-ai-platform/internal/catalog"
	"github.com/autoventas/sales-ai-platform/internal/financing"
)

// All user-facing copy lives here. Replies are Spanish regardless of channel.

const (
	msgGreeting = "¡Hola! Soy tu asesor digital de autos seminuevos. " +
		"Cuéntame, ¿qué tipo de auto buscas? Por ejemplo: algo familiar, para la ciudad o para trabajo."

	msgAskNeed = "¿Qué tipo de auto buscas? Puede ser algo familiar, para la ciudad, para trabajo, una SUV o un sedán."

	msgAskBudget = "¡Perfecto! ¿Qué presupuesto tienes en mente? Trabajamos con autos desde $50,000 MXN."

	msgBudgetTooLow = "Nuestro inventario comienza en $50,000 MXN. ¿Tienes un presupuesto a partir de esa cantidad?"

	msgNoOptions = "Por ahora no tengo opciones que se ajusten a ese presupuesto para lo que buscas. " +
		"¿Te gustaría ampliar el presupuesto o considerar otro tipo de auto?"

	msgAskFinancing = "¿Te gustaría conocer un plan de financiamiento para este auto? Manejamos planes a 3, 4, 5 y 6 años."

	msgAskTerm = "¿A cuántos meses te gustaría pagarlo? Manejamos plazos de 36, 48, 60 o 72 meses."

	msgInvalidTerm = "Ese plazo no está disponible. Los plazos que manejamos son 36, 48, 60 o 72 meses. ¿Cuál prefieres?"

	msgAskName = "¡Excelente! Para que un asesor te contacte, ¿me compartes tu nombre?"

	msgAskPhone = "Gracias. ¿A qué número de teléfono podemos contactarte? (10 dígitos)"

	msgInvalidPhone = "No logré identificar el número. ¿Me lo compartes a 10 dígitos, por favor?"

	msgAskTime = "¿En qué horario prefieres que te llamemos? Por ejemplo: por la mañana, por la tarde o después de las 6 pm."

	msgHandoffIdle = "Un asesor humano dará seguimiento a tu solicitud muy pronto. ¡Gracias por tu paciencia!"

	msgHandoffEscape = "Parece que no estoy entendiendo bien. Voy a pedir que un asesor humano te contacte para ayudarte personalmente. ¡Gracias!"

	msgFAQFallback = "Esa información no la tengo a la mano, pero un asesor puede resolverla contigo. " +
		"Mientras tanto, sigamos con tu búsqueda."

	msgReset = "¡Listo! Empecemos de nuevo."
)

// clarifyByStage is the re-ask copy when extraction fails at a stage.
var clarifyByStage = map[Stage]string{
	StageNeed:              "No me quedó claro qué tipo de auto buscas. ¿Es para la familia, la ciudad o el trabajo?",
	StageBudget:            "No identifiqué el presupuesto. ¿Me lo compartes en pesos? Por ejemplo: $250,000.",
	StageOptions:           "¿Cuál de las opciones te interesa? Respóndeme con el número (1, 2 o 3).",
	StageFinancingInterest: "¿Te interesa el financiamiento? Respóndeme sí o no.",
	StageDownPayment:       "No identifiqué el enganche. ¿Qué porcentaje del precio puedes dar? El mínimo es 10%.",
	StageTerm:              "No identifiqué el plazo. ¿Lo quieres a 36, 48, 60 o 72 meses?",
	StageLeadName:          "Perdón, no capté tu nombre. ¿Me lo repites?",
	StageLeadPhone:         msgInvalidPhone,
	StageLeadTime:          "¿Qué horario te acomoda para la llamada? Por ejemplo: mañana, tarde o noche.",
}

// defaultSuggestedQuestions are offered alongside the greeting and FAQ
// fallbacks to show what the knowledge base can answer.
var defaultSuggestedQuestions = []string{
	"¿Qué garantía incluyen los autos?",
	"¿Puedo hacer una prueba de manejo?",
	"¿Qué opciones de financiamiento manejan?",
}

func msgAskDownPayment(price float64) string {
	return fmt.Sprintf(
		"¿Con cuánto enganche cuentas? El mínimo es el 10%% del precio (%s).",
		formatMoney(price*financing.MinDownPaymentPct),
	)
}

func msgDownPaymentTooLow(price float64) string {
	return fmt.Sprintf(
		"El enganche mínimo es el 10%% del precio, es decir %s. ¿Puedes partir de ahí?",
		formatMoney(price*financing.MinDownPaymentPct),
	)
}

func renderOptions(vehicles []catalog.Vehicle) string {
	var b strings.Builder
	b.WriteString("Estas son las opciones que tengo para ti:\n")
	for i, v := range vehicles {
		fmt.Fprintf(&b, "%d. %s %s %d — %s\n", i+1, v.Brand, v.Model, v.Year, formatMoney(v.Price))
	}
	b.WriteString("¿Cuál te interesa? Respóndeme con el número.")
	return b.String()
}

func renderPlan(option string, downPayment float64, plan financing.Plan) string {
	return fmt.Sprintf(
		"Con un enganche de %s, tu %s quedaría en %s al mes durante %d meses (%d años). "+
			"Pagarías %s de financiamiento en total, de los cuales %s son intereses.",
		formatMoney(downPayment),
		option,
		formatMoney(plan.MonthlyRounded()),
		plan.TermMonths,
		plan.TermYears(),
		formatMoney(plan.TotalPaidRounded()),
		formatMoney(plan.TotalInterestRounded()),
	)
}

func msgHandoffConfirm(name string) string {
	return fmt.Sprintf(
		"¡Gracias, %s! Un asesor te contactará en el horario que indicaste para cerrar los detalles. "+
			"Fue un gusto ayudarte.",
		name,
	)
}

// formatMoney renders pesos with thousands separators, keeping cents only
// when the amount has them.
func formatMoney(v float64) string {
	cents := int64(math.Round(v * 100))
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	b.WriteByte('$')
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	if frac != 0 {
		fmt.Fprintf(&b, ".%02d", frac)
	}
	return b.String()
}
