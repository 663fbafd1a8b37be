package concierge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canned reply categories
const (
	CategoryPricing    = "pricing"
	CategoryContact    = "contact"
	CategoryResults    = "results"
	CategoryServices   = "services"
	CategoryScheduling = "scheduling"
	CategoryDefault    = "default"
)

type cannedCategory struct {
	name     string
	keywords []string
	reply    string
}

// Checked in order; the first category with a matching keyword wins.
var cannedCategories = []cannedCategory{
	{
		name:     CategoryPricing,
		keywords: []string{"price", "pricing", "cost", "how much", "budget", "fees", "preco", "valor", "quanto custa", "orcamento", "investimento"},
		reply:    "Our pricing depends on the scope of each project. The best way to get a quote is a free 30-minute initial consultation, where we look at your goals and suggest a plan. Would you like to book one?",
	},
	{
		name:     CategoryContact,
		keywords: []string{"contact", "email", "phone", "call me", "talk to someone", "contato", "telefone", "whatsapp", "falar com"},
		reply:    "You can leave your name, email and company here and our team will get back to you within one business day.",
	},
	{
		name:     CategoryResults,
		keywords: []string{"result", "case", "portfolio", "client", "success", "resultado", "caso", "cliente", "sucesso"},
		reply:    "We have helped companies of different sizes grow with measurable results. In a free initial consultation we can share the cases closest to your business.",
	},
	{
		name:     CategoryServices,
		keywords: []string{"service", "what do you do", "offer", "help with", "servico", "o que voces fazem", "oferecem", "ajuda"},
		reply:    "We offer strategy, marketing and growth consulting, from diagnosis to execution. Tell me a bit about your business and I can point you to the right service.",
	},
	{
		name:     CategoryScheduling,
		keywords: []string{"schedule", "book", "appointment", "meeting", "available", "agendar", "agenda", "marcar", "reuniao", "horario", "disponivel"},
		reply:    "I'd be glad to book a free 30-minute consultation for you. Which day works best? Our team will confirm the time by email.",
	},
}

const defaultCannedReply = "Sorry, I'm having trouble answering right now. Please leave your name and email and our team will get back to you shortly."

// CannedReply picks a deterministic reply for text by keyword
func CannedReply(text string) (category, reply string) {
	folded := fold(text)
	for _, c := range cannedCategories {
		for _, k := range c.keywords {
			if strings.Contains(folded, k) {
				return c.name, c.reply
			}
		}
	}
	return CategoryDefault, defaultCannedReply
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
