package i18n

// messagesEN is the English catalogue.
var messagesEN = map[string]string{
	"disclaimer": "\n\n⚠️ This answer is for informational purposes only and is not a substitute " +
		"for medical advice. Please consult your pediatrician at our clinic for diagnosis " +
		"and treatment. In an emergency, call 112.",

	"patient.name_placeholder": "your child",
	"patient.age_unspecified":  "unspecified",

	"error.validation":  "The request could not be validated. Please check the fields.",
	"error.upstream":    "The assistant is currently unavailable. Please try again later.",
	"error.internal":    "An unexpected error occurred.",
	"error.rate_limit":  "Too many requests. Please slow down.",
	"error.not_healthy": "The service is not ready.",

	"feedback.received": "Thank you for your feedback.",

	"topics.category.preventive": "Preventive care",
	"topics.category.daily":      "Daily care and development",
	"topics.category.illness":    "Illness and emergencies",

	"topic.vaccination": "Vaccines and the vaccination schedule",
	"topic.nutrition":   "Nutrition and complementary feeding",
	"topic.development": "Growth and development",
	"topic.sleep":       "Sleep routines",
	"topic.illness":     "Common childhood illnesses",
	"topic.emergency":   "Emergencies and first aid",
	"topic.newborn":     "Newborn care",
}
