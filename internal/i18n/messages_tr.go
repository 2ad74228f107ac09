package i18n

// messagesTR is the Turkish catalogue (clinic default).
var messagesTR = map[string]string{
	// Disclaimer block appended to every generated answer. The four required
	// elements: warning marker, informational notice, clinic referral hint,
	// emergency number.
	"disclaimer": "\n\n⚠️ Bu yanıt yalnızca bilgilendirme amaçlıdır ve tıbbi tavsiye yerine geçmez. " +
		"Kesin tanı ve tedavi için lütfen kliniğimizdeki çocuk doktorunuza danışın. " +
		"Acil durumlarda 112'yi arayın.",

	// Prompt slot defaults.
	"patient.name_placeholder": "çocuğunuz",
	"patient.age_unspecified":  "belirtilmemiş",

	// Client-visible error messages.
	"error.validation":  "İstek doğrulanamadı. Lütfen alanları kontrol edin.",
	"error.upstream":    "Asistan şu anda yanıt veremiyor. Lütfen daha sonra tekrar deneyin.",
	"error.internal":    "Beklenmeyen bir hata oluştu.",
	"error.rate_limit":  "Çok fazla istek gönderildi. Lütfen biraz bekleyin.",
	"error.not_healthy": "Servis şu anda hazır değil.",

	// Feedback acknowledgement.
	"feedback.received": "Geri bildiriminiz için teşekkürler.",

	// Topic catalogue shown by the topics endpoint, grouped by category.
	"topics.category.preventive": "Koruyucu bakım",
	"topics.category.daily":      "Günlük bakım ve gelişim",
	"topics.category.illness":    "Hastalıklar ve acil durumlar",

	"topic.vaccination": "Aşılar ve aşı takvimi",
	"topic.nutrition":   "Beslenme ve ek gıda",
	"topic.development": "Büyüme ve gelişim",
	"topic.sleep":       "Uyku düzeni",
	"topic.illness":     "Sık görülen hastalıklar",
	"topic.emergency":   "Acil durumlar ve ilk yardım",
	"topic.newborn":     "Yenidoğan bakımı",
}
