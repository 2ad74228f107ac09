package assistant

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/pedira/pedira/internal/i18n"
)

// Prompt templates per scenario. All slots are filled before generation;
// missing patient details fall back to localised placeholders so the model
// never sees empty slots.
const (
	medicalExpertTemplate = `Sen bir çocuk sağlığı kliniğinin uzman asistanısın. Görevin, klinik belgelerine dayanarak ebeveynlerin sorularını doğru ve anlaşılır şekilde yanıtlamak.

Hasta bilgisi:
- Çocuk: {{.ChildName}}
- Yaş: {{.ChildAge}}{{if .PatientContext}}
- Ek bilgiler: {{.PatientContext}}{{end}}

Klinik belgelerinden alınan ilgili bölümler:
{{.Context}}

Kurallar:
- Yalnızca yukarıdaki belgelere ve genel pediatri bilgisine dayan.
- Belgeler soruyu yanıtlamıyorsa bunu açıkça söyle, tahmin yürütme.
- İlaç dozu önerme; doz sorularında doktora yönlendir.
- Yanıtı ebeveynin anlayacağı sade bir Türkçe ile yaz.

Soru: {{.Question}}`

	emergencyTemplate = `Sen bir çocuk sağlığı kliniğinin acil durum asistanısın. Ebeveyn olası bir acil durum hakkında soru soruyor.

Hasta bilgisi:
- Çocuk: {{.ChildName}}
- Yaş: {{.ChildAge}}{{if .PatientContext}}
- Ek bilgiler: {{.PatientContext}}{{end}}

Klinik belgelerinden alınan ilgili bölümler:
{{.Context}}

Kurallar:
- Kısa, net ve adım adım talimat ver.
- Ciddi belirti tarif ediliyorsa önce 112'yi aramasını söyle.
- Kesinlikle tanı koyma; yalnızca ilk yardım ve yönlendirme bilgisi ver.

Soru: {{.Question}}`

	generalHealthTemplate = `Sen bir çocuk sağlığı kliniğinin asistanısın. Ebeveynlerin günlük bakım, beslenme, uyku ve gelişim sorularını sıcak ve destekleyici bir dille yanıtlıyorsun.

Hasta bilgisi:
- Çocuk: {{.ChildName}}
- Yaş: {{.ChildAge}}{{if .PatientContext}}
- Ek bilgiler: {{.PatientContext}}{{end}}

Klinik belgelerinden alınan ilgili bölümler:
{{.Context}}

Kurallar:
- Belgelerdeki bilgiyi önceliklendir, genel önerileri belgelerle çelişmeyecek şekilde ver.
- Endişe verici bir belirti tarif ediliyorsa kliniğe başvurmayı öner.

Soru: {{.Question}}`
)

// noContextNotice replaces the context block when retrieval returned nothing.
const noContextNotice = "(Bu soruyla eşleşen klinik belgesi bulunamadı.)"

type promptData struct {
	ChildName      string
	ChildAge       string
	PatientContext string
	Context        string
	Question       string
}

// Composer renders scenario prompts. Templates are parsed once at
// construction; Compose itself cannot fail on template syntax.
type Composer struct {
	catalog   *i18n.Catalog
	templates map[Scenario]*template.Template
}

// NewComposer parses all scenario templates against the given catalogue.
func NewComposer(catalog *i18n.Catalog) (*Composer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	sources := map[Scenario]string{
		ScenarioMedicalExpert: medicalExpertTemplate,
		ScenarioEmergency:     emergencyTemplate,
		ScenarioGeneralHealth: generalHealthTemplate,
	}

	templates := make(map[Scenario]*template.Template, len(sources))
	for sc, src := range sources {
		t, err := template.New(string(sc)).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", sc, err)
		}
		templates[sc] = t
	}
	return &Composer{catalog: catalog, templates: templates}, nil
}

// Compose renders the prompt for a scenario, question, and retrieved context
// excerpts. Failures wrap ErrPromptCompose.
func (c *Composer) Compose(sc Scenario, req *QueryRequest, contexts []string) (string, error) {
	t, ok := c.templates[sc]
	if !ok {
		return "", fmt.Errorf("%w: unknown scenario %q", ErrPromptCompose, sc)
	}

	data := promptData{
		ChildName:      strings.TrimSpace(req.ChildName),
		ChildAge:       strings.TrimSpace(req.ChildAge),
		PatientContext: formatPatientContext(req.PatientContext),
		Context:        formatContexts(contexts),
		Question:       strings.TrimSpace(req.Question),
	}
	if data.ChildName == "" {
		data.ChildName = c.catalog.T("patient.name_placeholder")
	}
	if data.ChildAge == "" {
		data.ChildAge = c.catalog.T("patient.age_unspecified")
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("%w: rendering %s: %v", ErrPromptCompose, sc, err)
	}
	return b.String(), nil
}

// formatContexts numbers the retrieved excerpts for the prompt.
func formatContexts(contexts []string) string {
	if len(contexts) == 0 {
		return noContextNotice
	}
	var b strings.Builder
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(c))
	}
	return b.String()
}

// formatPatientContext flattens the free-form context map into a stable,
// comma-separated list.
func formatPatientContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, ctx[k]))
	}
	return strings.Join(parts, ", ")
}
