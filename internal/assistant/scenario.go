package assistant

// Scenario selects the prompt template and decoding parameters for a query.
type Scenario string

const (
	// ScenarioMedicalExpert is the default: detailed, referenced answers in
	// a clinical register.
	ScenarioMedicalExpert Scenario = "medical_expert"

	// ScenarioEmergency favours short, directive answers with conservative
	// decoding. It always points to emergency services.
	ScenarioEmergency Scenario = "emergency"

	// ScenarioGeneralHealth is for routine care questions where a warmer,
	// less formal tone fits.
	ScenarioGeneralHealth Scenario = "general_health"
)

// DecodingParams are the generation settings tied to a scenario.
type DecodingParams struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// decoding maps each scenario to its generation settings. Emergency answers
// use the most conservative sampling and the shortest output cap.
var decoding = map[Scenario]DecodingParams{
	ScenarioMedicalExpert: {Temperature: 0.6, TopP: 0.9, TopK: 30, MaxOutputTokens: 4096},
	ScenarioEmergency:     {Temperature: 0.3, TopP: 0.8, TopK: 20, MaxOutputTokens: 2048},
	ScenarioGeneralHealth: {Temperature: 0.7, TopP: 0.95, TopK: 40, MaxOutputTokens: 4096},
}

// ParseScenario maps a request's scenario field to a known scenario.
// Empty or unrecognised values fall back to the medical expert scenario.
func ParseScenario(s string) Scenario {
	switch Scenario(s) {
	case ScenarioMedicalExpert, ScenarioEmergency, ScenarioGeneralHealth:
		return Scenario(s)
	default:
		return ScenarioMedicalExpert
	}
}

// Decoding returns the generation settings for the scenario.
func (s Scenario) Decoding() DecodingParams {
	if p, ok := decoding[s]; ok {
		return p
	}
	return decoding[ScenarioMedicalExpert]
}
