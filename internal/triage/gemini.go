package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const suggestSystemPrompt = `You are a clinical triage assistant. Given a chief complaint, patient age, and vitals, estimate an urgency level on a 1-5 scale where 1 is most urgent (immediate) and 5 is least urgent (non-urgent). Respond with a single JSON object and nothing else: {"suggested_acuity": <1-5>, "confidence": <0.0-1.0>, "explanation": "<one or two sentences>"}`

// GeminiSuggester implements Suggester against the Gemini API.
type GeminiSuggester struct {
	client  *genai.Client
	modelID string
}

func NewGeminiSuggester(ctx context.Context, apiKey, modelID string) (*GeminiSuggester, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("triage: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("triage: create gemini client: %w", err)
	}
	return &GeminiSuggester{client: client, modelID: modelID}, nil
}

func (s *GeminiSuggester) Suggest(ctx context.Context, req SuggestionRequest) (Suggestion, error) {
	if strings.TrimSpace(req.ComplaintText) == "" {
		return Suggestion{}, errors.New("triage: complaint text is required")
	}

	model := s.client.GenerativeModel(s.modelID)
	model.SetTemperature(0)
	model.SystemInstruction = genai.NewUserContent(genai.Text(suggestSystemPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(req)))
	if err != nil {
		return Suggestion{}, fmt.Errorf("triage: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Suggestion{}, errors.New("triage: gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return parseSuggestion(text.String())
}

func (s *GeminiSuggester) Close() error {
	return s.client.Close()
}

func buildPrompt(req SuggestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chief complaint: %s\n", strings.TrimSpace(req.ComplaintText))
	fmt.Fprintf(&b, "Age: %d years\n", req.AgeYears)
	if len(req.Vitals) > 0 {
		b.WriteString("Vitals:\n")
		for _, vital := range req.Vitals {
			fmt.Fprintf(&b, "- %s: %s %s\n", vital.Name, vital.Value, vital.Unit)
		}
	}
	return b.String()
}
