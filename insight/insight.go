// Package insight produces the short generative-text blurb shown next
// to an aggregated profile. The model is an external collaborator: it
// consumes the normalized profile and returns opaque strings.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/chillgits/chillgits/profile"
)

// DefaultModel is the generative model queried for insights.
const DefaultModel = "gemini-2.0-flash"

// Insight is the model's structured response.
type Insight struct {
	Appreciation          string `json:"appreciation"`
	ActivitySummary       string `json:"activity_summary"`
	ImprovementSuggestion string `json:"improvement_suggestion"`
}

// Generator produces an insight for an aggregated profile.
type Generator interface {
	Generate(ctx context.Context, agg profile.Aggregated) (Insight, error)
}

// Gemini generates insights through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. The API key is required.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Generate asks the model for an insight on the profile.
func (g *Gemini) Generate(ctx context.Context, agg profile.Aggregated) (Insight, error) {
	prompt, err := BuildPrompt(agg)
	if err != nil {
		return Insight{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Insight{}, &profile.UpstreamError{Detail: "gemini: " + err.Error()}
	}

	return Parse(result.Text())
}

// BuildPrompt renders the generation prompt from the profile. The
// profile and its top repository are embedded as indented JSON.
func BuildPrompt(agg profile.Aggregated) (string, error) {
	userJSON, err := json.MarshalIndent(agg.Profile, "", "  ")
	if err != nil {
		return "", err
	}

	topRepoJSON := []byte("null")
	if len(agg.PinnedRepos) > 0 {
		topRepoJSON, err = json.MarshalIndent(agg.PinnedRepos[0], "", "  ")
		if err != nil {
			return "", err
		}
	}

	return fmt.Sprintf(`Based on the following GitHub user data, generate insights including:
1. An appreciation of their work
2. A summary of their activity
3. A suggestion for improvement

User data:
%s

Top repository:
%s

Format the response as a JSON object with "appreciation", "activity_summary", and "improvement_suggestion" fields. Do not include any code blocks or markdown formatting.
`, userJSON, topRepoJSON), nil
}

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)```")

// Parse unmarshals the model's reply. Models occasionally wrap the JSON
// in markdown code fences despite instructions; strip those first.
func Parse(text string) (Insight, error) {
	if m := fencedJSON.FindStringSubmatch(text); len(m) == 2 {
		text = m[1]
	}
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))

	var ins Insight
	if err := json.Unmarshal([]byte(text), &ins); err != nil {
		return Insight{}, &profile.UpstreamError{Detail: "unparsable model response: " + err.Error()}
	}
	return ins, nil
}
