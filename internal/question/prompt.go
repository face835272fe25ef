package question

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/surveus/surveus/internal/genai"
)

// DefaultLanguage is used when the customer context carries no language.
const DefaultLanguage = "English"

// BuildPrompt assembles the system and user messages for question
// generation. The system prompt adapts its rules to which data categories
// are present in the context.
func BuildPrompt(cc Context) ([]genai.Message, error) {
	lang := cc.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	var sb strings.Builder
	sb.WriteString("You are an advanced survey design expert creating personalized surveys.\n\n")
	sb.WriteString("DATA-DRIVEN QUESTION RULES:\n")

	sb.WriteString("1. Purchase History:\n")
	switch {
	case len(cc.PurchaseHistory) > 0:
		sb.WriteString("- Purchase data exists: Focus on satisfaction and future needs\n")
	case cc.TotalPurchases == 0:
		sb.WriteString("- No purchases yet: Ask about browsing interests and purchase barriers\n")
	default:
		sb.WriteString("- Purchase data missing: Include basic purchase history questions\n")
	}

	sb.WriteString("2. Service Interactions:\n")
	if len(cc.ServiceInteractions) > 0 {
		sb.WriteString("- Known interactions: Focus on resolution satisfaction\n")
	} else {
		sb.WriteString("- No interaction data: Include service experience questions\n")
	}

	sb.WriteString("3. Communication Preferences:\n")
	if len(cc.MarketingEngagement) > 0 {
		sb.WriteString("- Engagement data exists: Focus on content preferences\n")
	} else {
		sb.WriteString("- No engagement data: Ask about preferred channels and frequency\n")
	}

	sb.WriteString("\nQUESTION STRUCTURE:\n")
	sb.WriteString("1. Order: start with satisfaction/feedback, include missing-data questions only if needed, end with an NPS/future-intent question\n")
	sb.WriteString("2. Question types: multiple_choice, rating (1-5 scale), open_ended (at most 50% of the set)\n")
	sb.WriteString("3. Focus on why over what, future preferences, improvement suggestions, emotional aspects\n")

	sb.WriteString("\nPERSONALIZATION:\n")
	if name := cc.FirstName(); name != "" {
		fmt.Fprintf(&sb, "- Include %q in the first question text and maintain a personal touch throughout\n", name)
	} else {
		sb.WriteString("- Use a general friendly tone\n")
	}
	fmt.Fprintf(&sb, "- Industry context: %s\n", cc.Industry)
	fmt.Fprintf(&sb, "- Language: %s\n", lang)

	sb.WriteString("\nReturn a single JSON object:\n")
	sb.WriteString(`{
 "questions": [
   {
     "type": "multiple_choice|rating|open_ended",
     "question": "question text",
     "options": ["option1", "option2"],
     "scale": {"min": 1, "max": 5, "lowLabel": "Poor", "highLabel": "Excellent"}
   }
 ],
 "metadata": {
   "personalization_factors": ["list used factors"],
   "language": "` + lang + `"
 }
}`)

	ctxJSON, err := json.MarshalIndent(cc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling customer context: %w", err)
	}

	user := fmt.Sprintf(`Create a survey based on this context:
%s

Key requirements:
1. Only ask about unknown data
2. Focus on quality/satisfaction for known interactions
3. Include basic data collection where missing
4. End with an NPS/future-intent question`, ctxJSON)

	return []genai.Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: user},
	}, nil
}
