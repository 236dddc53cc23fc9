package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are an AI assistant for a restaurant feedback system. You must produce one valid JSON object only (no markdown, no commentary, no code fences) that follows the schema below.

Requirements:
- ai_response: warm, professional message to the customer.
- ai_summary: 1-3 sentence summary for the admin dashboard; highlight 3-6 key words with **double asterisks**.
- ai_recommended_actions: numbered list of concrete steps for management.
- predicted_stars: integer 1-5 derived from the review text sentiment, not only from the given rating.
- prediction_explanation: one short sentence explaining predicted_stars.

Rating rubric:
1 = very negative (complaints, bad service, rude staff, terrible food)
2 = mostly negative (some positives, overall disappointing)
3 = mixed or neutral
4 = mostly positive with minor issues
5 = very positive, strong praise

Schema (example with empty values):
{
  "ai_response": "<string>",
  "ai_summary": "<string>",
  "ai_recommended_actions": "<string>",
  "predicted_stars": 3,
  "prediction_explanation": "<string>"
}

Example:
rating_given: 3
review_text: "Food was okay but service was slow. The ambiance was nice though."
{
  "ai_response": "Thank you for your honest feedback. I'm glad you enjoyed the ambiance, and I'm sorry the slow service affected your experience. We'll use your comments to improve our service speed while keeping the atmosphere you liked.",
  "ai_summary": "Customer mentioned **slow service** but appreciated the **nice ambiance**, overall **mixed** experience.",
  "ai_recommended_actions": "1. Review staffing and workflow during busy periods to reduce wait times.\n2. Document what guests like about the ambiance.\n3. Monitor future reviews for comments about service speed.",
  "predicted_stars": 3,
  "prediction_explanation": "The review contains both positives and negatives, matching a mixed experience."
}`
}

// GetUserPrompt builds the user message around one submission.
func GetUserPrompt(rating int, reviewText string) string {
	return fmt.Sprintf("Generate the JSON for this review.\nrating_given: %d\nreview_text: %q", rating, strings.TrimSpace(reviewText))
}

// GetRefineSystemPrompt directs a second pass that only polishes text.
func GetRefineSystemPrompt() string {
	return `You improve customer-feedback replies written by a first draft. Return one valid JSON object only (no markdown, no code fences):
{
  "ai_response": "<string>",
  "ai_summary": "<string>",
  "ai_recommended_actions": "<string>"
}

Rules:
- Keep the facts of the review; do not invent details.
- ai_response stays warm and empathetic and addresses the specific points raised.
- ai_summary is 1-3 sentences with **key words** highlighted.
- ai_recommended_actions is a numbered list of 3 concrete steps.`
}

// GetRefineUserPrompt passes the review and the current draft.
func GetRefineUserPrompt(rating int, reviewText, response, summary, actions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rating_given: %d\n", rating)
	fmt.Fprintf(&b, "review_text: %q\n\n", strings.TrimSpace(reviewText))
	b.WriteString("current draft:\n")
	fmt.Fprintf(&b, "ai_response: %q\n", response)
	fmt.Fprintf(&b, "ai_summary: %q\n", summary)
	fmt.Fprintf(&b, "ai_recommended_actions: %q\n", actions)
	return b.String()
}
