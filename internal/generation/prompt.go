package generation

import (
	"fmt"
	"strings"

	"replyscout/internal/knowledge"
	"replyscout/internal/model"
)

// analysisPrompt asks the engine to break a post down into the keywords,
// topic, domain and implied question used to drive knowledge search and the
// generation stage.
func analysisPrompt(postText string) string {
	var b strings.Builder
	b.WriteString("Analyze the following social media post.\n\n")
	b.WriteString("Post:\n")
	b.WriteString(postText)
	b.WriteString("\n\n")
	b.WriteString("Respond with a single JSON object, no markdown, in exactly this shape:\n")
	b.WriteString(`{"keywords": ["..."], "main_topic": "...", "domain": "...", "question": "..."}`)
	b.WriteString("\n\n")
	b.WriteString("keywords: 3-6 search terms capturing what the post is about.\n")
	b.WriteString("main_topic: the single subject of the post.\n")
	b.WriteString("domain: the broad field the post belongs to.\n")
	b.WriteString("question: the question the post asks or implies, empty string if none.\n")
	return b.String()
}

// generationPrompt builds the final reply prompt from the user's profile,
// retrieved knowledge and the platform's posting limits.
func generationPrompt(profile *model.Profile, chunks []knowledge.Chunk, constraints model.Constraints, postText string) string {
	var b strings.Builder
	b.WriteString("Write a reply to the social media post below.\n\n")

	if profile.Voice != "" {
		b.WriteString("Write in this voice:\n")
		b.WriteString(profile.Voice)
		b.WriteString("\n\n")
	}
	if len(profile.Principles) > 0 {
		b.WriteString("Follow these principles:\n")
		for _, p := range profile.Principles {
			b.WriteString("- ")
			b.WriteString(p)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(chunks) > 0 {
		b.WriteString("Ground the reply in this background material where relevant:\n")
		for i, c := range chunks {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, c.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("Post:\n")
	b.WriteString(postText)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The reply must be at most %d characters. ", constraints.MaxLength)
	b.WriteString("Output only the reply text, nothing else.")
	return b.String()
}
