package chat

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

func characterSystemPrompt(c models.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI livestreamer chatting with viewers in real time.", c.Name)
	if len(c.Adjectives) > 0 {
		fmt.Fprintf(&b, " You are %s.", strings.Join(c.Adjectives, ", "))
	}
	if len(c.Bio) > 0 {
		fmt.Fprintf(&b, "\n\nAbout you:\n%s", strings.Join(c.Bio, "\n"))
	}
	if len(c.Lore) > 0 {
		fmt.Fprintf(&b, "\n\nLore:\n%s", strings.Join(c.Lore, "\n"))
	}
	return b.String()
}

func selectCommentPrompt(agentName string, comments []models.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: Pick the chat message %s should answer next\n\n", agentName)
	for _, c := range comments {
		fmt.Fprintf(&b, "ID: %s\nFrom: %s\nMessage: %s\n---\n\n", c.ID, c.User, c.Message)
	}
	b.WriteString(`## Instructions
Choose the single most interesting message to respond to. Prefer questions and
messages addressed to you; skip spam and messages that need no answer.

Respond with ONLY the ID of the chosen message, or NONE if no message
deserves a reply.`)
	return b.String()
}

func replyPrompt(agentName string, history []string, c models.Comment, animations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: Reply to a viewer as %s\n\n", agentName)
	if len(history) > 0 {
		b.WriteString("## Recent conversation\n")
		b.WriteString(strings.Join(history, "\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "## Message to answer\n%s: %s\n\n", c.DisplayHandle(), c.Message)
	fmt.Fprintf(&b, `## Instructions
Reply like a real livestreamer: short, natural, no hashtags or emojis.
Address %s directly when it fits. Keep it between 3 and 60 words.
Optionally suggest one animation from: %s

Response format should be formatted in a JSON block like this:
`, c.DisplayHandle(), strings.Join(animations, ", "))
	b.WriteString("```json\n")
	fmt.Fprintf(&b, `{ "user": %q, "text": "your reply here", "action": "animation or empty" }`, agentName)
	b.WriteString("\n```\nThe response MUST be valid JSON.")
	return b.String()
}

func replyAnimationPrompt(agentName, reply string, animations []string) string {
	return fmt.Sprintf(`# Task: Choose an animation for %s

%s just said: %q

Available animations: %s

Respond with ONLY the name of one animation from the list, nothing else.`,
		agentName, agentName, reply, strings.Join(animations, ", "))
}

func roomPrompt(agentName, chatHistory, latest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s in a video livestream. Here is the recent conversation:\n\n%s\n\n", agentName, chatHistory)
	fmt.Fprintf(&b, "The latest message was: %s\n\n", latest)
	b.WriteString(`Respond naturally to continue the conversation, keeping in mind your
character's personality and the context of the chat. If the chat history is
repetitive, change the topic completely. Make replies VERY SHORT, like a real
livestream; sometimes one or two words, sometimes a full answer. No hashtags
or emojis.

Response format should be formatted in a JSON block like this:
`)
	b.WriteString("```json\n")
	fmt.Fprintf(&b, `{ "user": %q, "text": "your message here" }`, agentName)
	b.WriteString("\n```\nThe response MUST be valid JSON.")
	return b.String()
}
