package agent

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// defaultSubjects seed structured runs when the settings name no subject.
var defaultSubjects = []string{
	"the good things about Tunisia",
	"the movie Gladiator",
	"how to travel to Portugal",
	"teaching English to chat",
}

func pickSubject() string {
	return defaultSubjects[rand.IntN(len(defaultSubjects))]
}

// sample returns up to n distinct random elements of items.
func sample(items []string, n int) []string {
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(items))[:n] {
		out = append(out, items[i])
	}
	return out
}

func planPrompt(c models.Character, tasks []models.TaskName) string {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = string(t)
	}
	return fmt.Sprintf(`# Task Plan for %s

## Objective:
Generate a prioritized list of actions for %s (%s).

## Available Actions:
Must be one of these tasks:
%s

## Instructions:
1. Always return only the structured task list, in random order, with at least 6 tasks. Never return null.

## Example Output Format:
`+"```json"+`
{
  "taskQueueConstants": [
    { "name": "one of the tasks" },
    { "name": "one of the tasks" },
    { "name": "one of the tasks" }
  ]
}
`+"```",
		c.Name, c.Name, strings.Join(c.Adjectives, ", "), strings.Join(names, ", "))
}

func freshThoughtPrompt(c models.Character, lore, bio []string) string {
	return fmt.Sprintf(`# Task: Generate a UNIQUE and SPONTANEOUS thought for %[1]s's livestream

## Character Profile:
- Name: %[1]s
- Traits: %[2]s
- Background: %[3]s
- About: %[4]s

## Context:
%[1]s is live streaming and wants to share a spontaneous thought with chat.

## Instructions:
1. Generate a completely unique thought; avoid common patterns or repetitive formats
2. Choose one approach: a sudden realization about your background, an observation
   about the stream or chat, a quirky idea, a memory that just surfaced, breaking
   the fourth wall, or an unexpected topic change
3. Make it feel natural and unscripted
4. Keep it between 3-60 words
5. NO hashtags or emojis
6. Sometimes tell a story, sometimes ask a question, sometimes just say silly things

## Response Format:
Return only the thought, no explanations or formatting.`,
		c.Name, strings.Join(c.Adjectives, ", "), strings.Join(lore, ", "), strings.Join(bio, ", "))
}

func animationPrompt(c models.Character, options []string) string {
	return fmt.Sprintf(`# Task: Pick an animation for %s to play on stream right now

About %s: %s
Traits: %s

Available animations: %s

Respond with ONLY the name of one animation from the list, nothing else.`,
		c.Name, c.Name, strings.Join(c.Bio, " "), strings.Join(c.Adjectives, ", "), strings.Join(options, ", "))
}
