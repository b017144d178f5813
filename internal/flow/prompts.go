package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// systemPrompt introduces the character to the oracle.
func systemPrompt(c models.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI livestreamer talking to your chat.", c.Name)
	if len(c.Adjectives) > 0 {
		fmt.Fprintf(&b, " You are %s.", strings.Join(c.Adjectives, ", "))
	}
	if len(c.Bio) > 0 {
		b.WriteString("\n\n# About you\n")
		b.WriteString(strings.Join(c.Bio, "\n"))
	}
	if len(c.Lore) > 0 {
		b.WriteString("\n\n# Lore\n")
		b.WriteString(strings.Join(c.Lore, "\n"))
	}
	return b.String()
}

func writeThoughts(b *strings.Builder, header string, thoughts []string) {
	if len(thoughts) == 0 {
		return
	}
	fmt.Fprintf(b, "%s\n", header)
	for i, t := range thoughts {
		fmt.Fprintf(b, "%d. %s\n", i+1, t)
	}
	b.WriteString("\n")
}

func storyPrompt(agentName, subject string, s models.StoryState, thoughts []string) string {
	var b strings.Builder
	b.WriteString("# Task: Generate a Structured Story Thought\n\n")
	fmt.Fprintf(&b, "Storyteller: %s\nSubject: %s\n", agentName, subject)
	fmt.Fprintf(&b, "Current Progress: %d%%\nCurrent Phase: %s\n\n", s.Progress, s.Phase)
	writeThoughts(&b, "Previous Thoughts:", thoughts)
	b.WriteString(`## Instructions:
1. Generate the next story thought
2. Progress must increase with each thought:
   - Introduction (0-25%)
   - Development (26-50%)
   - Climax (51-75%)
   - Resolution (76-100%)
3. Story MUST complete at 100%
4. Each thought must advance the progress by 10-25%

Return JSON:
` + "```json" + `
{
    "thought": "your thought here",
    "storyProgress": <next_progress_number>,
    "phase": "<current_phase>",
    "isComplete": <true_when_100%>
}
` + "```\n")
	return b.String()
}

func contentPlanPrompt(agentName, subject string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: Generate Structured Content for %s's livestream\n\n", agentName)
	fmt.Fprintf(&b, "## Content Context\nSubject: %s\n\n", subject)
	fmt.Fprintf(&b, `## Instructions
1. Analyze the subject %q and create a content plan:
   - Determine the type (review, tutorial, story, etc.)
   - Set a clear goal (inform, persuade, entertain)
   - Create fewer than 10 logical steps to reach that goal
   - Each step should naturally flow into the next
   - Consider how to maintain viewer engagement
2. Keep responses natural and engaging
3. Keep each response between 3-60 words

## Response Format:
Return JSON in this format:
`, subject)
	b.WriteString("```json" + `
{
    "thought": "Initial engaging introduction to the topic",
    "contentPlan": {
        "topic": "Specific topic focus",
        "goal": "Clear end goal",
        "steps": ["Step 1", "Step 2", "Step 3", "Step 4"]
    },
    "currentStep": 1,
    "isComplete": false
}
` + "```\n")
	return b.String()
}

func contentStepPrompt(agentName, subject string, p models.ContentPlan, thoughts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task: Generate Structured Content for %s's livestream\n\n", agentName)
	fmt.Fprintf(&b, "## Content Context\nSubject: %s\n\n", subject)
	writeThoughts(&b, "Previous Content:", thoughts)
	step := p.StepInstruction()
	fmt.Fprintf(&b, "Current Goal: %s\nCurrent Step (%d of %d):\n%s\n\n", p.Goal, p.CurrentStep, len(p.Steps), step)
	fmt.Fprintf(&b, `## Instructions
1. Generate the next part of your content:
   - Use natural transitions from previous thoughts
   - Stay focused on the current step: %q
   - Maintain a conversational, engaging tone
   - Build towards the final goal: %q
2. Keep responses natural and engaging
3. Use connecting phrases between thoughts
4. Maintain a clear narrative thread
5. Keep each response between 3-60 words

## Response Format:
Return JSON in this format:
`, step, p.Goal)
	last := p.CurrentStep >= len(p.Steps)-1
	b.WriteString("```json\n")
	fmt.Fprintf(&b, `{
    "thought": "Your next connected thought",
    "currentStep": %d,
    "transition": "Brief transition from previous thought",
    "isComplete": %t
}
`, p.CurrentStep+1, last)
	b.WriteString("```\n")
	return b.String()
}
