package envelope

// PlanEntry is one task in a task plan envelope.
type PlanEntry struct {
	Name string `json:"name"`
}

// TaskPlan is the planning oracle's envelope.
type TaskPlan struct {
	TaskQueueConstants []PlanEntry `json:"taskQueueConstants"`
}

// Story is one step of the story oracle.
type Story struct {
	Thought       string `json:"thought"`
	StoryProgress Int    `json:"storyProgress"`
	Phase         string `json:"phase"`
	IsComplete    Bool   `json:"isComplete"`
}

// ContentPlanBody is the plan proposed by the first content call.
type ContentPlanBody struct {
	Topic string   `json:"topic"`
	Goal  string   `json:"goal"`
	Steps []string `json:"steps"`
}

// ContentInit is the planning response of the content oracle.
type ContentInit struct {
	Thought     string          `json:"thought"`
	ContentPlan ContentPlanBody `json:"contentPlan"`
	CurrentStep Int             `json:"currentStep"`
	IsComplete  Bool            `json:"isComplete"`
}

// ContentStep is a step response of the content oracle.
type ContentStep struct {
	Thought     string `json:"thought"`
	Transition  string `json:"transition"`
	CurrentStep Int    `json:"currentStep"`
	IsComplete  Bool   `json:"isComplete"`
}

// Reply is a comment reply with an optional action hint.
type Reply struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// RoomReply is a reply in the shared agent room.
type RoomReply struct {
	User string `json:"user"`
	Text string `json:"text"`
}
