package models

import (
	"testing"
	"time"
)

func TestParseTaskName(t *testing.T) {
	tests := []struct {
		in   string
		want TaskName
		ok   bool
	}{
		{"FreshThought", TaskFreshThought, true},
		{"freshthought", TaskFreshThought, true},
		{" PeriodicAnimation ", TaskPeriodicAnimation, true},
		{"readChatAndReply", TaskReadAndReply, true},
		{"startStructuredContentGeneration", TaskStructuredContent, true},
		{"startStructuredStory", TaskStructuredStory, true},
		{"danceForever", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTaskName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTaskName(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRunMode(t *testing.T) {
	for in, want := range map[string]RunMode{
		"":                     RunModeNormal,
		"normal":               RunModeNormal,
		"story-only":           RunModeStoryOnly,
		"startStructuredStory": RunModeStoryOnly,
		"CONTENT-ONLY":         RunModeContentOnly,
	} {
		got, err := ParseRunMode(in)
		if err != nil {
			t.Fatalf("ParseRunMode(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseRunMode(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseRunMode("chaos"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestTaskSet(t *testing.T) {
	if got := TaskSet(RunModeStoryOnly, true); len(got) != 1 || got[0] != TaskStructuredStory {
		t.Errorf("story-only task set = %v", got)
	}
	if got := TaskSet(RunModeContentOnly, false); len(got) != 1 || got[0] != TaskStructuredContent {
		t.Errorf("content-only task set = %v", got)
	}
	if got := TaskSet(RunModeNormal, false); len(got) != 3 {
		t.Errorf("normal task set without room = %v", got)
	}
	got := TaskSet(RunModeNormal, true)
	if len(got) != 4 || got[3] != TaskAgentRoomChat {
		t.Errorf("normal task set with room = %v", got)
	}
}

func TestCycleRecordRecordAndFinish(t *testing.T) {
	start := time.Unix(1000, 0)
	c := CycleRecord{StartTime: start, TaskPlan: []TaskName{TaskFreshThought, TaskPeriodicAnimation}, Status: CycleStatusInProgress}
	c.Record(NewTaskOutcome(TaskFreshThought, start, start.Add(time.Second), nil))
	c.Record(NewTaskOutcome(TaskPeriodicAnimation, start, start.Add(2*time.Second), errTest("boom")))

	if len(c.Completed) != 1 || len(c.Failed) != 1 {
		t.Fatalf("completed=%d failed=%d", len(c.Completed), len(c.Failed))
	}
	if c.Failed[0].Error != "boom" || c.Failed[0].DurationMs != 2000 {
		t.Errorf("unexpected failed outcome: %+v", c.Failed[0])
	}
	if c.Consumed() != len(c.TaskPlan) {
		t.Errorf("Consumed() = %d", c.Consumed())
	}

	c.Finish(CycleStatusCompleted, start.Add(5*time.Second))
	if c.DurationMs == nil || *c.DurationMs != 5000 {
		t.Errorf("DurationMs = %v", c.DurationMs)
	}

	cp := c.Clone()
	cp.Completed[0].Name = TaskReadAndReply
	*cp.DurationMs = 1
	if c.Completed[0].Name != TaskFreshThought || *c.DurationMs != 5000 {
		t.Error("Clone shares state with the original")
	}
}

func TestPhaseForProgress(t *testing.T) {
	for p, want := range map[int]StoryPhase{0: PhaseIntroduction, 25: PhaseIntroduction, 26: PhaseDevelopment, 60: PhaseClimax, 76: PhaseResolution, 100: PhaseResolution} {
		if got := PhaseForProgress(p); got != want {
			t.Errorf("PhaseForProgress(%d) = %q, want %q", p, got, want)
		}
	}
}

func TestContentPlanStepInstruction(t *testing.T) {
	p := ContentPlan{Steps: []string{"intro", "body", "outro"}}
	if p.Planned() || p.StepInstruction() != "" {
		t.Error("unplanned content plan should have no instruction")
	}
	p.CurrentStep = 2
	if p.StepInstruction() != "body" {
		t.Errorf("StepInstruction() = %q", p.StepInstruction())
	}
}

func TestLookupAnimation(t *testing.T) {
	catalog := DefaultAnimations()
	if got, ok := LookupAnimation(catalog, "  Waving.\n"); !ok || got != "waving" {
		t.Errorf("LookupAnimation = %q, %v", got, ok)
	}
	if _, ok := LookupAnimation(catalog, "moonwalk_on_ceiling"); ok {
		t.Error("expected unknown animation to be rejected")
	}
}

func TestCharacterIDs(t *testing.T) {
	c := Character{Name: "Dr. Borp!  Jr"}
	if c.Identifier() != "dr_borp_jr" {
		t.Errorf("Identifier() = %q", c.Identifier())
	}
	if c.AgentID() != StableID("Dr. Borp!  Jr") {
		t.Error("AgentID should derive from the name when unset")
	}
	if StableID("a") != StableID("a") || StableID("a") == StableID("b") {
		t.Error("StableID must be deterministic and distinct")
	}
	c.ID = "agent-1"
	if c.AgentID() != "agent-1" {
		t.Errorf("AgentID() = %q", c.AgentID())
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
