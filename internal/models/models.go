// Package models defines the core data structures for StreamAgent.
//
// It includes task names and run modes for the task cycle, cycle and task
// outcome records, structured generation state, and the wire types exchanged
// with the streaming platform.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// TaskName identifies one unit of work the orchestrator can run in a cycle.
type TaskName string

const (
	// TaskReadAndReply reads unread viewer comments and replies to one of them.
	TaskReadAndReply TaskName = "ReadAndReply"
	// TaskFreshThought shares a spontaneous thought on stream.
	TaskFreshThought TaskName = "FreshThought"
	// TaskPeriodicAnimation plays an animation chosen by the oracle.
	TaskPeriodicAnimation TaskName = "PeriodicAnimation"
	// TaskStructuredStory runs the story state machine to completion.
	TaskStructuredStory TaskName = "StructuredStory"
	// TaskStructuredContent runs the content-plan state machine to completion.
	TaskStructuredContent TaskName = "StructuredContent"
	// TaskAgentRoomChat replies in the shared agent chat room.
	TaskAgentRoomChat TaskName = "AgentRoomChat"
)

// legacyTaskNames maps the names used by earlier deployments onto TaskName values.
var legacyTaskNames = map[string]TaskName{
	"readchatandreply":                 TaskReadAndReply,
	"generatefreshthought":             TaskFreshThought,
	"generateperiodicanimation":        TaskPeriodicAnimation,
	"startstructuredstory":             TaskStructuredStory,
	"startstructuredcontentgeneration": TaskStructuredContent,
	"readagentchatandreply":            TaskAgentRoomChat,
}

// AllTaskNames lists every task the orchestrator knows how to dispatch.
func AllTaskNames() []TaskName {
	return []TaskName{
		TaskReadAndReply,
		TaskFreshThought,
		TaskPeriodicAnimation,
		TaskStructuredStory,
		TaskStructuredContent,
		TaskAgentRoomChat,
	}
}

// ParseTaskName resolves a task name case-insensitively, accepting legacy names.
func ParseTaskName(s string) (TaskName, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	for _, n := range AllTaskNames() {
		if strings.ToLower(string(n)) == key {
			return n, true
		}
	}
	n, ok := legacyTaskNames[key]
	return n, ok
}

// RunMode selects the set of tasks offered to the planning oracle.
type RunMode string

const (
	RunModeNormal      RunMode = "normal"
	RunModeStoryOnly   RunMode = "story-only"
	RunModeContentOnly RunMode = "content-only"
)

// ErrInvalidRunMode is returned by ParseRunMode for unknown modes.
var ErrInvalidRunMode = errors.New("invalid run mode")

// ParseRunMode resolves a configured mode string. Empty means normal.
// The task names startStructuredStory and startStructuredContentGeneration
// are accepted as aliases for the single-task modes.
func ParseRunMode(s string) (RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return RunModeNormal, nil
	case "story-only", "story", "startstructuredstory":
		return RunModeStoryOnly, nil
	case "content-only", "content", "startstructuredcontentgeneration":
		return RunModeContentOnly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRunMode, s)
	}
}

// TaskSet returns the task names offered to the planning oracle for a mode.
// AgentRoomChat is only offered in normal mode for characters that sit in
// the shared agent room.
func TaskSet(mode RunMode, inAgentRoom bool) []TaskName {
	switch mode {
	case RunModeStoryOnly:
		return []TaskName{TaskStructuredStory}
	case RunModeContentOnly:
		return []TaskName{TaskStructuredContent}
	default:
		tasks := []TaskName{TaskReadAndReply, TaskFreshThought, TaskPeriodicAnimation}
		if inAgentRoom {
			tasks = append(tasks, TaskAgentRoomChat)
		}
		return tasks
	}
}
