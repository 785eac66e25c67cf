package consensus

import (
	"fmt"
	"io"
	"strings"
)

// Callbacks receives streamed pipeline notifications. Implementations are
// provided by UI, CLI, and test harnesses.
//
// For a given stage the engine guarantees the sequence: exactly one
// OnStageStart, zero or more OnStageChunk/OnStageProgress pairs in chunk
// order, then exactly one of OnStageComplete or OnError. A failing
// non-terminal callback is logged and does not abort the pipeline.
type Callbacks interface {
	OnStageStart(stage Stage, model string) error
	OnStageChunk(stage Stage, chunk string, accumulated string) error
	OnStageProgress(stage Stage, progress ProgressInfo) error
	OnStageComplete(stage Stage, result StageResult) error
	OnError(stage Stage, err error) error
}

// NopCallbacks discards all notifications.
type NopCallbacks struct{}

func (NopCallbacks) OnStageStart(Stage, string) error          { return nil }
func (NopCallbacks) OnStageChunk(Stage, string, string) error  { return nil }
func (NopCallbacks) OnStageProgress(Stage, ProgressInfo) error { return nil }
func (NopCallbacks) OnStageComplete(Stage, StageResult) error  { return nil }
func (NopCallbacks) OnError(Stage, error) error                { return nil }

// ConsoleCallbacks renders pipeline progress to a terminal. With
// ShowProgress set it draws per-stage progress bars; otherwise it streams
// chunks directly.
type ConsoleCallbacks struct {
	Out          io.Writer
	ShowProgress bool
}

func (c *ConsoleCallbacks) OnStageStart(stage Stage, model string) error {
	if c.ShowProgress {
		fmt.Fprintf(c.Out, "%s → starting (%s)\n", stage.DisplayName(), model)
	}
	return nil
}

func (c *ConsoleCallbacks) OnStageChunk(stage Stage, chunk string, _ string) error {
	if !c.ShowProgress && stage == StageCurator {
		// Only the Curator's output is the user-visible answer.
		fmt.Fprint(c.Out, chunk)
	}
	return nil
}

func (c *ConsoleCallbacks) OnStageProgress(stage Stage, progress ProgressInfo) error {
	if !c.ShowProgress {
		return nil
	}
	const barWidth = 20
	filled := int(float64(barWidth) * progress.Percentage)
	if filled > barWidth {
		filled = barWidth
	}
	fmt.Fprintf(c.Out, "\r%-9s → [%s%s] %3.0f%%",
		stage.DisplayName(),
		strings.Repeat("█", filled),
		strings.Repeat("░", barWidth-filled),
		progress.Percentage*100,
	)
	return nil
}

func (c *ConsoleCallbacks) OnStageComplete(stage Stage, result StageResult) error {
	if c.ShowProgress {
		fmt.Fprintf(c.Out, "\r%-9s → [%s] 100%% (%s, $%.4f)\n",
			stage.DisplayName(), strings.Repeat("█", 20), result.Model, result.Cost)
	} else if stage == StageCurator {
		fmt.Fprintln(c.Out)
	}
	return nil
}

func (c *ConsoleCallbacks) OnError(stage Stage, err error) error {
	fmt.Fprintf(c.Out, "\n%s → error: %v\n", stage.DisplayName(), err)
	return nil
}

// EventType identifies a streamed pipeline event.
type EventType string

const (
	EventStageStarted   EventType = "stage_started"
	EventChunk          EventType = "chunk"
	EventProgress       EventType = "progress"
	EventStageCompleted EventType = "stage_completed"
	EventError          EventType = "error"
)

// Event is one typed pipeline notification for channel consumers.
type Event struct {
	Type     EventType     `json:"type"`
	Stage    Stage         `json:"stage"`
	Model    string        `json:"model,omitempty"`
	Chunk    string        `json:"chunk,omitempty"`
	Progress *ProgressInfo `json:"progress,omitempty"`
	Result   *StageResult  `json:"result,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// ChannelCallbacks forwards notifications onto a buffered event channel
// for embedding callers. Events are dropped rather than blocking the
// pipeline when the consumer falls behind.
type ChannelCallbacks struct {
	events chan Event
}

// NewChannelCallbacks creates channel-backed callbacks with the given
// buffer size.
func NewChannelCallbacks(buffer int) *ChannelCallbacks {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelCallbacks{events: make(chan Event, buffer)}
}

// Events returns the receive side of the event channel. The channel is
// closed by Close once the run finishes.
func (c *ChannelCallbacks) Events() <-chan Event {
	return c.events
}

// Close closes the event channel. Call after Process returns.
func (c *ChannelCallbacks) Close() {
	close(c.events)
}

func (c *ChannelCallbacks) send(event Event) error {
	select {
	case c.events <- event:
		return nil
	default:
		return fmt.Errorf("event channel full, dropped %s event", event.Type)
	}
}

func (c *ChannelCallbacks) OnStageStart(stage Stage, model string) error {
	return c.send(Event{Type: EventStageStarted, Stage: stage, Model: model})
}

func (c *ChannelCallbacks) OnStageChunk(stage Stage, chunk string, _ string) error {
	return c.send(Event{Type: EventChunk, Stage: stage, Chunk: chunk})
}

func (c *ChannelCallbacks) OnStageProgress(stage Stage, progress ProgressInfo) error {
	return c.send(Event{Type: EventProgress, Stage: stage, Progress: &progress})
}

func (c *ChannelCallbacks) OnStageComplete(stage Stage, result StageResult) error {
	return c.send(Event{Type: EventStageCompleted, Stage: stage, Result: &result})
}

func (c *ChannelCallbacks) OnError(stage Stage, err error) error {
	return c.send(Event{Type: EventError, Stage: stage, Err: err.Error()})
}
