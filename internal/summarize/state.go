package summarize

// State is where the controller is in a summarization run.
type State int

const (
	Idle State = iota
	ExtractingContent
	BuildingPrompt
	Streaming
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ExtractingContent:
		return "extracting_content"
	case BuildingPrompt:
		return "building_prompt"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Error:
		return "error"
	}
	return "unknown"
}
