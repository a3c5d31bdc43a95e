package scripts

import "fmt"

// ScriptError represents an error that occurred inside an extraction script.
type ScriptError struct {
	Script    string
	Function  string
	Message   string
	Cause     error
	IsTimeout bool
	IsPanic   bool
}

func (e *ScriptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("script %s: function %s: %s: %v", e.Script, e.Function, e.Message, e.Cause)
	}
	return fmt.Sprintf("script %s: function %s: %s", e.Script, e.Function, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}
