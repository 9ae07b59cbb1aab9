package launcher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionData represents data that can be executed when a launcher item is selected
type ActionData interface {
	Type() string
	ToJSON() ([]byte, error)
}

// LaunchAction starts a program
type LaunchAction struct {
	Path string   `json:"path"`
	Args []string `json:"args,omitempty"`
}

func (a *LaunchAction) Type() string {
	return "launch"
}

func (a *LaunchAction) ToJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type": a.Type(),
		"path": a.Path,
		"args": a.Args,
	}
	return json.Marshal(data)
}

// OpenAction opens a file or folder with its associated program
type OpenAction struct {
	Target string `json:"target"`
}

func (a *OpenAction) Type() string {
	return "open"
}

func (a *OpenAction) ToJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type":   a.Type(),
		"target": a.Target,
	}
	return json.Marshal(data)
}

// CopyAction puts text on the clipboard
type CopyAction struct {
	Text string `json:"text"`
}

func (a *CopyAction) Type() string {
	return "copy"
}

func (a *CopyAction) ToJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type": a.Type(),
		"text": a.Text,
	}
	return json.Marshal(data)
}

// URLAction opens a web address in the default browser
type URLAction struct {
	URL string `json:"url"`
}

func (a *URLAction) Type() string {
	return "url"
}

func (a *URLAction) ToJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type": a.Type(),
		"url":  a.URL,
	}
	return json.Marshal(data)
}

// QueryAction replaces the current query instead of executing anything
type QueryAction struct {
	Query string `json:"query"`
}

func (a *QueryAction) Type() string {
	return "query"
}

func (a *QueryAction) ToJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type":  a.Type(),
		"query": a.Query,
	}
	return json.Marshal(data)
}

// CustomAction allows launcher-specific action types
type CustomAction struct {
	DataType string      `json:"data_type"`
	Payload  interface{} `json:"payload"`
}

func (a *CustomAction) Type() string {
	return a.DataType
}

func (a *CustomAction) ToJSON() ([]byte, error) {
	data := map[string]interface{}{
		"type":      a.Type(),
		"data_type": a.DataType,
		"payload":   a.Payload,
	}
	return json.Marshal(data)
}

// ParseActionData parses JSON data into the appropriate ActionData implementation
func ParseActionData(data []byte) (ActionData, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action data: %w", err)
	}

	actionType, ok := raw["type"].(string)
	if !ok {
		return nil, fmt.Errorf("action data missing type field")
	}

	var action ActionData
	switch actionType {
	case "launch":
		action = &LaunchAction{}
	case "open":
		action = &OpenAction{}
	case "copy":
		action = &CopyAction{}
	case "url":
		action = &URLAction{}
	case "query":
		action = &QueryAction{}
	default:
		action = &CustomAction{}
	}

	if err := json.Unmarshal(data, action); err != nil {
		return nil, fmt.Errorf("failed to parse %s action: %w", actionType, err)
	}
	if custom, ok := action.(*CustomAction); ok && custom.DataType == "" {
		custom.DataType = actionType
	}
	return action, nil
}

// Describe renders an action as a short human-readable string.
func Describe(action ActionData) string {
	switch a := action.(type) {
	case nil:
		return ""
	case *LaunchAction:
		return strings.TrimSpace(a.Path + " " + strings.Join(a.Args, " "))
	case *OpenAction:
		return a.Target
	case *CopyAction:
		return "copy: " + a.Text
	case *URLAction:
		return a.URL
	case *QueryAction:
		return a.Query
	default:
		return action.Type()
	}
}

func NewLaunchAction(path string, args ...string) *LaunchAction {
	return &LaunchAction{Path: path, Args: args}
}

func NewOpenAction(target string) *OpenAction {
	return &OpenAction{Target: target}
}

func NewCopyAction(text string) *CopyAction {
	return &CopyAction{Text: text}
}

func NewURLAction(url string) *URLAction {
	return &URLAction{URL: url}
}

func NewQueryAction(query string) *QueryAction {
	return &QueryAction{Query: query}
}

func NewCustomAction(dataType string, payload interface{}) *CustomAction {
	return &CustomAction{DataType: dataType, Payload: payload}
}
