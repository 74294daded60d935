// Package edit holds the edit actions a reviewer applies to an analyzed
// video, the session that owns them, and the rules that make an action
// well-formed.
package edit

import (
	"encoding/json"
	"fmt"
	"time"
)

type ActionType string

const (
	ActionCut    ActionType = "cut"
	ActionMute   ActionType = "mute"
	ActionMosaic ActionType = "mosaic"
	ActionTelop  ActionType = "telop"
	ActionSkip   ActionType = "skip"
)

var ActionTypes = []ActionType{ActionCut, ActionMute, ActionMosaic, ActionTelop, ActionSkip}

func (t ActionType) Valid() bool {
	for _, v := range ActionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// TakesOptions reports whether actions of this type carry an options payload.
func (t ActionType) TakesOptions() bool {
	return t == ActionMosaic || t == ActionTelop
}

type SessionStatus string

const (
	SessionDraft     SessionStatus = "draft"
	SessionExporting SessionStatus = "exporting"
	SessionCompleted SessionStatus = "completed"
)

// Options is the type-specific payload of a mosaic or telop action.
type Options interface {
	ActionType() ActionType
}

type MosaicOptions struct {
	X            int `json:"x" validate:"gte=0"`
	Y            int `json:"y" validate:"gte=0"`
	Width        int `json:"width" validate:"gt=0"`
	Height       int `json:"height" validate:"gt=0"`
	BlurStrength int `json:"blur_strength" validate:"gte=1,lte=100"`
}

func (MosaicOptions) ActionType() ActionType { return ActionMosaic }

type TelopOptions struct {
	Text            string  `json:"text" validate:"max=500"`
	X               int     `json:"x" validate:"gte=0"`
	Y               int     `json:"y" validate:"gte=0"`
	FontSize        int     `json:"font_size" validate:"gte=10,lte=200"`
	FontColor       string  `json:"font_color" validate:"required,hexcolor"`
	BackgroundColor *string `json:"background_color" validate:"omitempty,hexcolor"`
}

func (TelopOptions) ActionType() ActionType { return ActionTelop }

// Action is one edit applied to a time range of the source video.
// ID is empty until the gateway has persisted the action.
type Action struct {
	ID         string
	RiskItemID string
	Type       ActionType
	StartTime  float64
	EndTime    float64
	Options    Options
	CreatedAt  *time.Time
}

type actionJSON struct {
	ID         string          `json:"id,omitempty"`
	RiskItemID string          `json:"risk_item_id,omitempty"`
	Type       ActionType      `json:"type"`
	StartTime  float64         `json:"start_time"`
	EndTime    float64         `json:"end_time"`
	Options    json.RawMessage `json:"options,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	w := actionJSON{
		ID:         a.ID,
		RiskItemID: a.RiskItemID,
		Type:       a.Type,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		CreatedAt:  a.CreatedAt,
	}
	if a.Type.TakesOptions() && a.Options != nil {
		raw, err := json.Marshal(a.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal %s options: %w", a.Type, err)
		}
		w.Options = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the options payload according to the action type.
// Options sent with types that take none are dropped.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Action{
		ID:         w.ID,
		RiskItemID: w.RiskItemID,
		Type:       w.Type,
		StartTime:  w.StartTime,
		EndTime:    w.EndTime,
		CreatedAt:  w.CreatedAt,
	}
	if len(w.Options) == 0 || string(w.Options) == "null" {
		return nil
	}
	switch w.Type {
	case ActionMosaic:
		var o MosaicOptions
		if err := json.Unmarshal(w.Options, &o); err != nil {
			return fmt.Errorf("decode mosaic options: %w", err)
		}
		a.Options = o
	case ActionTelop:
		var o TelopOptions
		if err := json.Unmarshal(w.Options, &o); err != nil {
			return fmt.Errorf("decode telop options: %w", err)
		}
		a.Options = o
	}
	return nil
}

// Session is the server-owned record of all edits for one job.
type Session struct {
	ID        string        `json:"id"`
	JobID     string        `json:"job_id"`
	Status    SessionStatus `json:"status"`
	Actions   []Action      `json:"actions"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.Actions = CloneActions(s.Actions)
	return s
}

// CloneActions deep-copies an action list. A nil list stays nil.
func CloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = a.clone()
	}
	return out
}

func (a Action) clone() Action {
	if a.CreatedAt != nil {
		t := *a.CreatedAt
		a.CreatedAt = &t
	}
	switch o := a.Options.(type) {
	case TelopOptions:
		if o.BackgroundColor != nil {
			bg := *o.BackgroundColor
			o.BackgroundColor = &bg
		}
		a.Options = o
	case *TelopOptions:
		if o != nil {
			cp := *o
			if cp.BackgroundColor != nil {
				bg := *cp.BackgroundColor
				cp.BackgroundColor = &bg
			}
			a.Options = cp
		}
	case *MosaicOptions:
		if o != nil {
			a.Options = *o
		}
	}
	return a
}

// Inputs converts actions to the shape the gateway accepts on a full
// replace: server timestamps are dropped, ids are kept.
func Inputs(actions []Action) []Action {
	out := CloneActions(actions)
	if out == nil {
		out = []Action{}
	}
	for i := range out {
		out[i].CreatedAt = nil
	}
	return out
}

// IndexOf returns the position of the action with the given id, or -1.
func IndexOf(actions []Action, id string) int {
	if id == "" {
		return -1
	}
	for i, a := range actions {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// DefaultOptions returns the options a freshly created action of type t
// starts with. Types without options return nil.
func DefaultOptions(t ActionType) Options {
	switch t {
	case ActionMosaic:
		return MosaicOptions{X: 0, Y: 0, Width: 120, Height: 120, BlurStrength: 10}
	case ActionTelop:
		return TelopOptions{Text: "", X: 40, Y: 40, FontSize: 28, FontColor: "#FFFFFF"}
	}
	return nil
}
