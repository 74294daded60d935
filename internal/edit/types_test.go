package edit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAction_UnmarshalDecodesOptionsByType(t *testing.T) {
	raw := `{"id":"a1","type":"mosaic","start_time":1.5,"end_time":3,"options":{"x":4,"y":8,"width":50,"height":60,"blur_strength":20}}`

	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	opts, ok := a.Options.(MosaicOptions)
	if !ok {
		t.Fatalf("Options = %T, want MosaicOptions", a.Options)
	}
	if opts.Width != 50 || opts.BlurStrength != 20 {
		t.Fatalf("Options = %+v, want width 50 blur 20", opts)
	}
}

func TestAction_UnmarshalDropsOptionsForCut(t *testing.T) {
	raw := `{"type":"cut","start_time":0,"end_time":1,"options":{"x":1}}`

	var a Action
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if a.Options != nil {
		t.Fatalf("Options = %#v, want nil", a.Options)
	}
}

func TestAction_MarshalOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Action{Type: ActionMute, StartTime: 2, EndTime: 4, Options: MosaicOptions{Width: 1}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)
	for _, unwanted := range []string{`"id"`, `"options"`, `"created_at"`, `"risk_item_id"`} {
		if strings.Contains(s, unwanted) {
			t.Fatalf("Marshal() = %s, should not contain %s", s, unwanted)
		}
	}
}

func TestAction_MarshalTelopKeepsNullBackground(t *testing.T) {
	data, err := json.Marshal(Action{Type: ActionTelop, StartTime: 0, EndTime: 1, Options: DefaultOptions(ActionTelop)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"background_color":null`) {
		t.Fatalf("Marshal() = %s, want background_color null", data)
	}
}

func TestCloneActions_IsDeep(t *testing.T) {
	bg := "#000000"
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := []Action{{
		ID:        "t1",
		Type:      ActionTelop,
		Options:   TelopOptions{Text: "x", FontSize: 20, FontColor: "#FFF", BackgroundColor: &bg},
		CreatedAt: &created,
	}}

	cp := CloneActions(orig)
	*cp[0].Options.(TelopOptions).BackgroundColor = "#FFFFFF"
	*cp[0].CreatedAt = time.Time{}

	if bg != "#000000" {
		t.Fatalf("background color mutated through clone: %q", bg)
	}
	if !created.Equal(*orig[0].CreatedAt) {
		t.Fatalf("created_at mutated through clone")
	}
}

func TestInputs_StripsTimestamps(t *testing.T) {
	now := time.Now()
	in := Inputs([]Action{{ID: "a", Type: ActionCut, CreatedAt: &now}})
	if in[0].CreatedAt != nil {
		t.Fatalf("CreatedAt = %v, want nil", in[0].CreatedAt)
	}
	if in[0].ID != "a" {
		t.Fatalf("ID = %q, want a", in[0].ID)
	}
	if got := Inputs(nil); got == nil || len(got) != 0 {
		t.Fatalf("Inputs(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestIndexOf(t *testing.T) {
	actions := []Action{{ID: "a"}, {ID: "b"}, {}}
	if got := IndexOf(actions, "b"); got != 1 {
		t.Fatalf("IndexOf(b) = %d, want 1", got)
	}
	if got := IndexOf(actions, ""); got != -1 {
		t.Fatalf("IndexOf(\"\") = %d, want -1", got)
	}
	if got := IndexOf(actions, "zzz"); got != -1 {
		t.Fatalf("IndexOf(zzz) = %d, want -1", got)
	}
}

func TestDefaultOptions(t *testing.T) {
	m, ok := DefaultOptions(ActionMosaic).(MosaicOptions)
	if !ok || m.Width != 120 || m.Height != 120 || m.BlurStrength != 10 {
		t.Fatalf("DefaultOptions(mosaic) = %#v", DefaultOptions(ActionMosaic))
	}
	tel, ok := DefaultOptions(ActionTelop).(TelopOptions)
	if !ok || tel.FontSize != 28 || tel.FontColor != "#FFFFFF" || tel.BackgroundColor != nil {
		t.Fatalf("DefaultOptions(telop) = %#v", DefaultOptions(ActionTelop))
	}
	if DefaultOptions(ActionCut) != nil {
		t.Fatalf("DefaultOptions(cut) = %#v, want nil", DefaultOptions(ActionCut))
	}
}
