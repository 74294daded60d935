package edl

import (
	"strings"
	"testing"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

func TestRender_NoCutsKeepsWholeSource(t *testing.T) {
	got := Render(nil, Options{Title: "Interview", FrameRate: 30, Duration: 10})

	if !strings.Contains(got, "TITLE: Interview") {
		t.Fatalf("missing title in EDL: %q", got)
	}
	if !strings.Contains(got, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", got)
	}
	if !strings.Contains(got, "001  AX       V     C        00:00:00:00 00:00:10:00 00:00:00:00 00:00:10:00") {
		t.Fatalf("missing event line: %q", got)
	}
}

func TestRender_CutsCloseTheRecordTimeline(t *testing.T) {
	actions := []edit.Action{
		{Type: edit.ActionCut, StartTime: 2, EndTime: 4},
		{Type: edit.ActionCut, StartTime: 3, EndTime: 5},
	}
	got := Render(actions, Options{Title: "Cuts", FrameRate: 30, Duration: 10})

	if !strings.Contains(got, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("first event line mismatch: %q", got)
	}
	if !strings.Contains(got, "002  AX       V     C        00:00:05:00 00:00:10:00 00:00:02:00 00:00:07:00") {
		t.Fatalf("second event line mismatch or bad record offset: %q", got)
	}
	if strings.Contains(got, "003  ") {
		t.Fatalf("unexpected third event: %q", got)
	}
}

func TestRender_AnnotatesOtherActions(t *testing.T) {
	actions := []edit.Action{
		{Type: edit.ActionMute, StartTime: 1, EndTime: 2},
		{Type: edit.ActionMosaic, StartTime: 0, EndTime: 1, Options: edit.MosaicOptions{X: 1, Y: 2, Width: 30, Height: 40, BlurStrength: 10}},
		{Type: edit.ActionTelop, StartTime: 0.5, EndTime: 1, Options: edit.TelopOptions{Text: "Hello", FontSize: 28, FontColor: "#FFFFFF"}},
	}
	got := Render(actions, Options{Title: "Notes", FrameRate: 30})

	for _, want := range []string{
		"* MUTE 00:00:01:00 00:00:02:00",
		"* MOSAIC 00:00:00:00 00:00:01:00  x=1 y=2 w=30 h=40 blur=10",
		`* TELOP 00:00:00:15 00:00:01:00  "Hello"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in EDL: %q", want, got)
		}
	}
}

func TestRender_DropFrame(t *testing.T) {
	got := Render(nil, Options{Title: "Drop", FrameRate: 29.97, Duration: 1})
	if !strings.Contains(got, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", got)
	}
}

func TestKeptSegments(t *testing.T) {
	tests := []struct {
		name     string
		actions  []edit.Action
		duration float64
		want     []Segment
	}{
		{
			name:     "cut at start",
			actions:  []edit.Action{{Type: edit.ActionCut, StartTime: 0, EndTime: 1}},
			duration: 3,
			want:     []Segment{{StartMs: 1000, EndMs: 3000}},
		},
		{
			name:     "cut covers everything",
			actions:  []edit.Action{{Type: edit.ActionCut, StartTime: 0, EndTime: 5}},
			duration: 3,
			want:     nil,
		},
		{
			name: "duration from last action",
			actions: []edit.Action{
				{Type: edit.ActionCut, StartTime: 1, EndTime: 2},
				{Type: edit.ActionMute, StartTime: 3, EndTime: 4},
			},
			want: []Segment{{StartMs: 0, EndMs: 1000}, {StartMs: 2000, EndMs: 4000}},
		},
		{
			name:     "zero length cut ignored",
			actions:  []edit.Action{{Type: edit.ActionCut, StartTime: 1, EndTime: 1}},
			duration: 2,
			want:     []Segment{{StartMs: 0, EndMs: 2000}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := KeptSegments(tc.actions, tc.duration)
			if len(got) != len(tc.want) {
				t.Fatalf("KeptSegments() = %+v, want %+v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("KeptSegments()[%d] = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		name string
		ms   int
		fps  int
		want string
	}{
		{name: "zero", ms: 0, fps: 30, want: "00:00:00:00"},
		{name: "fractional second", ms: 500, fps: 30, want: "00:00:00:15"},
		{name: "one hour", ms: 3600000, fps: 30, want: "01:00:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := msToTimecode(tc.ms, tc.fps)
			if got != tc.want {
				t.Fatalf("msToTimecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
			}
		})
	}
}
