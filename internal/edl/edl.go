// Package edl renders an edit session as a CMX3600 edit decision list so
// the cut list can be checked in an NLE before the server-side export.
package edl

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

type Options struct {
	Title     string
	FrameRate float64
	// Duration of the source in seconds. When zero, the end of the last
	// action is used.
	Duration float64
}

// Segment is a kept range of the source, in milliseconds.
type Segment struct {
	StartMs int
	EndMs   int
}

// Render produces an EDL whose events are the source ranges that survive
// the session's cut actions. Other actions are listed as comments.
func Render(actions []edit.Action, opts Options) string {
	fps := int(math.Round(opts.FrameRate))
	if fps <= 0 {
		fps = 30
	}
	isDropFrame := math.Abs(opts.FrameRate-29.97) < 0.01 || math.Abs(opts.FrameRate-59.94) < 0.01

	title := SanitizeName(opts.Title, 80)
	if title == "" {
		title = "Untitled"
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	for i, seg := range KeptSegments(actions, opts.Duration) {
		srcIn := msToTimecode(seg.StartMs, fps)
		srcOut := msToTimecode(seg.EndMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		durationMs := seg.EndMs - seg.StartMs
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", title),
		)
		recordOffsetMs += durationMs
	}

	var notes []string
	for _, a := range actions {
		if a.Type == edit.ActionCut {
			continue
		}
		notes = append(notes, annotate(a, fps))
	}
	if len(notes) > 0 {
		lines = append(lines, "")
		lines = append(lines, notes...)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// KeptSegments returns the complement of the merged cut ranges over
// [0, duration].
func KeptSegments(actions []edit.Action, duration float64) []Segment {
	var cuts []Segment
	endMs := secondsToMs(duration)
	for _, a := range actions {
		if e := secondsToMs(a.EndTime); duration <= 0 && e > endMs {
			endMs = e
		}
		if a.Type != edit.ActionCut || a.EndTime <= a.StartTime {
			continue
		}
		cuts = append(cuts, Segment{StartMs: secondsToMs(a.StartTime), EndMs: secondsToMs(a.EndTime)})
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].StartMs < cuts[j].StartMs })

	var kept []Segment
	cursor := 0
	for _, c := range cuts {
		if c.StartMs > cursor {
			kept = append(kept, Segment{StartMs: cursor, EndMs: min(c.StartMs, endMs)})
		}
		if c.EndMs > cursor {
			cursor = c.EndMs
		}
		if cursor >= endMs {
			break
		}
	}
	if cursor < endMs {
		kept = append(kept, Segment{StartMs: cursor, EndMs: endMs})
	}

	out := kept[:0]
	for _, s := range kept {
		if s.EndMs > s.StartMs {
			out = append(out, s)
		}
	}
	return out
}

func annotate(a edit.Action, fps int) string {
	span := fmt.Sprintf("%s %s", msToTimecode(secondsToMs(a.StartTime), fps), msToTimecode(secondsToMs(a.EndTime), fps))
	switch o := a.Options.(type) {
	case edit.MosaicOptions:
		return fmt.Sprintf("* MOSAIC %s  x=%d y=%d w=%d h=%d blur=%d", span, o.X, o.Y, o.Width, o.Height, o.BlurStrength)
	case edit.TelopOptions:
		return fmt.Sprintf("* TELOP %s  %q", span, SanitizeName(o.Text, 60))
	}
	return fmt.Sprintf("* %s %s", strings.ToUpper(string(a.Type)), span)
}

func secondsToMs(s float64) int {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
