package analysis

import (
	"sort"
	"strconv"
)

// Aggregate merges per-segment results, in segment order, into one Result.
// Both unit slices are sorted ascending by StartY with ties keeping segment
// order; exercise numbers are made unique, preserving model-assigned ones
// where possible; optional fields keep a stable present-but-null shape.
// The merge is commutative with respect to segment completion order as long
// as parts arrive indexed by segment (callers pass them in segment order).
func Aggregate(parts []Result) Result {
	out := Result{
		Lessons:   []Unit{},
		Exercises: []Unit{},
	}
	for _, p := range parts {
		out.Lessons = append(out.Lessons, p.Lessons...)
		out.Exercises = append(out.Exercises, p.Exercises...)
		if out.Subject == "" {
			out.Subject = p.Subject
		}
	}

	sort.SliceStable(out.Lessons, func(i, j int) bool {
		return out.Lessons[i].Position.StartY < out.Lessons[j].Position.StartY
	})
	sort.SliceStable(out.Exercises, func(i, j int) bool {
		return out.Exercises[i].Position.StartY < out.Exercises[j].Position.StartY
	})

	renumber(out.Exercises)

	for i := range out.Lessons {
		normalizeUnit(&out.Lessons[i], KindLesson, out.Subject)
	}
	for i := range out.Exercises {
		normalizeUnit(&out.Exercises[i], KindExercise, out.Subject)
	}

	if len(out.Exercises) > 0 {
		out.Type = TypeExercises
	} else {
		out.Type = TypeStudyMaterial
	}
	return out
}

// renumber assigns fallback numbers only to exercises whose model-assigned
// number is missing or collides with an earlier one. Everything else keeps
// its number verbatim.
func renumber(exercises []Unit) {
	seen := make(map[string]bool, len(exercises))
	next := 1
	for i := range exercises {
		n := exercises[i].Number
		if n != "" && !seen[n] {
			seen[n] = true
			continue
		}
		for seen[strconv.Itoa(next)] {
			next++
		}
		exercises[i].Number = strconv.Itoa(next)
		seen[exercises[i].Number] = true
	}
}

// normalizeUnit fills the discriminator and subject and keeps positions
// ordered so downstream consumers see one shape regardless of which agent
// produced the unit.
func normalizeUnit(u *Unit, kind Kind, subject string) {
	if u.Kind == "" {
		u.Kind = kind
	}
	if u.Subject == "" {
		u.Subject = subject
	}
	if u.InputType == "" {
		u.InputType = "text"
	}
	if u.Position.EndY < u.Position.StartY {
		u.Position.StartY, u.Position.EndY = u.Position.EndY, u.Position.StartY
	}
}
