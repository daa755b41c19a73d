package flow

import "github.com/zapflowhq/zapflow/model"

// Resolve picks the next transition for a fired event: among the transitions
// leaving originId whose event matches exactly, the one with the smallest
// order wins. The second return is false when no transition matches, which
// the interpreter treats as a fatal dead end, never a silent drop.
func Resolve(f *Flow, originId string, event string) (*model.Transition, bool) {
	candidates := f.Transitions(originId)
	var best *model.Transition
	for i := range candidates {
		t := &candidates[i]
		if t.Event != event {
			continue
		}
		if best == nil || t.Order < best.Order {
			best = t
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}
