package stability

// TestHistory is the recorded history of one test suite or test case.
type TestHistory struct {
	Name       string
	StackTrace string
	// Publish marks test cases that regression reports may name.
	Publish  bool
	Children []string
	Results  *CircularHistory
}

// FlakiestChild returns the id of the child with the highest flakiness.
// Ties keep the first child in order. ok is false when no child is known.
func FlakiestChild(parent *TestHistory, lookup map[string]*TestHistory) (id string, flakiness int, ok bool) {
	for _, childID := range parent.Children {
		child, found := lookup[childID]
		if !found || child.Results == nil {
			continue
		}
		f := child.Results.Flakiness()
		if !ok || f > flakiness {
			id, flakiness, ok = childID, f, true
		}
	}
	return id, flakiness, ok
}

// LeastStableChild returns the id of the child with the lowest stability.
// Ties keep the first child in order. ok is false when no child is known.
func LeastStableChild(parent *TestHistory, lookup map[string]*TestHistory) (id string, stability int, ok bool) {
	for _, childID := range parent.Children {
		child, found := lookup[childID]
		if !found || child.Results == nil {
			continue
		}
		s := child.Results.Stability()
		if !ok || s < stability {
			id, stability, ok = childID, s, true
		}
	}
	return id, stability, ok
}
