// Package stability keeps a bounded pass/fail history per test and derives
// flakiness and stability percentages from it.
package stability

import (
	"fmt"
	"strconv"
	"strings"
)

// Result is the outcome of one test in one build.
type Result struct {
	BuildNumber int
	Passed      bool
}

// CircularHistory holds the most recent results of a test, oldest first.
// Once the capacity is reached, adding a result drops the oldest one.
type CircularHistory struct {
	data []Result
	head int
	size int
}

// NewCircularHistory creates an empty history holding at most maxSize results.
func NewCircularHistory(maxSize int) *CircularHistory {
	if maxSize < 0 {
		maxSize = 0
	}
	return &CircularHistory{data: make([]Result, maxSize)}
}

// Add appends a result, evicting the oldest one when the history is full.
func (h *CircularHistory) Add(buildNumber int, passed bool) {
	h.AddResult(Result{BuildNumber: buildNumber, Passed: passed})
}

// AddResult appends r, evicting the oldest result when the history is full.
func (h *CircularHistory) AddResult(r Result) {
	if len(h.data) == 0 {
		return
	}
	tail := (h.head + h.size) % len(h.data)
	h.data[tail] = r
	if h.size == len(h.data) {
		h.head = (h.head + 1) % len(h.data)
	} else {
		h.size++
	}
}

// AddAll appends results in order.
func (h *CircularHistory) AddAll(results []Result) {
	for _, r := range results {
		h.AddResult(r)
	}
}

// Resize changes the capacity to maxSize, keeping the newest results that fit.
func (h *CircularHistory) Resize(maxSize int) {
	if maxSize == len(h.data) {
		return
	}
	results := h.Results()
	*h = *NewCircularHistory(maxSize)
	h.AddAll(results)
}

// Results returns a copy of the stored results with the earliest at index 0.
func (h *CircularHistory) Results() []Result {
	out := make([]Result, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.data[(h.head+i)%len(h.data)]
	}
	return out
}

// Size is the number of stored results.
func (h *CircularHistory) Size() int { return h.size }

// Cap is the maximum number of results the history can hold.
func (h *CircularHistory) Cap() int { return len(h.data) }

// IsEmpty reports whether no result has been recorded.
func (h *CircularHistory) IsEmpty() bool { return h.size == 0 }

// Last returns the most recent result.
func (h *CircularHistory) Last() (Result, bool) {
	if h.size == 0 {
		return Result{}, false
	}
	return h.data[(h.head+h.size-1)%len(h.data)], true
}

// Failed counts the failed results in the history.
func (h *CircularHistory) Failed() int {
	failed := 0
	for _, r := range h.Results() {
		if !r.Passed {
			failed++
		}
	}
	return failed
}

// Stability is the percentage of passed results; an empty history is 100% stable.
func (h *CircularHistory) Stability() int {
	size := h.size
	if size == 0 {
		return 100
	}
	return 100 * (size - h.Failed()) / size
}

// Flakiness is the percentage of consecutive result pairs whose outcome changed.
func (h *CircularHistory) Flakiness() int {
	if h.size <= 1 {
		return 0
	}
	changes := 0
	results := h.Results()
	for i := 1; i < len(results); i++ {
		if results[i].Passed != results[i-1].Passed {
			changes++
		}
	}
	return 100 * changes / (h.size - 1)
}

// IsMostRecentRegressed reports whether the latest result failed right after a pass.
func (h *CircularHistory) IsMostRecentRegressed() bool {
	if h.size < 2 {
		return false
	}
	results := h.Results()
	prev, last := results[len(results)-2], results[len(results)-1]
	return prev.Passed && !last.Passed
}

// AllPassed reports whether the history holds no failure.
func (h *CircularHistory) AllPassed() bool {
	return h.Failed() == 0
}

// Description summarizes the history for display.
func Description(h *CircularHistory) string {
	if h == nil || h.Stability() == 100 {
		return "No known failures. Flakiness 0%, Stability 100%"
	}
	return fmt.Sprintf("Failed %d times in the last %d runs. Flakiness: %d%%, Stability: %d%%",
		h.Failed(), h.Size(), h.Flakiness(), h.Stability())
}

// MarshalText encodes the history as "<cap>:<build>;<1|0>,<build>;<1|0>,...",
// oldest result first.
func (h *CircularHistory) MarshalText() ([]byte, error) {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(h.data)))
	b.WriteByte(':')
	for i, r := range h.Results() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(r.BuildNumber))
		if r.Passed {
			b.WriteString(";1")
		} else {
			b.WriteString(";0")
		}
	}
	return []byte(b.String()), nil
}

// UnmarshalText decodes the format written by MarshalText.
func (h *CircularHistory) UnmarshalText(text []byte) error {
	capPart, dataPart, ok := strings.Cut(string(text), ":")
	if !ok {
		return fmt.Errorf("invalid history encoding %q: missing capacity", text)
	}
	maxSize, err := strconv.Atoi(capPart)
	if err != nil || maxSize < 0 {
		return fmt.Errorf("invalid history capacity %q", capPart)
	}

	decoded := NewCircularHistory(maxSize)
	if dataPart != "" {
		for _, entry := range strings.Split(dataPart, ",") {
			buildPart, passedPart, ok := strings.Cut(entry, ";")
			if !ok {
				return fmt.Errorf("invalid history entry %q", entry)
			}
			buildNumber, err := strconv.Atoi(buildPart)
			if err != nil {
				return fmt.Errorf("invalid build number in history entry %q: %w", entry, err)
			}
			switch passedPart {
			case "1":
				decoded.Add(buildNumber, true)
			case "0":
				decoded.Add(buildNumber, false)
			default:
				return fmt.Errorf("invalid result flag in history entry %q", entry)
			}
		}
	}
	*h = *decoded
	return nil
}

// MarshalBinary lets encoding/gob store the compact text form.
func (h *CircularHistory) MarshalBinary() ([]byte, error) { return h.MarshalText() }

// UnmarshalBinary is the gob counterpart of MarshalBinary.
func (h *CircularHistory) UnmarshalBinary(data []byte) error { return h.UnmarshalText(data) }
