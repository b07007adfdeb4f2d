package gpio

import "errors"

// FakeInput is a test double that returns scripted levels.
type FakeInput struct {
	// Levels contains scripted raw levels. Each call to Read consumes the next one.
	// When exhausted, the last level repeats.
	Levels []bool

	index int

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Reads counts calls to Read.
	Reads int
}

// NewFakeInput creates a FakeInput with the given levels.
func NewFakeInput(levels ...bool) *FakeInput {
	return &FakeInput{Levels: levels}
}

// Read returns the next scripted level.
func (f *FakeInput) Read() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return level, nil
}

// SetLevel replaces the script with a single constant level.
func (f *FakeInput) SetLevel(high bool) {
	f.Levels = []bool{high}
	f.index = 0
}

// Reset rewinds to the first scripted level.
func (f *FakeInput) Reset() {
	f.index = 0
	f.Reads = 0
	f.ReadError = nil
}

// FakeOutput records every level written.
type FakeOutput struct {
	// Writes contains every level passed to Set, in order.
	Writes []bool

	// SetError, if set, will be returned by Set and the level is not stored.
	SetError error

	level bool
}

// NewFakeOutput creates a FakeOutput starting low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.level = high
	f.Writes = append(f.Writes, high)
	return nil
}

// Get returns the last level written.
func (f *FakeOutput) Get() bool {
	return f.level
}

// Toggles counts level changes across the recorded writes, starting from low.
func (f *FakeOutput) Toggles() int {
	n := 0
	prev := false
	for _, w := range f.Writes {
		if w != prev {
			n++
		}
		prev = w
	}
	return n
}

// Reset clears recorded writes.
func (f *FakeOutput) Reset() {
	f.Writes = nil
	f.SetError = nil
	f.level = false
}
