package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is a state of a pipeline invocation.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageCompiling  Stage = "compiling"
	StageStagingAsm Stage = "staging-asm"
	StageAssembling Stage = "assembling"
	StageStagingELF Stage = "staging-elf"
	StageRunning    Stage = "running"
	StageAnalyzing  Stage = "analyzing"
	StageFailed     Stage = "failed"
)

// Title returns the stage name for display, e.g. "Staging Asm".
func (s Stage) Title() string {
	// Casers are stateful; build one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "-", " "))
}

// StageObserver is called on every stage transition.
// It runs on the caller's goroutine and must not call back into the pipeline.
type StageObserver func(from, to Stage)

// tracker walks one invocation through the stage machine.
type tracker struct {
	observe StageObserver
	current Stage
}

func (p *Pipeline) track() *tracker {
	return &tracker{observe: p.observer, current: StageIdle}
}

func (t *tracker) enter(s Stage) {
	from := t.current
	t.current = s
	if t.observe != nil {
		t.observe(from, s)
	}
}

// fail moves to the terminal Failed state.
func (t *tracker) fail() {
	t.enter(StageFailed)
}

// done returns to Idle.
func (t *tracker) done() {
	t.enter(StageIdle)
}
