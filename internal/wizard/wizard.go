// Package wizard implements the profile creation step machine: a fixed step
// order, per-step readiness gates, resume-from-draft, and exit hooks that
// let the session start a media family's upload batch exactly when the user
// navigates away from the step owning that family.
package wizard

import (
	"errors"
	"sync"

	"github.com/stagehandhq/stagehand/internal/media"
)

// Step is one named wizard step. Values match the lastStage strings
// persisted in draft documents.
type Step string

const (
	StepHeroImage Step = media.StageHeroImage
	StepStageName Step = media.StageStageName
	StepBio       Step = media.StageBio
	StepVideos    Step = media.StageVideos
	StepTracks    Step = media.StageTracks
	StepTechRider Step = media.StageTechRider
)

// Order is the fixed step sequence.
var Order = []Step{StepHeroImage, StepStageName, StepBio, StepVideos, StepTracks, StepTechRider}

// HeroMode is the sub-mode of the hero image step. Adjust is entered after
// an image is picked, for brightness and position tuning.
type HeroMode string

const (
	HeroModeUpload HeroMode = "upload"
	HeroModeAdjust HeroMode = "adjust"
)

var (
	ErrStepNotReady = errors.New("current step is not ready to advance")
	ErrAtFirstStep  = errors.New("already at the first step")
	ErrAtLastStep   = errors.New("already at the last step")
)

// ReadinessFunc reports whether the step's content allows advancing.
type ReadinessFunc func() bool

// ExitFunc is called after the machine leaves a step, in either direction.
type ExitFunc func(left Step)

// Machine is the step state machine for one wizard session. Readiness
// predicates and the exit hook are injected at construction; the machine
// itself knows nothing about media or uploads.
type Machine struct {
	mu       sync.Mutex
	idx      int
	heroMode HeroMode
	ready    map[Step]ReadinessFunc
	onExit   ExitFunc
}

func NewMachine(ready map[Step]ReadinessFunc, onExit ExitFunc) *Machine {
	return &Machine{
		heroMode: HeroModeUpload,
		ready:    ready,
		onExit:   onExit,
	}
}

// Current returns the active step.
func (m *Machine) Current() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Order[m.idx]
}

// HeroMode returns the hero step's active sub-mode.
func (m *Machine) HeroMode() HeroMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heroMode
}

// EnterHeroAdjust switches the hero step into its adjust sub-mode.
func (m *Machine) EnterHeroAdjust() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if Order[m.idx] == StepHeroImage {
		m.heroMode = HeroModeAdjust
	}
}

// Advance moves to the next step when the current step's readiness
// predicate holds.
func (m *Machine) Advance() (Step, error) {
	m.mu.Lock()
	cur := Order[m.idx]
	if m.idx == len(Order)-1 {
		m.mu.Unlock()
		return cur, ErrAtLastStep
	}
	if f, ok := m.ready[cur]; ok && !f() {
		m.mu.Unlock()
		return cur, ErrStepNotReady
	}
	m.idx++
	next := Order[m.idx]
	m.mu.Unlock()

	m.fireExit(cur)
	return next, nil
}

// Retreat moves back unconditionally, with one exception: leaving the hero
// adjust sub-mode returns to the hero upload sub-mode, not the previous step.
func (m *Machine) Retreat() (Step, error) {
	m.mu.Lock()
	cur := Order[m.idx]
	if cur == StepHeroImage && m.heroMode == HeroModeAdjust {
		m.heroMode = HeroModeUpload
		m.mu.Unlock()
		return cur, nil
	}
	if m.idx == 0 {
		m.mu.Unlock()
		return cur, ErrAtFirstStep
	}
	m.idx--
	prev := Order[m.idx]
	m.mu.Unlock()

	m.fireExit(cur)
	return prev, nil
}

// Resume jumps directly to the draft's last saved stage. An unknown stage
// lands on the first step.
func (m *Machine) Resume(lastStage string) Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx = 0
	for i, s := range Order {
		if string(s) == lastStage {
			m.idx = i
			break
		}
	}
	if Order[m.idx] == StepHeroImage {
		m.heroMode = HeroModeUpload
	}
	return Order[m.idx]
}

func (m *Machine) fireExit(left Step) {
	if m.onExit != nil {
		m.onExit(left)
	}
}

// FamilyForStep maps a step to the media family it owns, if any.
func FamilyForStep(s Step) (media.Family, bool) {
	switch s {
	case StepHeroImage:
		return media.FamilyHero, true
	case StepTracks:
		return media.FamilyTracks, true
	case StepVideos:
		return media.FamilyVideos, true
	default:
		return "", false
	}
}
