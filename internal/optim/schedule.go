package optim

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Annealing methods.
const (
	HalfLife    = "half-life"
	StepDecay   = "step"
	Exponential = "exponential"
	Inverse     = "inverse"
)

// Errors returned by Schedule.Validate.
var (
	ErrUnknownSchedule = errors.New("unknown annealing method")
	ErrScheduleConfig  = errors.New("invalid annealing schedule")
)

// Schedule describes how the learning rate decays with the iteration count.
//
//	half-life:   lr * decay at t >= N/2 and again at t >= 3N/4 (N = NumIters)
//	step:        lr * decay^(t / Step)
//	exponential: lr * exp(-decay * t)
//	inverse:     lr / (1 + decay * t)
//
// A zero Decay selects the method default: 0.1, 0.5, 1e-4 and 0.01 respectively.
type Schedule struct {
	Method   string  `json:"method" yaml:"method"`
	Decay    float64 `json:"decay,omitempty" yaml:"decay,omitempty"`
	NumIters int     `json:"num_iters,omitempty" yaml:"num_iters,omitempty"`
	Step     int     `json:"step,omitempty" yaml:"step,omitempty"`
}

// Validate checks the method and its required fields.
func (s Schedule) Validate() error {
	switch s.Method {
	case HalfLife:
		if s.NumIters <= 0 {
			return fmt.Errorf("%w: %s requires num_iters", ErrScheduleConfig, s.Method)
		}
	case StepDecay:
		if s.Step <= 0 {
			return fmt.Errorf("%w: %s requires step", ErrScheduleConfig, s.Method)
		}
	case Exponential, Inverse:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSchedule, s.Method)
	}
	if s.Decay < 0 {
		return fmt.Errorf("%w: decay must be non-negative, got %g", ErrScheduleConfig, s.Decay)
	}
	return nil
}

func (s Schedule) decay() float64 {
	if s.Decay != 0 {
		return s.Decay
	}
	switch s.Method {
	case HalfLife:
		return 0.1
	case StepDecay:
		return 0.5
	case Exponential:
		return 1e-4
	default:
		return 0.01
	}
}

// LR returns the annealed learning rate at iteration t for base rate lr.
// The schedule must be valid.
func (s Schedule) LR(lr float32, t int) float32 {
	d := s.decay()
	base := float64(lr)
	switch s.Method {
	case HalfLife:
		k := 0
		if t >= s.NumIters/2 {
			k++
		}
		if t >= 3*s.NumIters/4 {
			k++
		}
		return float32(base * math.Pow(d, float64(k)))
	case StepDecay:
		return float32(base * math.Pow(d, float64(t/s.Step)))
	case Exponential:
		return float32(base * math.Exp(-d*float64(t)))
	default:
		return float32(base / (1 + d*float64(t)))
	}
}

// Annealer applies a Schedule to an optimizer's learning rate.
type Annealer struct {
	mu       sync.Mutex
	schedule Schedule
	base     float32
	opt      Optimizer
}

// NewAnnealer validates schedule and captures opt's current rate as the base.
func NewAnnealer(opt Optimizer, schedule Schedule) (*Annealer, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return &Annealer{schedule: schedule, base: opt.LR(), opt: opt}, nil
}

// Anneal sets the optimizer's rate for iteration t and returns it.
func (a *Annealer) Anneal(t int) float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	lr := a.schedule.LR(a.base, t)
	a.opt.SetLR(lr)
	return lr
}

// SetBase replaces the base rate the schedule decays from.
func (a *Annealer) SetBase(lr float32) {
	a.mu.Lock()
	a.base = lr
	a.mu.Unlock()
}

// Base returns the undecayed learning rate.
func (a *Annealer) Base() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.base
}
