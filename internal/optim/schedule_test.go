package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
)

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       optim.Schedule
		wantErr error
	}{
		{"half-life ok", optim.Schedule{Method: optim.HalfLife, NumIters: 100}, nil},
		{"half-life missing iters", optim.Schedule{Method: optim.HalfLife}, optim.ErrScheduleConfig},
		{"step ok", optim.Schedule{Method: optim.StepDecay, Step: 10}, nil},
		{"step missing step", optim.Schedule{Method: optim.StepDecay}, optim.ErrScheduleConfig},
		{"exponential", optim.Schedule{Method: optim.Exponential}, nil},
		{"inverse", optim.Schedule{Method: optim.Inverse}, nil},
		{"negative decay", optim.Schedule{Method: optim.Inverse, Decay: -1}, optim.ErrScheduleConfig},
		{"unknown", optim.Schedule{Method: "cosine"}, optim.ErrUnknownSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSchedule_LR(t *testing.T) {
	half := optim.Schedule{Method: optim.HalfLife, NumIters: 100}
	assert.InDelta(t, 1, half.LR(1, 49), 1e-7)
	assert.InDelta(t, 0.1, half.LR(1, 50), 1e-7)
	assert.InDelta(t, 0.1, half.LR(1, 74), 1e-7)
	assert.InDelta(t, 0.01, half.LR(1, 75), 1e-7)
	assert.InDelta(t, 0.01, half.LR(1, 1000), 1e-7)

	step := optim.Schedule{Method: optim.StepDecay, Step: 10}
	assert.InDelta(t, 1, step.LR(1, 9), 1e-7)
	assert.InDelta(t, 0.5, step.LR(1, 10), 1e-7)
	assert.InDelta(t, 0.25, step.LR(1, 25), 1e-7)

	exp := optim.Schedule{Method: optim.Exponential}
	assert.InDelta(t, math.Exp(-1e-4*1000), exp.LR(1, 1000), 1e-6)

	inv := optim.Schedule{Method: optim.Inverse, Decay: 0.5}
	assert.InDelta(t, 0.5, inv.LR(1, 2), 1e-7)
}

func TestAnnealer(t *testing.T) {
	p, _ := scalarParam(1)
	opt := optim.NewSGD([]*nn.Parameter{p}, optim.SGDConfig{LR: 0.2})

	_, err := optim.NewAnnealer(opt, optim.Schedule{Method: "nope"})
	require.Error(t, err)

	a, err := optim.NewAnnealer(opt, optim.Schedule{Method: optim.StepDecay, Step: 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, a.Base(), 1e-7)

	assert.InDelta(t, 0.1, a.Anneal(5), 1e-7)
	assert.InDelta(t, 0.1, opt.LR(), 1e-7)

	a.SetBase(1)
	assert.InDelta(t, 0.25, a.Anneal(10), 1e-7)
}
