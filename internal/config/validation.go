package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
	"github.com/rs/zerolog"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

// validator accumulates field errors.
type validator struct {
	errs []FieldError
}

func (v *validator) add(field, message string, value any) {
	v.errs = append(v.errs, FieldError{Field: field, Value: value, Message: message})
}

func (v *validator) positive(field string, value int) {
	if value <= 0 {
		v.add(field, "must be positive", value)
	}
}

func (v *validator) nonNegative(field string, value int) {
	if value < 0 {
		v.add(field, "must not be negative", value)
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.add(field, fmt.Sprintf("must be one of %v", allowed), value)
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: slices.Clone(v.errs)}
}

// Validate checks cfg and reports every offending field at once.
func Validate(cfg Config) error {
	v := &validator{}

	v.positive("training.batch_size", cfg.Training.BatchSize)
	v.positive("training.n_epochs", cfg.Training.NEpochs)
	v.nonNegative("training.checkpoint_epoch", cfg.Training.CheckpointEpoch)
	if cfg.Training.NEpochs > 0 && cfg.Training.CheckpointEpoch >= cfg.Training.NEpochs && !cfg.Data.Infinite {
		v.add("training.checkpoint_epoch", "must be less than n_epochs", cfg.Training.CheckpointEpoch)
	}
	for i, h := range cfg.Training.Hidden {
		v.positive(fmt.Sprintf("training.hidden[%d]", i), h)
	}
	v.oneOf("training.activation", cfg.Training.Activation, nn.ActivationNames())
	v.oneOf("training.loss", cfg.Training.Loss, []string{"mse", "softmax_cross_entropy"})
	v.oneOf("training.optimizer.kind", cfg.Training.Optimizer.Kind, optim.Kinds)
	if cfg.Training.Optimizer.LR < 0 {
		v.add("training.optimizer.lr", "must not be negative", cfg.Training.Optimizer.LR)
	}
	if a := cfg.Training.Anneal; a != nil {
		if err := a.Validate(); err != nil {
			v.add("training.anneal", err.Error(), a.Method)
		}
	}

	v.positive("data.num_cached", cfg.Data.NumCached)
	v.nonNegative("checkpoint.every", cfg.Checkpoint.Every)
	v.nonNegative("checkpoint.keep", cfg.Checkpoint.Keep)
	if cfg.Checkpoint.Every > 0 && cfg.Checkpoint.Dir == "" {
		v.add("checkpoint.dir", "required when checkpoint.every is set", cfg.Checkpoint.Dir)
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		v.add("log.level", "unknown level", cfg.Log.Level)
	}

	return v.err()
}
