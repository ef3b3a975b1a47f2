package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/neuralnet/internal/checkpoint"
	"github.com/born-ml/neuralnet/internal/config"
	"github.com/born-ml/neuralnet/internal/data"
	"github.com/born-ml/neuralnet/internal/log"
	"github.com/born-ml/neuralnet/internal/monitor"
	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
	"github.com/born-ml/neuralnet/internal/tensor"
	"github.com/born-ml/neuralnet/internal/trainer"
)

const crossEntropy = "softmax_cross_entropy"

func trainCmd(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML or JSON)")
	out := fs.String("out", "", "write the trained model to this .born file")
	showProgress := fs.Bool("progress", false, "print a progress line per epoch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("%w: train requires -config", errUsage)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.Log.Level})
	logger := log.WithComponent("cli")
	logger.Info().
		Str("event", "config.loaded").
		Str("path", *configPath).
		Msg("loaded configuration from file")

	var progress io.Writer
	if *showProgress {
		progress = stderr
	}
	return train(ctx, cfg, trainOptions{
		ConfigPath: *configPath,
		Out:        *out,
		Progress:   progress,
	})
}

type trainOptions struct {
	ConfigPath string // watched for reloads and used to resolve relative paths
	Out        string
	Progress   io.Writer
}

// resolve interprets relative paths against the config file's directory.
func (o trainOptions) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || o.ConfigPath == "" {
		return path
	}
	return filepath.Join(filepath.Dir(o.ConfigPath), path)
}

// train fits the configured MLP to the configured dataset.
func train(ctx context.Context, cfg config.Config, opts trainOptions) error {
	logger := log.WithComponent("cli")

	ds, err := data.Load(opts.resolve(cfg.Data.Path), *cfg.Data.LabelColumn)
	if err != nil {
		return err
	}
	features, labels := ds[0], ds[1]
	if features.Dims() != 2 {
		return fmt.Errorf("%w: features must be [samples, features], got %v", data.ErrDataset, features.Shape())
	}

	loss, err := nn.LossByName(cfg.Training.Loss)
	if err != nil {
		return err
	}
	outputs := 1
	metrics := map[string]trainer.Metric{}
	if cfg.Training.Loss == crossEntropy {
		if outputs, err = classCount(labels); err != nil {
			return err
		}
		metrics["accuracy"] = nn.Accuracy
	}

	seed := cfg.Training.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: weight init only
	model, err := nn.NewMLP(features.Shape()[1], cfg.Training.Hidden, outputs, cfg.Training.Activation, rng)
	if err != nil {
		return err
	}
	opt, err := optim.New(cfg.Training.Optimizer.Kind, model.Parameters(), cfg.Training.Optimizer.Optim())
	if err != nil {
		return err
	}

	dopts := data.OptionsFromConfig(cfg)
	dopts.Progress = opts.Progress
	dm, err := data.New(ds, nil, dopts)
	if err != nil {
		return err
	}

	tr := &trainer.Trainer{
		Model:           model,
		Loss:            loss,
		Optimizer:       opt,
		Data:            dm,
		Metrics:         metrics,
		CheckpointEvery: cfg.Checkpoint.Every,
	}
	if cfg.Checkpoint.Dir != "" {
		tr.Checkpoints = &checkpoint.Manager{Dir: opts.resolve(cfg.Checkpoint.Dir), Keep: cfg.Checkpoint.Keep}
	}

	var step int64
	if e := cfg.Training.CheckpointEpoch; e > 0 {
		st, err := tr.Resume(e)
		if err != nil {
			return fmt.Errorf("resume from epoch %d: %w", e, err)
		}
		step = st.Step
		logger.Info().
			Str("event", "trainer.resumed").
			Str("run_id", st.RunID).
			Int("epoch", st.Epoch).
			Int64("step", st.Step).
			Msg("resumed from checkpoint")
	}
	if tr.RunID == "" {
		tr.RunID = uuid.NewString()
	}

	// Annealing starts from the restored learning rate.
	if a := cfg.Training.Anneal; a != nil {
		if tr.Annealer, err = optim.NewAnnealer(opt, *a); err != nil {
			return err
		}
	}

	mon, err := monitor.New(ctx, monitor.Options{RunID: tr.RunID, DB: opts.resolve(cfg.Monitor.DB)})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mon.Close(); cerr != nil {
			logger.Warn().Err(cerr).Str("event", "monitor.close_failed").Msg("failed to close monitor")
		}
	}()
	mon.SetIteration(int(step))
	tr.Monitor = mon

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if opts.ConfigPath != "" {
		holder := config.NewHolder(cfg, opts.ConfigPath)
		if err := holder.Watch(gctx); err != nil {
			logger.Warn().Err(err).Str("event", "config.watch_failed").Msg("config hot reload disabled")
		} else {
			tr.Config = holder
		}
	}

	if addr := cfg.Monitor.Listen; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mon.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("event", "monitor.listen").Str("addr", addr).Msg("serving training metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("monitor server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var res trainer.Result
	g.Go(func() error {
		defer cancel()
		var err error
		res, err = tr.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.Out != "" {
		_, err := checkpoint.Save(opts.Out, model, nil, checkpoint.State{
			RunID: res.RunID,
			Epoch: dm.Epoch(),
			Step:  step + int64(res.Iterations),
			Loss:  res.Loss,
			Metadata: map[string]string{
				"activation": cfg.Training.Activation,
				"loss":       cfg.Training.Loss,
				"outputs":    strconv.Itoa(outputs),
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// classCount returns 1 + the largest label, checking labels are class indices.
func classCount(labels *tensor.Tensor) (int, error) {
	maxLabel := -1
	for i, v := range labels.Data() {
		if v < 0 || v != float32(int(v)) {
			return 0, fmt.Errorf("%w: label %d is %g, want a class index", data.ErrDataset, i, v)
		}
		maxLabel = max(maxLabel, int(v))
	}
	if maxLabel < 1 {
		return 0, fmt.Errorf("%w: classification needs at least two classes", data.ErrDataset)
	}
	return maxLabel + 1, nil
}
