package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/born-ml/neuralnet/internal/serialization"
)

// inspectCmd prints the header and tensor table of a .born file.
func inspectCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	skip := fs.Bool("skip-checksum", false, "do not verify the data checksum")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect takes exactly one file", errUsage)
	}

	sd, h, err := serialization.ReadFile(fs.Arg(0), serialization.ReaderOptions{SkipChecksum: *skip})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "format:   v%d\n", h.FormatVersion)
	fmt.Fprintf(stdout, "producer: %s\n", h.Producer)
	if h.ModelType != "" {
		fmt.Fprintf(stdout, "model:    %s\n", h.ModelType)
	}
	if !h.CreatedAt.IsZero() {
		fmt.Fprintf(stdout, "created:  %s\n", h.CreatedAt.Format(time.RFC3339))
	}
	if cp := h.Checkpoint; cp != nil {
		fmt.Fprintf(stdout, "run:      %s\n", cp.RunID)
		fmt.Fprintf(stdout, "epoch:    %d (step %d, loss %.6g)\n", cp.Epoch, cp.Step, cp.Loss)
		if cp.Optimizer != "" {
			fmt.Fprintf(stdout, "optim:    %s (lr %g)\n", cp.Optimizer, cp.LR)
		}
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nNAME\tDTYPE\tSHAPE\tBYTES")
	for _, m := range h.Tensors {
		if _, ok := sd[m.Name]; !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\n", m.Name, m.DType, m.Shape, m.Size)
	}
	return tw.Flush()
}
