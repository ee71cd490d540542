package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"wanworker/internal/config"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/worker/generator"
)

// TaskSpec is the CLI-level description of a generation task.
type TaskSpec struct {
	CLITask       string
	CheckpointDir string
	Extra         []string
}

// ResolveTask maps a caller-facing task name (case-insensitive) to the
// tool's task id, checkpoint and flags.
func ResolveTask(task string, wan config.Wan, hasImage bool) (TaskSpec, error) {
	lower := strings.ToLower(task)

	switch {
	case lower == "ti2v-5b":
		return TaskSpec{
			CLITask:       "ti2v-5B",
			CheckpointDir: wan.CheckpointTI2V5B(),
			Extra:         []string{"--offload_model", "True", "--convert_model_dtype", "--t5_cpu"},
		}, nil

	case strings.HasPrefix(lower, "i2v"):
		if !hasImage {
			return TaskSpec{}, errors.New(errors.CodeMissingImage, "image_b64 is required for Image→Video tasks.").
				WithOp("invoker.resolve").
				WithField("task", task)
		}
		return TaskSpec{
			CLITask:       "i2v-A14B",
			CheckpointDir: wan.CheckpointI2VA14B(),
		}, nil

	default:
		return TaskSpec{}, errors.Newf(errors.CodeUnsupportedTask,
			"Unsupported task '%s'. Try 'ti2v-5B' or 'i2v-A14B'.", task).
			WithOp("invoker.resolve")
	}
}

// Invocation is everything needed to build one command line.
type Invocation struct {
	Spec      TaskSpec
	Size      string
	Prompt    string
	ImagePath string
	OutputDir string
}

// Invoker runs the generation tool and checks its exit status.
type Invoker struct {
	wan    config.Wan
	runner generator.Runner
	log    *logger.Logger
	output io.Writer
}

// NewInvoker streams the child's stdout and stderr to output, or to
// os.Stderr when output is nil.
func NewInvoker(wan config.Wan, runner generator.Runner, log *logger.Logger, output io.Writer) *Invoker {
	if log == nil {
		log = logger.NewDefault()
	}
	if output == nil {
		output = os.Stderr
	}
	return &Invoker{wan: wan, runner: runner, log: log.WithComponent("invoker"), output: output}
}

// Command builds the command line for inv.
func (i *Invoker) Command(inv Invocation) generator.Command {
	args := []string{
		i.wan.Script(),
		"--task", inv.Spec.CLITask,
		"--size", inv.Size,
		"--ckpt_dir", inv.Spec.CheckpointDir,
		"--prompt", inv.Prompt,
	}
	args = append(args, inv.Spec.Extra...)
	if inv.ImagePath != "" {
		args = append(args, "--image", inv.ImagePath)
	}

	return generator.Command{
		Path:   i.wan.Python,
		Args:   args,
		Dir:    i.wan.Dir,
		Env:    map[string]string{config.OutputDirEnv: inv.OutputDir},
		Stdout: i.output,
		Stderr: i.output,
	}
}

// Run blocks until the tool exits. A non-zero exit is a
// GENERATION_FAILED error carrying the exit code.
func (i *Invoker) Run(ctx context.Context, inv Invocation) error {
	cmd := i.Command(inv)
	log := i.log.FromContext(ctx)

	log.Info("running WAN",
		"cmd", cmd.Path+" "+strings.Join(cmd.Args, " "),
		"output_dir", inv.OutputDir,
	)

	code, err := i.runner.Run(ctx, cmd)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeGenerationFailed, "invoker.run",
			fmt.Sprintf("WAN CLI could not be started: %v", err))
	}
	if code != 0 {
		log.Error("WAN exited with error", "exit_code", code)
		return errors.Newf(errors.CodeGenerationFailed, "WAN CLI failed (%d). Check logs.", code).
			WithOp("invoker.run").
			WithField("exit_code", code)
	}
	return nil
}
