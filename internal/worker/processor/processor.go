package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"wanworker/internal/config"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/worker/generator"
)

const (
	StatusCompleted = "COMPLETED"
	StatusError     = "ERROR"
)

// Job is one unit of work as handed over by a runtime.
type Job struct {
	ID    string
	Input map[string]any
}

// Result is the job output. On success exactly one of VideoURL and
// VideoBase64 is set; on failure only Error is.
type Result struct {
	Status      string `json:"status"`
	Task        string `json:"task,omitempty"`
	Size        string `json:"size,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	VideoBase64 string `json:"video_base64,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ToMap renders the result as the loosely-typed mapping runtimes return.
func (r Result) ToMap() map[string]any {
	if r.Status != StatusCompleted {
		return map[string]any{"status": r.Status, "error": r.Error}
	}
	m := map[string]any{"status": r.Status, "task": r.Task, "size": r.Size}
	if r.VideoURL != "" {
		m["video_url"] = r.VideoURL
	} else {
		m["video_base64"] = r.VideoBase64
	}
	return m
}

// ErrorResult builds the uniform failure output for err.
func ErrorResult(err error) Result {
	return Result{Status: StatusError, Error: errors.PublicMessage(err)}
}

type Deps struct {
	Wan        config.Wan
	Runner     generator.Runner
	Workspaces *Workspaces
	Delivery   *Delivery
	Progress   ProgressReporter
	Log        *logger.Logger
	// ToolOutput receives the generation tool's stdout and stderr.
	ToolOutput io.Writer
}

type Processor struct {
	wan        config.Wan
	workspaces *Workspaces
	invoker    *Invoker
	delivery   *Delivery
	progress   ProgressReporter
	log        *logger.Logger
	now        func() time.Time
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	runner := d.Runner
	if runner == nil {
		runner = generator.NewExecRunner()
	}
	workspaces := d.Workspaces
	if workspaces == nil {
		workspaces = NewWorkspaces("", DecodeVerifier{})
	}
	delivery := d.Delivery
	if delivery == nil {
		delivery = NewDelivery(nil, URLPolicy{})
	}
	progress := d.Progress
	if progress == nil {
		progress = NewLogReporter(log)
	}

	return &Processor{
		wan:        d.Wan,
		workspaces: workspaces,
		invoker:    NewInvoker(d.Wan, runner, log, d.ToolOutput),
		delivery:   delivery,
		progress:   progress,
		log:        log.WithComponent("processor"),
		now:        time.Now,
	}
}

// Handle runs job to completion. It never returns an error: every
// failure, including a panic, becomes an ERROR result.
func (p *Processor) Handle(ctx context.Context, job Job) (res Result) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	ctx = logger.ContextWithJobID(ctx, job.ID)
	log := p.log.FromContext(ctx)
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf(errors.CodeInternal, "internal error: %v", r).WithOp("processor.handle")
			log.Error("job panicked", "panic", fmt.Sprint(r), "stack", err.StackTrace())
			res = ErrorResult(err)
		}
	}()

	res, err := p.run(ctx, job)
	if err != nil {
		p.logFailure(log, err, time.Since(start))
		return ErrorResult(err)
	}

	log.Info("job completed",
		"delivery", deliveryKind(res),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (p *Processor) run(ctx context.Context, job Job) (Result, error) {
	req, err := ParseRequest(job.Input)
	if err != nil {
		return Result{}, err
	}
	// The ID becomes a directory name under the output root.
	if p.wan.PerJobOutput {
		if err := ValidateJobID(job.ID); err != nil {
			return Result{}, err
		}
	}
	log := p.log.FromContext(ctx).WithTask(req.Task, req.Size)

	p.report(ctx, job.ID, PctStarting, MsgStarting)

	var ws *Workspace
	defer func() { ws.Release() }()

	if req.HasImage() {
		p.report(ctx, job.ID, PctDecoding, MsgDecoding)
		ws, err = p.workspaces.Acquire(req.ImageB64)
		if err != nil {
			return Result{}, err
		}
		log.Debug("input image decoded", "path", ws.ImagePath)
	}

	p.report(ctx, job.ID, PctPreparing, MsgPreparing)
	p.report(ctx, job.ID, PctGenerating, MsgGenerating)

	inv := Invocation{Size: req.Size, Prompt: req.Prompt, OutputDir: p.wan.OutputRoot}
	if ws != nil {
		inv.ImagePath = ws.ImagePath
	}
	inv.Spec, err = ResolveTask(req.Task, p.wan, inv.ImagePath != "")
	if err != nil {
		return Result{}, err
	}

	var notBefore time.Time
	if p.wan.PerJobOutput {
		inv.OutputDir = filepath.Join(p.wan.OutputRoot, job.ID)
		if err := os.MkdirAll(inv.OutputDir, 0o755); err != nil {
			return Result{}, errors.Wrap(err, "processor.output_dir", "failed to create output directory: "+err.Error())
		}
		// Some filesystems keep mtimes at one-second resolution.
		notBefore = p.now().Truncate(time.Second)
	}

	if err := p.invoker.Run(ctx, inv); err != nil {
		return Result{}, err
	}

	artifact, err := ResolveLatest(inv.OutputDir, p.wan.Dir, notBefore)
	if err != nil {
		return Result{}, err
	}
	log.Info("artifact resolved", "path", artifact)

	if p.delivery.UsesStorage() {
		p.report(ctx, job.ID, PctDelivering, MsgUploading)
	} else {
		p.report(ctx, job.ID, PctDelivering, MsgEncoding)
	}
	delivered, err := p.delivery.Deliver(ctx, artifact)
	if err != nil {
		return Result{}, err
	}

	p.report(ctx, job.ID, PctFinishing, MsgFinishing)

	return Result{
		Status:      StatusCompleted,
		Task:        req.Task,
		Size:        req.Size,
		VideoURL:    delivered.URL,
		VideoBase64: delivered.Base64,
	}, nil
}

// report shields the pipeline from misbehaving reporters.
func (p *Processor) report(ctx context.Context, jobID string, pct int, msg string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.FromContext(ctx).Warn("progress reporter panicked", "pct", pct, "panic", fmt.Sprint(r))
		}
	}()
	p.progress.Progress(ctx, jobID, pct, msg)
}

func (p *Processor) logFailure(log *logger.Logger, err error, elapsed time.Duration) {
	args := []any{"duration_ms", elapsed.Milliseconds()}

	var e *errors.Error
	if errors.As(err, &e) {
		args = append(args, "code", string(e.Code), "op", e.Op, "message", e.Message)
		for k, v := range e.Fields {
			args = append(args, k, v)
		}
		if e.Err != nil {
			args = append(args, "cause", e.Err.Error())
		}
	} else {
		args = append(args, "error", err.Error())
	}

	log.Error("job failed", args...)
}

func deliveryKind(r Result) string {
	if r.VideoURL != "" {
		return "url"
	}
	return "inline"
}
