package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/takopi-bot/takopi/internal/domain"
	"github.com/takopi-bot/takopi/internal/subprocess"
	"github.com/takopi-bot/takopi/internal/telemetry"
)

// ArgvBuilder renders an engine's argv for one invocation. stdin is the
// prompt text to write to the child's stdin and then close, or "" if the
// prompt is passed as an argv element instead (argv already contains it).
type ArgvBuilder func(prompt string, resume *domain.ResumeToken) (argv []string, stdin string)

// ProcessRunner is the shared driver behind every subprocess-backed
// engine: it owns the Started/Completed bracketing, per-resume locking,
// process spawn/teardown, and line-by-line translation, leaving only the
// engine-specific argv shape and JSONL dialect to the caller.
type ProcessRunner struct {
	id          domain.EngineID
	workDir     string
	buildArgv   ArgvBuilder
	newTranslator func() Translator
	resolve     func(text string) *domain.ResumeToken
	locks       *LockPool
}

func NewProcessRunner(
	id domain.EngineID,
	workDir string,
	buildArgv ArgvBuilder,
	newTranslator func() Translator,
	resolve func(text string) *domain.ResumeToken,
) *ProcessRunner {
	return &ProcessRunner{
		id:            id,
		workDir:       workDir,
		buildArgv:     buildArgv,
		newTranslator: newTranslator,
		resolve:       resolve,
		locks:         NewLockPool(),
	}
}

func (p *ProcessRunner) EngineID() domain.EngineID { return p.id }

func (p *ProcessRunner) ResolveResume(text string) *domain.ResumeToken {
	return p.resolve(text)
}

func (p *ProcessRunner) Run(ctx context.Context, prompt string, resume *domain.ResumeToken) <-chan domain.Event {
	out := make(chan domain.Event, EventQueueCapacity)
	go p.run(ctx, prompt, resume, out)
	return out
}

func (p *ProcessRunner) run(ctx context.Context, prompt string, resume *domain.ResumeToken, out chan<- domain.Event) {
	defer close(out)

	factory := domain.NewEventFactory(p.id)
	if resume != nil {
		factory.SetResumeToken(resume)
	}

	lockKey := ""
	if resume != nil {
		lockKey = resume.Raw
	}
	release, err := p.locks.Acquire(ctx, lockKey)
	if err != nil {
		out <- factory.Started(resume != nil)
		out <- factory.Completed(false, "", "cancelled")
		return
	}
	defer release()
	telemetry.ResumeLockAcquiredTotal.WithLabelValues(string(p.id)).Inc()

	if ctx.Err() != nil {
		out <- factory.Started(resume != nil)
		out <- factory.Completed(false, "", "cancelled")
		return
	}

	out <- factory.Started(resume != nil)

	argv, stdinBody := p.buildArgv(prompt, resume)
	child, stdin, stdout, err := subprocess.Spawn(argv, nil, p.workDir)
	if err != nil {
		out <- factory.Completed(false, "", fmt.Sprintf("spawn failed: %v", err))
		return
	}
	defer child.EnsureTerminated()

	cancelled := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			close(cancelled)
			child.Cancel()
		case <-child.Done():
		}
	}()

	if stdinBody != "" {
		go func() {
			_, _ = io.WriteString(stdin, stdinBody)
			_ = stdin.Close()
		}()
	} else {
		_ = stdin.Close()
	}

	translator := p.newTranslator()
	lr := subprocess.NewLineReader(stdout)

	var translateErr error
readLoop:
	for {
		line, rerr := lr.Next()
		if rerr != nil {
			break readLoop
		}
		if line.Text == "" {
			continue
		}
		events, terr := translator.Translate(factory, []byte(line.Text))
		if terr != nil {
			translateErr = terr
			child.Cancel()
			break readLoop
		}
		for _, ev := range events {
			out <- ev
		}
	}

	status := child.Wait()
	<-watchDone

	select {
	case <-cancelled:
		out <- factory.Completed(false, "", "cancelled")
		return
	default:
	}

	if translateErr != nil {
		out <- factory.Completed(false, "", translateErr.Error())
		return
	}

	if status.Code != 0 {
		for _, ev := range nonZeroExitEvents(factory, status.Code, child.StderrTail()) {
			out <- ev
		}
		return
	}

	out <- successCompleted(factory, translator.Answer())
}
