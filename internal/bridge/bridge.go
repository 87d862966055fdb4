// Package bridge implements the External Handler Bridge ("Mode A",
// spec §4.6): a worker goroutine that owns a persistent child process
// speaking newline-delimited JSON envelopes on its standard input and
// output, forwarding commands that have no in-process route.
//
// Process lifecycle (exec.CommandContext, SysProcAttr{Setpgid: true} so
// the whole process group dies with the child, stdin/stdout pipes, a
// cmd.Wait goroutine closing a done channel) is grounded on
// cklxx-elephant.ai's internal/infra/external/subprocess package; see
// DESIGN.md. Stop cancels the child's context and kills its process
// group directly instead of waiting for the worker loop to notice —
// the same "Stop signals, then kills, then waits on done" shape as
// that package's own Stop.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/internal/logx"
	"github.com/silkrt/silk/router"
	"github.com/silkrt/silk/value"
)

// maxLineBytes bounds a single child response line. Spec §6 recommends
// at least 2 MiB.
const maxLineBytes = 4 << 20

// ErrDisabled is returned by Submit once the bridge has detected a
// broken child and disabled itself (spec §4.6: "no restart policy in
// this version").
var ErrDisabled = errors.New("bridge: disabled after child failure")

// ErrQueueFull is returned by Submit when the worker's backlog is full.
// runtime.Runtime treats this the same as a bridge-level failure.
var ErrQueueFull = errors.New("bridge: job queue full")

// Config configures the External Handler Bridge (spec §6).
type Config struct {
	Enabled bool
	Argv    []string

	// QueueSize bounds the worker's job backlog. Defaults to 256.
	QueueSize int
}

// ReplyFunc delivers a serialized response script for the UI thread's
// Reply Pump to enqueue.
type ReplyFunc func(script string)

type job struct {
	id  string
	req envelope.InvokeRequest
}

// Bridge is the External Handler Bridge worker.
type Bridge struct {
	cfg   Config
	reply ReplyFunc

	jobs     chan job
	shutdown chan struct{}
	wg       sync.WaitGroup
	disabled atomic.Bool
	cancel   context.CancelFunc

	// cmd/stdin/stdout/done are set by the worker goroutine in
	// startChild but read by Stop (a different goroutine) to kill a
	// hung child immediately, so all access goes through mu.
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	done   chan struct{}
}

// New creates a Bridge. reply is called from the worker goroutine
// whenever a job completes (success, failure, or bridge-level error);
// it must not block.
func New(cfg Config, reply ReplyFunc) *Bridge {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Bridge{
		cfg:      cfg,
		reply:    reply,
		jobs:     make(chan job, cfg.QueueSize),
		shutdown: make(chan struct{}),
	}
}

// Enabled reports whether the bridge was configured on at construction.
// This does not change over the bridge's lifetime (only Disabled() does).
func (b *Bridge) Enabled() bool {
	return b.cfg.Enabled
}

// Disabled reports whether the bridge has self-disabled after detecting
// a broken child (spec §4.6).
func (b *Bridge) Disabled() bool {
	return b.disabled.Load()
}

// Start launches the worker goroutine. The child process itself is
// started lazily on first Submit (spec §4.6).
func (b *Bridge) Start(ctx context.Context) {
	if !b.cfg.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop signals the worker, kills any running child immediately (rather
// than waiting for the worker loop to next observe b.shutdown, which it
// cannot do while blocked writing to or reading from the child), and
// waits for the worker to exit.
func (b *Bridge) Stop() {
	if !b.cfg.Enabled {
		return
	}
	close(b.shutdown)
	if b.cancel != nil {
		b.cancel()
	}
	b.killChild()
	b.wg.Wait()
}

// Submit deep-copies req and hands it to the worker's FIFO queue. It
// never blocks the caller: if the backlog is full, it returns
// ErrQueueFull immediately so the UI-thread entry point can surface a
// bridge-unavailable response instead of stalling.
func (b *Bridge) Submit(req envelope.InvokeRequest) error {
	if b.disabled.Load() {
		return ErrDisabled
	}
	copied := envelope.InvokeRequest{
		Callback: req.Callback,
		Cmd:      req.Cmd,
		Args:     req.Args.Clone(),
	}
	j := job{id: uuid.NewString(), req: copied}
	select {
	case b.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()
	defer b.killChild()

	for {
		select {
		case <-b.shutdown:
			return
		case j := <-b.jobs:
			b.process(ctx, j)
		}
	}
}

func (b *Bridge) process(ctx context.Context, j job) {
	logger := logx.From(ctx)

	if b.disabled.Load() {
		b.reply(errorScript(j.req.Callback, "bridge disabled"))
		return
	}

	b.mu.Lock()
	started := b.cmd != nil
	b.mu.Unlock()
	if !started {
		if err := b.startChild(ctx); err != nil {
			logger.Error("bridge: failed to start child", "error", err, "job", j.id)
			b.disable()
			b.reply(errorScript(j.req.Callback, fmt.Sprintf("bridge unavailable: %v", err)))
			return
		}
	}

	// Snapshot the child's pipes under the lock: Stop can concurrently
	// kill the child and clear these fields out from under us.
	b.mu.Lock()
	stdin, stdout := b.stdin, b.stdout
	b.mu.Unlock()
	if stdin == nil || stdout == nil {
		logger.Error("bridge: child was killed before the job could be sent", "job", j.id)
		b.reply(errorScript(j.req.Callback, "bridge unavailable: child process closed"))
		return
	}

	line, err := envelope.SerializeInvoke(j.req)
	if err != nil {
		b.reply(errorScript(j.req.Callback, fmt.Sprintf("bridge encode failure: %v", err)))
		return
	}

	if _, err := io.WriteString(stdin, line+"\n"); err != nil {
		logger.Error("bridge: child stdin closed", "error", err, "job", j.id)
		b.disable()
		b.reply(errorScript(j.req.Callback, "bridge unavailable: child process closed"))
		return
	}

	if !stdout.Scan() {
		err := stdout.Err()
		logger.Error("bridge: child stdout closed", "error", err, "job", j.id)
		b.disable()
		b.reply(errorScript(j.req.Callback, "bridge unavailable: child process closed"))
		return
	}

	resp, err := decodeChildReply(stdout.Bytes())
	if err != nil {
		logger.Error("bridge: malformed child reply", "error", err, "job", j.id)
		b.reply(errorScript(j.req.Callback, fmt.Sprintf("bridge protocol error: %v", err)))
		return
	}

	var script string
	if resp.ok {
		script, err = router.BuildSuccessScript(j.req.Callback, resp.result)
	} else {
		script, err = router.BuildErrorScript(j.req.Callback, "", resp.errMsg)
	}
	if err != nil {
		logger.Error("bridge: failed to serialize response", "error", err, "job", j.id)
		return
	}
	b.reply(script)
}

func (b *Bridge) disable() {
	b.disabled.Store(true)
	b.killChild()
}

func (b *Bridge) startChild(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, b.cfg.Argv[0], b.cfg.Argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// exec.CommandContext's default Cancel only kills cmd.Process itself;
	// override it to kill the whole process group, same as killChild.
	cmd.Cancel = func() error {
		pgid, err := syscall.Getpgid(cmd.Process.Pid)
		if err == nil {
			return syscall.Kill(-pgid, syscall.SIGKILL)
		}
		return cmd.Process.Kill()
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	b.mu.Lock()
	b.cmd = cmd
	b.stdin = stdin
	b.stdout = scanner
	b.done = done
	b.mu.Unlock()
	return nil
}

// killChild signals the running child's process group to die immediately
// and waits for the reaper goroutine started in startChild to observe its
// exit, rather than calling cmd.Wait() itself (which startChild's own
// goroutine already owns, and which may only be called once). Safe to
// call concurrently from Stop and from the worker goroutine: only the
// caller that still sees b.cmd clears it.
func (b *Bridge) killChild() {
	b.mu.Lock()
	cmd := b.cmd
	done := b.done
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		_ = cmd.Process.Kill()
	}
	if done != nil {
		<-done
	}

	b.mu.Lock()
	if b.cmd == cmd {
		b.cmd = nil
		b.stdin = nil
		b.stdout = nil
		b.done = nil
	}
	b.mu.Unlock()
}

type childReply struct {
	ok     bool
	result value.Value
	errMsg string
}

func decodeChildReply(line []byte) (childReply, error) {
	var raw struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return childReply{}, fmt.Errorf("invalid JSON line: %w", err)
	}
	if raw.OK {
		var v value.Value
		if len(raw.Result) > 0 {
			if err := json.Unmarshal(raw.Result, &v); err != nil {
				return childReply{}, fmt.Errorf("invalid result: %w", err)
			}
		} else {
			v = value.Null()
		}
		return childReply{ok: true, result: v}, nil
	}

	msg := decodeErrorField(raw.Error)
	if msg == "" {
		return childReply{}, errors.New("missing error message")
	}
	return childReply{ok: false, errMsg: msg}, nil
}

// decodeErrorField accepts either a bare JSON string or a {message:...}
// object for the child's error field, matching the flexibility spec §9
// documents for error shapes on the JS side.
func decodeErrorField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}

func errorScript(callback int64, msg string) string {
	script, err := router.BuildErrorScript(callback, "", msg)
	if err != nil {
		return fmt.Sprintf(`window.__silk && window.__silk.__dispatch({"kind":"response","callback":%d,"ok":false,"error":{"message":%q}});`, callback, msg)
	}
	return script
}
