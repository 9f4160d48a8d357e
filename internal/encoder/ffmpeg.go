package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const (
	maxLogLines  = 100 // diagnostic lines retained per process
	hintChanSize = 16
)

// FFmpegLauncher launches ffmpeg processes.
type FFmpegLauncher struct {
	BinPath string // defaults to "ffmpeg"
	Logger  *slog.Logger
}

// Launch implements the Launcher interface. The returned handle is valid
// once the process has started; a binary that cannot be spawned fails
// immediately.
func (l *FFmpegLauncher) Launch(ctx context.Context, params Params) (Handle, error) {
	binPath := l.BinPath
	if binPath == "" {
		binPath = "ffmpeg"
	}

	cmd := exec.Command(binPath, params.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binPath, err)
	}

	logger := l.Logger.With("name", params.Name, "pid", cmd.Process.Pid)
	logger.Info("Encoder process started")

	proc := &process{
		cmd:    cmd,
		stdin:  stdin,
		doneC:  make(chan ExitStatus, 1),
		hintC:  make(chan string, hintChanSize),
		logger: logger,
	}

	go proc.scanLogs(stderr)
	go proc.wait()

	return proc, nil
}

// process is a running ffmpeg process.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	doneC  chan ExitStatus
	hintC  chan string
	logger *slog.Logger

	mu       sync.Mutex
	logLines [][]byte
	closed   bool
}

// Write implements the Handle interface.
func (p *process) Write(frame []byte) error {
	if _, err := p.stdin.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Stop implements the Handle interface.
func (p *process) Stop(ctx context.Context, grace time.Duration) error {
	p.closeInput()

	var graceC <-chan time.Time
	if grace > 0 {
		t := time.NewTimer(grace)
		defer t.Stop()
		graceC = t.C
	}

	select {
	case <-p.doneC:
		return nil
	case <-graceC:
		p.logger.Warn("Encoder did not exit gracefully, killing process")
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill: %w", err)
		}
		<-p.doneC
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done implements the Handle interface.
func (p *process) Done() <-chan ExitStatus {
	return p.doneC
}

// Hints implements the Handle interface.
func (p *process) Hints() <-chan string {
	return p.hintC
}

// Logs implements the Handle interface.
func (p *process) Logs() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	logs := make([][]byte, len(p.logLines))
	copy(logs, p.logLines)
	return logs
}

func (p *process) closeInput() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	if err := p.stdin.Close(); err != nil {
		p.logger.Debug("Error closing encoder input", "err", err)
	}
}

func (p *process) wait() {
	err := p.cmd.Wait()

	status := ExitStatus{ExitCode: p.cmd.ProcessState.ExitCode()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		status.Err = err
	}

	p.logger.Info("Encoder process exited", "exit_code", status.ExitCode)

	p.doneC <- status
	close(p.doneC)
}

// scanLogs consumes the encoder's diagnostic output line by line, keeping
// the most recent lines and forwarding heuristic hints.
func (p *process) scanLogs(r io.Reader) {
	defer close(p.hintC)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)

		p.mu.Lock()
		p.logLines = append(p.logLines, line)
		if len(p.logLines) > maxLogLines {
			p.logLines = p.logLines[1:]
		}
		p.mu.Unlock()

		if hint := hintFromLogLine(line); hint != "" {
			select {
			case p.hintC <- hint:
			default:
				// Hints are best-effort only.
			}
		}
	}
}
