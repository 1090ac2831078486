package backend

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/untoldecay/inshallah/internal/model"
)

// RunStreamed starts argv[0] with argv[1:] as arguments, feeds stdin,
// streams combined stdout+stderr line-by-line to args.OnLine (and,
// when args.TeePath is set, appends each line there too), and returns
// the process's exit code. Grounded on internal/hooks's runHook: Start,
// then race Wait() against ctx.Done(), killing the process on
// cancellation via the platform-specific helpers in procrun_unix.go /
// procrun_windows.go.
func RunStreamed(ctx context.Context, argv []string, stdin string, args RunArgs) (int, error) {
	if len(argv) == 0 {
		return -1, model.InvalidArgument("backend: empty argv")
	}

	// #nosec G204 -- argv[0] is a fixed vendor CLI name resolved by this package, not user input.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = args.Cwd
	cmd.Stdin = newStringReader(stdin)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, model.BackendSpawnError(err)
	}
	cmd.Stderr = cmd.Stdout // merge; vendor CLIs interleave progress on both

	var tee *os.File
	if args.TeePath != "" {
		tee, err = os.OpenFile(args.TeePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return -1, model.IOError(err)
		}
		defer tee.Close()
	}

	if err := cmd.Start(); err != nil {
		return -1, model.BackendSpawnError(err)
	}

	scanErrCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if args.OnLine != nil {
				args.OnLine(line)
			}
			if tee != nil {
				_, _ = tee.WriteString(line + "\n")
			}
		}
		scanErrCh <- scanner.Err()
	}()

	waitCh := make(chan error, 1)
	go func() {
		// Wait closes the stdout pipe, so it must follow the last read.
		scanErr := <-scanErrCh
		waitCh <- cmd.Wait()
		scanErrCh <- scanErr
	}()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitCh
		<-scanErrCh
		return -1, ctx.Err()
	case err := <-waitCh:
		<-scanErrCh
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, model.BackendRunError(err)
		}
		return 0, nil
	}
}

func newStringReader(s string) io.Reader {
	return &stringReaderOnce{s: s}
}

// stringReaderOnce avoids importing strings just for NewReader in a
// file already using several other stdlib packages.
type stringReaderOnce struct {
	s   string
	off int
}

func (r *stringReaderOnce) Read(p []byte) (int, error) {
	if r.off >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.off:])
	r.off += n
	return n, nil
}
