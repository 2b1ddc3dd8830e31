package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"marianchat/pkg/logger"
)

// abortRecord is the machine-readable companion to a crash dump. Operators
// and supervisors read these out of <db>/state/abort.
type abortRecord struct {
	Time      string `json:"time"`
	Reason    string `json:"reason"`
	Pid       int    `json:"pid"`
	CrashPath string `json:"crash_path,omitempty"`
}

// Abort logs a fatal error, writes crash diagnostics next to the store,
// and exits with status 2. delaySeconds (default 10) gives log sinks and
// supervisors time to pick the dump up before the process disappears.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 10
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)

	dumpPath, derr := writeDiagnostics(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Error("crash_dump_written", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}

	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(time.Second)
	}
	os.Exit(2)
}

// writeDiagnostics writes a human-readable crash dump (reason, environ,
// all goroutine stacks) plus an abort record pointing at it. Returns the
// dump path.
func writeDiagnostics(dbPath, reason string, cause error) (string, error) {
	crashDir := "./crash"
	abortDir := "./abort"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
		abortDir = filepath.Join(dbPath, "state", "abort")
	}
	for _, d := range []string{crashDir, abortDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return "", fmt.Errorf("create %s: %w", d, err)
		}
	}

	now := time.Now()
	stamp := now.UnixNano()

	var dump []byte
	dump = fmt.Appendf(dump, "time: %s\n", now.UTC().Format(time.RFC3339))
	dump = fmt.Appendf(dump, "reason: %s\n", reason)
	dump = fmt.Appendf(dump, "error: %v\n", cause)
	dump = fmt.Appendf(dump, "\n--- environ ---\n")
	for _, e := range os.Environ() {
		dump = fmt.Appendf(dump, "%s\n", e)
	}
	dump = fmt.Appendf(dump, "\n--- goroutine stacks ---\n")
	stacks := make([]byte, 1<<20)
	n := runtime.Stack(stacks, true)
	dump = append(dump, stacks[:n]...)

	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", stamp))
	if err := atomicWrite(dumpPath, dump); err != nil {
		return "", err
	}

	rec := abortRecord{
		Time:      now.UTC().Format(time.RFC3339),
		Reason:    reason,
		Pid:       os.Getpid(),
		CrashPath: dumpPath,
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return dumpPath, fmt.Errorf("encode abort record: %w", err)
	}
	recPath := filepath.Join(abortDir, fmt.Sprintf("abort-%d.json", stamp))
	if err := atomicWrite(recPath, body); err != nil {
		return dumpPath, err
	}
	return dumpPath, nil
}

// atomicWrite lands data at path via a same-directory temp file and
// rename, so readers never see a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// SIGPIPE additionally dumps all goroutine stacks to the log before
// cancelling, which is usually the only trace a broken log pipe leaves.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("signal_received", "signal", s.String(), "stacks", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}
