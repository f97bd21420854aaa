package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fentz26/cadence/internal/config"
	"github.com/fentz26/cadence/internal/tui"
	"github.com/spf13/cobra"
)

const daemonStartupTimeout = 5 * time.Second

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the schedule dashboard",
	Long:  "Opens the terminal dashboard. A background daemon is started first if none answers on --api.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isDaemonRunning() {
			if err := spawnDaemon(); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
		}
		return tui.New(apiAddr).Run()
	},
}

func isDaemonRunning() bool {
	health, err := CheckHealth(&http.Client{Timeout: 500 * time.Millisecond})
	return err == nil && health.OK
}

// spawnDaemon re-executes this binary detached, with output appended to
// daemon.log in the config dir, and waits for /health to answer.
func spawnDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	logPath := filepath.Join(config.Dir(), "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()

	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	proc := exec.Command(exe, args...)
	proc.Stdout, proc.Stderr = logFile, logFile
	configureDaemonProc(proc)
	if err := proc.Start(); err != nil {
		return err
	}
	// The daemon outlives us; don't leave a zombie entry behind while the TUI runs.
	go proc.Wait()

	fmt.Fprintf(os.Stderr, "Starting cadence daemon (log: %s)", logPath)
	deadline := time.Now().Add(daemonStartupTimeout)
	for time.Now().Before(deadline) {
		if isDaemonRunning() {
			fmt.Fprintln(os.Stderr)
			return nil
		}
		fmt.Fprint(os.Stderr, ".")
		time.Sleep(250 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr)
	return fmt.Errorf("no answer at %s after %s, see %s", apiAddr, daemonStartupTimeout, logPath)
}
