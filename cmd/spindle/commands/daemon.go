package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiritengine/spindle/internal/config"
)

// daemonCmd groups lifecycle control of the spindled daemon process.
//
// Grounded on internal/session/daemon.go's StartDaemon: the same
// Setsid-detached-background-process-plus-wait-for-socket idiom, adapted
// from self-exec-with-a-hidden-subcommand (adaf re-invokes itself) to
// locating the separate `spindled` binary on PATH, since spindle and
// spindled are two distinct commands rather than one binary wearing two
// hats.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start, stop, or check the spindled daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start spindled in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startDaemon()
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running spindled",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopDaemon()
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether spindled is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, alive := readDaemonPID()
		if !alive {
			fmt.Println("spindled is not running")
			return nil
		}
		fmt.Printf("spindled is running (pid %d)\n", pid)
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

func pidFilePath() string {
	return filepath.Join(config.BaseDir(), "spindled.pid")
}

func socketPath() string {
	return filepath.Join(config.BaseDir(), "spindle.sock")
}

func readDaemonPID() (pid int, alive bool) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(string(data))
	if err != nil {
		return 0, false
	}
	if err := syscall.Kill(pid, 0); err != nil {
		return pid, false
	}
	return pid, true
}

func startDaemon() error {
	if _, alive := readDaemonPID(); alive {
		return errors.New("spindled is already running")
	}

	binPath, err := exec.LookPath("spindled")
	if err != nil {
		return fmt.Errorf("spindled binary not found on PATH: %w", err)
	}

	logPath := config.LogPath()
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer logFile.Close()

	sock := socketPath()
	os.Remove(sock)

	cmd := exec.Command(binPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting spindled: %w", err)
	}

	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(sock); err == nil {
			fmt.Printf("spindled started (pid %d)\n", cmd.Process.Pid)
			return nil
		}
		select {
		case waitErr := <-waitCh:
			return fmt.Errorf("spindled exited before creating its socket: %v (see %s)", waitErr, logPath)
		default:
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("spindled did not create its socket within 10 seconds (see %s)", logPath)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func stopDaemon() error {
	pid, alive := readDaemonPID()
	if !alive {
		return errors.New("spindled is not running")
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling spindled: %w", err)
	}
	os.Remove(pidFilePath())
	fmt.Println("spindled stopped")
	return nil
}
