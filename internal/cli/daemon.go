package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/status"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot as a background process",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background bot process",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bot process and pacing status",
	RunE:  runStatus,
}

func pidFilePath(stateDir string) string {
	return filepath.Join(stateDir, "hivemind.pid")
}

func writePIDFile(path string) error {
	if pid, running := readPID(path); running {
		return fmt.Errorf("bot already running with PID %d", pid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// readPID returns the recorded PID and whether that process is still alive.
// A stale PID file is treated as not running.
func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	// Signal 0 probes for existence without disturbing the process.
	if err := syscall.Kill(pid, 0); err != nil {
		return 0, false
	}
	return pid, true
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if pid, running := readPID(pidFilePath(cfg.Global.StateDir)); running {
		fmt.Printf("Bot is already running (PID %d)\n", pid)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(cfg.Global.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logPath := filepath.Join(cfg.Global.StateDir, "hivemind.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, "run")
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("start background process: %w", err)
	}

	fmt.Printf("%s Bot started (PID %d)\n", color.GreenString("✓"), child.Process.Pid)
	fmt.Printf("Logs: %s\n", logPath)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pidPath := pidFilePath(cfg.Global.StateDir)
	pid, running := readPID(pidPath)
	if !running {
		fmt.Println("Bot is not running.")
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	fmt.Printf("Sent SIGTERM to PID %d, waiting for shutdown...\n", pid)

	deadline := time.Now().Add(time.Duration(cfg.Global.DrainTimeout+10) * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); err != nil {
			fmt.Printf("%s Bot stopped.\n", color.GreenString("✓"))
			os.Remove(pidPath)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println(color.YellowString("Graceful shutdown timed out, sending SIGKILL"))
	_ = syscall.Kill(pid, syscall.SIGKILL)
	os.Remove(pidPath)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	printHeader("Status")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pid, running := readPID(pidFilePath(cfg.Global.StateDir))
	if running {
		fmt.Printf("Process: %s (PID %d)\n", color.GreenString("running"), pid)
	} else {
		fmt.Printf("Process: %s\n", color.RedString("stopped"))
	}
	fmt.Printf("Database: %s\n", cfg.Global.DatabasePath)
	fmt.Printf("Enabled platforms: %s\n", strings.Join(cfg.EnabledPlatforms(), ", "))

	for _, name := range cfg.EnabledPlatforms() {
		cp, found, err := status.Load(status.Path(cfg.Global.StateDir, name))
		if err != nil {
			fmt.Printf("  %-8s checkpoint unreadable: %v\n", name, err)
			continue
		}
		if !found {
			fmt.Printf("  %-8s no checkpoint yet\n", name)
			continue
		}
		last := "never"
		if cp.LastActionTime != nil {
			last = cp.LastActionTime.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  %-8s last action %s, interval %d-%ds\n",
			name, last, cp.CurrentMinInterval, cp.CurrentMaxInterval)
	}
	return nil
}
