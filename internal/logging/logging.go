package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file inside the log directory.
const FileName = "staytrack.log"

// Init installs the global logger with two sinks: stderr and a rotating file
// under LOGS_FOLDER (default <exe dir>/logs).
func Init(verbose bool) error {
	// 0. Load .env from the binary directory so LOGS_FOLDER is visible before config.Load.
	exePath, err := os.Executable()
	if err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		if err == nil {
			logDir = filepath.Join(filepath.Dir(exePath), "logs")
		} else {
			logDir = "logs"
		}
	}
	return InitWithDir(verbose, logDir, os.Stderr)
}

// InitWithDir is Init with an explicit log directory and console stream.
func InitWithDir(verbose bool, logDir string, console *os.File) error {
	// 1. Level
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// 2. Console writer, coloured only on a terminal
	isTerminal := isatty.IsTerminal(console.Fd()) || isatty.IsCygwinTerminal(console.Fd())
	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	// 3. Rotating file writer; the directory must be writable
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	probe := filepath.Join(logDir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0644); err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", logDir, err)
	}
	_ = os.Remove(probe)

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     365, // days
		Compress:   true,
	}

	// 4. Combine
	multi := zerolog.MultiLevelWriter(io.Writer(consoleWriter), fileWriter)
	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger()
	return nil
}
