// workdeck is a terminal workspace manager: split panes, draggable tabs and
// long-lived shell sessions that survive being moved around the layout.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/workdeckhq/workdeck/internal/config"
	"github.com/workdeckhq/workdeck/internal/layout"
	"github.com/workdeckhq/workdeck/internal/sessionhost"
	workterm "github.com/workdeckhq/workdeck/internal/term"
	"github.com/workdeckhq/workdeck/internal/ui"
	"github.com/workdeckhq/workdeck/internal/workspace"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	envName := flag.String("env", "main", "Name of the initial environment")
	shell := flag.String("shell", "", "Shell for terminal tabs (overrides config)")
	flag.Usage = func() {
		fmt.Println("Usage: workdeck [options]")
		fmt.Println()
		fmt.Println("Terminal workspace manager with split panes and draggable tabs.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("workdeck %s\n", Version)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: workdeck must run in a terminal")
		os.Exit(1)
	}
	if termenv.ColorProfile() == termenv.Ascii {
		fmt.Fprintln(os.Stderr, "Warning: terminal reports no color support")
	}

	cfgDir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *shell != "" {
		cfg.Shell = *shell
	}

	setupLogging(cfg, cfgDir)

	engine := workterm.NewEngine(cfg.Shell)
	registry := sessionhost.NewRegistry(engine)
	defer registry.Close()

	controller := workspace.NewController(registry)
	env := controller.NewEnvironment(*envName)

	model := ui.NewModel(controller, registry, cfg)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseAllMotion())

	// Session output arrives on reader goroutines; hand it to the event
	// loop as a repaint request.
	registry.OnOutput = func(key sessionhost.Key, p []byte) {
		program.Send(ui.SessionOutputMsg{})
	}

	// One shell tab so the workspace is immediately usable.
	if _, err := controller.OpenTab(env.ID, env.Tree.ID, layout.TabKindTerminal, "shell", ""); err != nil {
		log.Printf("[MAIN] Initial tab failed: %v", err)
	}

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging routes the standard logger to a rotated file. Logging to
// stdout would corrupt the TUI, so without a file target logs are dropped.
func setupLogging(cfg config.Config, cfgDir string) {
	path := cfg.LogFile
	if path == "" {
		path = filepath.Join(cfgDir, "workdeck.log")
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   true,
	})
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("[MAIN] workdeck %s starting", Version)
}
