// Package main provides the blitz command line tool: it stages a batch of
// browser windows into a screen grid and fires prompt rounds into them
// through synthetic X11 input.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/blitz/pkg/config"
	"github.com/entrhq/blitz/pkg/fire"
	"github.com/entrhq/blitz/pkg/grid"
	"github.com/entrhq/blitz/pkg/logging"
	"github.com/entrhq/blitz/pkg/stage"
	"github.com/entrhq/blitz/pkg/target"
	"github.com/entrhq/blitz/pkg/windowctl"
)

const version = "0.1.0" // Version of the blitz tool

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "stage":
		err = runStage(args)
	case "fire":
		err = runFire(args)
	case "stop":
		err = runStop(args)
	case "status":
		err = runStatus(args)
	case "plan":
		err = runPlan(args)
	case "config":
		err = runConfig(args)
	case "version", "-version", "--version":
		fmt.Printf("blitz v%s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("unknown command %q", cmd)))
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "blitz - bulk browser window automation\n\n")
	fmt.Fprintf(os.Stderr, "Usage: blitz <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  stage    close the previous batch, launch and arrange a new one\n")
	fmt.Fprintf(os.Stderr, "  fire     run prompt rounds against the staged windows\n")
	fmt.Fprintf(os.Stderr, "  stop     request a running fire session to stop\n")
	fmt.Fprintf(os.Stderr, "  status   show the current batch and firing state\n")
	fmt.Fprintf(os.Stderr, "  plan     print the grid layout for the current configuration\n")
	fmt.Fprintf(os.Stderr, "  config   get, set, unset, or prune configuration keys\n")
	fmt.Fprintf(os.Stderr, "  version  print the version\n\n")
	fmt.Fprintf(os.Stderr, "Run 'blitz <command> -h' for command options.\n")
}

// defaultConfigDir is where the tier files, window list, and target history
// live unless overridden with -dir.
func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blitz"
	}
	return filepath.Join(home, ".blitz")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. onSignal, if
// non-nil, runs once before cancellation so commands can stop gracefully.
func signalContext(onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, statusStyle.Render("\nShutting down gracefully..."))
		if onSignal != nil {
			onSignal()
		}
		cancel()
	}()
	return ctx, cancel
}

func printStatus(s string) {
	fmt.Println(statusStyle.Render(s))
}

func runStage(args []string) error {
	fs := flag.NewFlagSet("stage", flag.ExitOnError)
	dir := fs.String("dir", defaultConfigDir(), "configuration directory")
	count := fs.Int("count", 0, "number of windows to stage (overrides STAGE_COUNT)")
	urls := fs.String("urls", "", "target URLs, comma separated or a file path (overrides DEFAULT_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := config.NewStore(*dir)
	if *count > 0 {
		if err := store.Set(config.User, "STAGE_COUNT", strconv.Itoa(*count)); err != nil {
			return err
		}
	}
	if *urls != "" {
		parsed := target.ParseURLs(*urls)
		if err := store.Set(config.User, "DEFAULT_URL", strings.Join(parsed, ", ")); err != nil {
			return err
		}
	}

	// A logging failure falls back to stderr; staging proceeds either way.
	log, _ := logging.NewLogger("stage")
	defer log.Close()

	ctx, cancel := signalContext(nil)
	defer cancel()

	ctl := windowctl.NewXDoTool(windowctl.DefaultBinary)
	controller := stage.New(store, ctl, stage.ExecLauncher{}, log, printStatus)

	staged, err := controller.Stage(ctx)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Staged %d windows", staged)))
	return nil
}

func runFire(args []string) error {
	fs := flag.NewFlagSet("fire", flag.ExitOnError)
	dir := fs.String("dir", defaultConfigDir(), "configuration directory")
	rounds := fs.Int("rounds", 0, "number of rounds (overrides FIRE_COUNT)")
	prompt := fs.String("prompt", "", "prompt text or a file of prompts (sets the live prompt list)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := config.NewStore(*dir)
	if *rounds > 0 {
		if err := store.Set(config.User, "FIRE_COUNT", strconv.Itoa(*rounds)); err != nil {
			return err
		}
	}
	if *prompt != "" {
		prompts := target.ParsePrompts(*prompt)
		if err := store.SetList(config.User, "PROMPT", prompts); err != nil {
			return err
		}
	}

	log, _ := logging.NewLogger("fire")
	defer log.Close()

	ctl := windowctl.NewXDoTool(windowctl.DefaultBinary)
	controller := fire.New(store, ctl, log, printStatus)

	ctx, cancel := signalContext(controller.Stop)
	defer cancel()

	sess, err := controller.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render("Firing session " + sess.ID))

	controller.Wait()
	if sess.Cancelled() {
		fmt.Println(statusStyle.Render("Stopped by request"))
	}
	return nil
}

// runStop clears the persisted firing flag. A fire session in another
// process observes the cleared flag at its next round boundary.
func runStop(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	dir := fs.String("dir", defaultConfigDir(), "configuration directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := config.NewStore(*dir)
	if err := store.Set(config.Batch, "FIRE_MODE", "N"); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Stop requested"))
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dir := fs.String("dir", defaultConfigDir(), "configuration directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := config.NewStore(*dir)
	cfg, err := store.LoadTiers()
	if err != nil {
		return err
	}

	firing := strings.EqualFold(cfg.StringOr("FIRE_MODE", "N"), "Y")
	staged := 0
	if listPath := cfg.StringOr("WINDOW_LIST", ""); listPath != "" {
		if handles, err := target.LoadWindowList(listPath); err == nil {
			staged = len(handles)
		}
	}

	fmt.Println(headerStyle.Render("blitz status"))
	printField("config dir", *dir)
	printField("staged windows", strconv.Itoa(staged))
	if firing {
		fmt.Printf("  %s %s\n", keyStyle.Render("firing:"), successStyle.Render("yes"))
	} else {
		printField("firing", "no")
	}
	printField("default url", cfg.StringOr("DEFAULT_URL", "(unset)"))
	return nil
}

func printField(key, value string) {
	fmt.Printf("  %s %s\n", keyStyle.Render(key+":"), valueStyle.Render(value))
}

// runPlan computes and prints the grid layout as YAML without touching any
// window, so an operator can preview placement before staging.
func runPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	dir := fs.String("dir", defaultConfigDir(), "configuration directory")
	count := fs.Int("count", 0, "number of windows (overrides STAGE_COUNT)")
	screenW := fs.Int("screen-width", 0, "screen width in pixels (default: query returns config or 1920)")
	screenH := fs.Int("screen-height", 0, "screen height in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := config.NewStore(*dir)
	cfg, err := store.LoadTiers()
	if err != nil {
		return err
	}

	params := grid.Params{
		Count:        *count,
		ScreenWidth:  *screenW,
		ScreenHeight: *screenH,
	}
	if params.Count <= 0 {
		if params.Count, err = cfg.Int("STAGE_COUNT"); err != nil {
			return err
		}
	}
	if params.CellWidth, err = cfg.Int("DEFAULT_WIDTH"); err != nil {
		return err
	}
	if params.CellHeight, err = cfg.Int("DEFAULT_HEIGHT"); err != nil {
		return err
	}
	if params.MaxOverlapPct, err = cfg.Int("MAX_OVERLAP_PERCENT"); err != nil {
		return err
	}
	if params.ScreenWidth <= 0 || params.ScreenHeight <= 0 {
		ctx, cancel := signalContext(nil)
		defer cancel()
		w, h, err := windowctl.NewXDoTool(windowctl.DefaultBinary).DisplaySize(ctx)
		if err != nil {
			w, h = 1920, 1080
		}
		if params.ScreenWidth <= 0 {
			params.ScreenWidth = w
		}
		if params.ScreenHeight <= 0 {
			params.ScreenHeight = h
		}
	}

	doc := struct {
		Params grid.Params `yaml:"params"`
		Layout grid.Layout `yaml:"layout"`
	}{params, grid.Plan(params)}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	dir := fs.String("dir", defaultConfigDir(), "configuration directory")
	tierName := fs.String("tier", "user", "tier to operate on: system, batch, or user")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: blitz config [options] <get KEY | set KEY VALUE | unset KEY | prune>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := config.NewStore(*dir)
	tier, err := parseTier(*tierName)
	if err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return fmt.Errorf("config: an action is required")
	}

	switch action := rest[0]; action {
	case "get":
		if len(rest) != 2 {
			return fmt.Errorf("config get: exactly one key is required")
		}
		cfg, err := store.LoadTiers()
		if err != nil {
			return err
		}
		value, err := cfg.String(rest[1])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	case "set":
		if len(rest) != 3 {
			return fmt.Errorf("config set: a key and a value are required")
		}
		return store.Set(tier, rest[1], rest[2])
	case "unset":
		if len(rest) != 2 {
			return fmt.Errorf("config unset: exactly one key is required")
		}
		return store.Delete(tier, rest[1])
	case "prune":
		if err := store.Prune(tier); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Pruned redundant overrides from the %s tier", tier)))
		return nil
	default:
		return fmt.Errorf("config: unknown action %q", action)
	}
}

func parseTier(name string) (config.Tier, error) {
	switch strings.ToLower(name) {
	case "system":
		return config.System, nil
	case "batch":
		return config.Batch, nil
	case "user":
		return config.User, nil
	default:
		return 0, fmt.Errorf("unknown tier %q (want system, batch, or user)", name)
	}
}
