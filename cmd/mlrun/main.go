package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/mlbridge/bridge"
	"github.com/wippyai/mlbridge/engine"
	"github.com/wippyai/mlbridge/host"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

var rootCmd = &cobra.Command{
	Use:           "mlrun",
	Short:         "Call native externals through the foreign heap",
	Long:          `mlrun binds the demo externals to a heap and calls them the way foreign code would`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List externals with their arity",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var callCmd = &cobra.Command{
	Use:   "call name [args...]",
	Short: "Call an external",
	Long: `Call an external with one foreign literal per argument:
42, 1.5, true, (), "text", None, Some x, [a; b], [|a; b|], (a, b),
fn:name (Go closure), ext:name (external), wasm:name (wasm export).
Put -- before arguments that start with a dash.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive mode",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var (
	resultColor    = color.New(color.FgGreen)
	exceptionColor = color.New(color.FgRed, color.Bold)
	nameColor      = color.New(color.FgCyan)
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(tuiCmd)

	callCmd.Flags().String("output", "text", "result format (text|msgpack)")

	rootCmd.PersistentFlags().String("config", "", "TOML heap configuration")
	rootCmd.PersistentFlags().String("wasm", "", "core wasm module whose exports become wasm:name closures")
	rootCmd.PersistentFlags().Uint32("wasm-pages", 0, "memory limit per wasm module in 64KB pages")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// sessionFromFlags opens a session configured by the persistent flags.
func sessionFromFlags(cmd *cobra.Command) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	configFile, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	wasmFile, err := flags.GetString("wasm")
	if err != nil {
		return nil, fmt.Errorf("failed to get wasm flag: %w", err)
	}
	pages, err := flags.GetUint32("wasm-pages")
	if err != nil {
		return nil, fmt.Errorf("failed to get wasm-pages flag: %w", err)
	}
	mode, _ := flags.GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto", "":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return nil, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return newSession(configFile, wasmFile, pages)
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := sessionFromFlags(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	printFuncs(cmd.OutOrStdout(), s.funcs())
	return nil
}

func printFuncs(w io.Writer, funcs []funcInfo) {
	for _, f := range funcs {
		fmt.Fprintf(w, "  %s/%d\n", nameColor.Sprint(f.name), f.arity)
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	s, err := sessionFromFlags(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	var out string
	switch output {
	case "text":
		out, err = s.call(args[0], args[1:])
	case "msgpack":
		var snap snapshot
		err = s.apply(args[0], args[1:], func(res value.Value) { snap = takeSnapshot(s.heap, res, 0) })
		if err == nil {
			return writeSnapshot(cmd.OutOrStdout(), snap)
		}
	default:
		return fmt.Errorf("unknown output: %s", output)
	}
	if err != nil {
		if exn, ok := err.(*exceptionError); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), exceptionColor.Sprint("exception ")+exn.desc)
			return fmt.Errorf("%s raised", args[0])
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resultColor.Sprint(out))
	return nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !isTerminal(os.Stdout) {
		return fmt.Errorf("tui needs a terminal")
	}
	s, err := sessionFromFlags(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	return runInteractive(s)
}

// session is one heap with the demo externals bound.
type session struct {
	heap  *engine.Heap
	wasm  map[string]int
	codes map[string]int // fn: closures already defined on heap
	log   *zap.Logger
}

type funcInfo struct {
	name  string
	arity int
}

// exceptionError reports an exception raised by a call.
type exceptionError struct {
	desc string
}

func (e *exceptionError) Error() string {
	return "exception " + e.desc
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func newSession(configFile, wasmFile string, memPages uint32) (*session, error) {
	cfg := engine.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = engine.LoadConfig(configFile); err != nil {
			return nil, err
		}
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	engine.SetLogger(log.Named("engine"))
	runtime.SetLogger(log.Named("runtime"))
	bridge.SetLogger(log.Named("bridge"))
	host.SetLogger(log.Named("host"))

	s := &session{heap: engine.New(cfg), codes: make(map[string]int), log: log}
	if err := register(s.heap); err != nil {
		_ = s.heap.Close()
		return nil, err
	}

	if wasmFile != "" {
		ctx := context.Background()
		data, err := os.ReadFile(wasmFile)
		if err != nil {
			_ = s.heap.Close()
			return nil, fmt.Errorf("read file: %w", err)
		}
		s.heap.EnableWasm(ctx, engine.WasmConfig{MemoryLimitPages: memPages})
		name := strings.TrimSuffix(filepath.Base(wasmFile), filepath.Ext(wasmFile))
		if s.wasm, err = s.heap.LoadWasm(ctx, name, data); err != nil {
			_ = s.heap.Close()
			return nil, err
		}
		log.Info("wasm module loaded", zap.String("module", name), zap.Int("exports", len(s.wasm)))
	}
	return s, nil
}

func (s *session) close() {
	st := s.heap.Stats()
	s.log.Debug("heap closed",
		zap.Int("minor_collections", st.MinorCollections),
		zap.Int("compactions", st.Compactions),
		zap.Int("allocated_words", st.AllocatedWords),
		zap.Int("finalized", st.Finalized))
	_ = s.heap.Close()
	_ = s.log.Sync()
}

func (s *session) funcs() []funcInfo {
	names := s.heap.Externals()
	out := make([]funcInfo, 0, len(names))
	for _, name := range names {
		arity, _ := s.heap.ExternalArity(name)
		out = append(out, funcInfo{name: name, arity: arity})
	}
	return out
}

// call parses inputs, applies the external and renders its result. A raised
// exception is returned as an *exceptionError.
func (s *session) call(name string, inputs []string) (string, error) {
	var out string
	err := s.apply(name, inputs, func(res value.Value) { out = s.heap.Format(res) })
	return out, err
}

// apply calls the external and hands its result to use before any further
// allocation.
func (s *session) apply(name string, inputs []string, use func(res value.Value)) error {
	arity, ok := s.heap.ExternalArity(name)
	if !ok {
		return fmt.Errorf("unknown external %s", name)
	}
	if len(inputs) != arity {
		return fmt.Errorf("%s takes %d arguments, got %d", name, arity, len(inputs))
	}
	parsed := make([]arg, len(inputs))
	for i, in := range inputs {
		a, err := parseArg(in)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		parsed[i] = a
	}

	rt := runtime.Enter(s.heap)
	defer rt.Leave()
	f := rt.Frame()
	defer f.Close()

	roots := make([]runtime.Root, len(parsed))
	for i, a := range parsed {
		v, err := s.encode(rt, a)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		roots[i] = f.Root(v)
	}
	raw := make([]value.Value, len(roots))
	for i, r := range roots {
		raw[i] = r.Get()
	}

	s.log.Debug("calling external", zap.String("name", name), zap.Int("args", len(raw)))
	res, exn, raised := s.heap.Invoke(name, raw...)
	if raised {
		return &exceptionError{desc: bridge.Describe(exn)}
	}
	use(res)
	return nil
}
