package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redraft/cli/internal/config"
	"redraft/cli/internal/diff"
	"redraft/cli/internal/erruser"
	"redraft/cli/internal/fileio"
	"redraft/cli/internal/generate"
	"redraft/cli/internal/prompt"
	"redraft/cli/internal/proposal"
	"redraft/cli/internal/session"
	"redraft/cli/internal/stream"
	"redraft/cli/internal/timeline"
	"redraft/cli/internal/tokens"
	"redraft/cli/internal/trace"
	"redraft/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// out is the writer for proposal summaries. Tests may replace it to capture output.
var out io.Writer = os.Stdout

// _contextLimit is the assumed model context window for prompt size warnings.
const _contextLimit = 128000

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	rootCmd := &cobra.Command{
		Use:     "redraft",
		Short:   "Instruction-driven file editing with reviewable proposals",
		Version: version.String(),
	}
	rootCmd.AddCommand(newEditCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(os.Stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(os.Stderr, "Details: %v\n", u)
		}
		return 1
	}
	return 0
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit -m <instruction> <file>...",
		Short: "Generate edit proposals for the given files and optionally apply them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEdit,
	}
	cmd.Flags().StringP("message", "m", "", "Edit instruction (required)")
	cmd.Flags().Bool("yes", false, "Apply all eligible proposals without confirmation")
	cmd.Flags().StringSlice("files", nil, "Apply only the proposals for these paths (implies --yes)")
	cmd.Flags().Bool("undo", false, "Apply, then immediately revert the transaction (write rehearsal)")
	cmd.Flags().Bool("dry-run", false, "Never write; print proposals and exit")
	cmd.Flags().Bool("diff", false, "Print a unified diff for each proposal")
	cmd.Flags().String("model", "", "Model name (overrides config and env)")
	cmd.Flags().String("base-url", "", "API base URL (overrides config and env)")
	cmd.Flags().Duration("flush-interval", 0, "Streaming re-parse cadence (clamped to the supported range)")
	cmd.Flags().Duration("timeout", 0, "Generation timeout (overrides config and env)")
	cmd.Flags().Bool("trace", false, "Print session events and internal steps to stderr")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func runEdit(cmd *cobra.Command, args []string) error {
	instruction, _ := cmd.Flags().GetString("message")
	if strings.TrimSpace(instruction) == "" {
		return errors.New("Instruction is empty; pass it with -m.")
	}
	yes, _ := cmd.Flags().GetBool("yes")
	onlyFiles, _ := cmd.Flags().GetStringSlice("files")
	undoAfter, _ := cmd.Flags().GetBool("undo")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showDiff, _ := cmd.Flags().GetBool("diff")
	if len(onlyFiles) > 0 {
		yes = true
	}
	traceOn, _ := cmd.Flags().GetBool("trace")
	var traceOut io.Writer
	if traceOn {
		traceOut = os.Stderr
	}
	tr := trace.New(traceOut)

	cwd, err := os.Getwd()
	if err != nil {
		return erruser.New("Could not determine current directory.", err)
	}
	cfg, err := config.Load(context.Background(), config.LoadOptions{
		RepoRoot:  cwd,
		Overrides: overridesFromFlags(cmd),
	})
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return errors.New("No API key configured. Set REDRAFT_API_KEY or api_key in .redraft/config.toml.")
	}

	gen := generate.NewOpenAI(generate.Options{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		Temperature:     float32(cfg.Temperature),
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
	store := &fileio.OS{}
	desk := session.NewDesk(gen, store, session.Options{
		FlushInterval: cfg.FlushInterval,
		StateDir:      cfg.EffectiveStateDir(cwd),
	})

	if tr.Enabled() {
		files, err := fileio.Load(store, args)
		if err != nil {
			return erruser.New("Could not read the given files.", err)
		}
		n := tokens.Estimate(prompt.User(instruction, files))
		tr.Section("Prompt")
		tr.Printf("estimated prompt tokens: %d\n", n)
		if warn := tokens.Warn(n, _contextLimit); warn != "" {
			fmt.Fprintln(os.Stderr, warn)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	done := make(chan session.State, 1)
	hooks := session.Hooks{
		OnStateChange: func(st session.State) {
			tr.Printf("state -> %s\n", st)
			if st == session.StateReady || st == session.StateError {
				select {
				case done <- st:
				default:
				}
			}
		},
		OnTimelineAppend: func(ev timeline.Event) {
			tr.Printf("%s: %s\n", ev.Kind, ev.Description)
		},
	}

	tr.Section("Generation")
	s, err := desk.Start(ctx, instruction, args, hooks)
	if err != nil {
		return err
	}

	select {
	case st := <-done:
		if st == session.StateError {
			fmt.Fprintln(os.Stderr, s.ErrorMessage())
			return errExit(1)
		}
	case <-ctx.Done():
		s.Cancel()
		fmt.Fprintln(os.Stderr, "Generation timed out.")
		return errExit(1)
	}

	views := s.Proposals()
	if len(views) == 0 {
		fmt.Fprintln(out, "No changes required.")
		return nil
	}
	printProposals(out, views, s.Rejections())
	if showDiff {
		for _, v := range views {
			old, readErr := store.Read(v.Path)
			if readErr != nil {
				old = ""
			}
			if text := diff.Unified(v.Path, old, v.Content); text != "" {
				fmt.Fprintf(out, "\n%s (%s)\n%s", v.Path, diff.StatLine(old, v.Content), text)
			}
		}
	}

	if dryRun || !yes {
		_ = s.RejectAll()
		if !dryRun {
			fmt.Fprintln(out, "Nothing applied. Re-run with --yes to apply.")
		}
		return nil
	}

	ids, err := idsForPaths(views, onlyFiles)
	if err != nil {
		return err
	}
	tx, err := s.AcceptSelected(ids)
	if err != nil {
		return erruser.New("Could not apply the proposals.", err)
	}
	for _, p := range tx.Applied() {
		fmt.Fprintf(out, "applied  %s\n", p.Path)
	}
	if undoAfter {
		if err := s.Undo(); err != nil {
			return erruser.New("Could not revert the transaction.", err)
		}
		fmt.Fprintf(out, "reverted %d files\n", len(tx.Applied()))
	}
	return nil
}

// idsForPaths resolves --files paths to proposal ids. Nil paths means all
// selected eligible proposals (nil ids).
func idsForPaths(views []session.View, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	byPath := make(map[string]session.View, len(views))
	for _, v := range views {
		byPath[v.Path] = v
	}
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		v, ok := byPath[path]
		if !ok {
			return nil, fmt.Errorf("no proposal for %s", path)
		}
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// printProposals writes one line per proposal plus any rejected blocks.
func printProposals(w io.Writer, views []session.View, rejections []proposal.Rejection) {
	for _, v := range views {
		status := "ok"
		if v.Blocked {
			status = "blocked: " + v.BlockReason
		}
		fmt.Fprintf(w, "%s  %s  %s\n", v.ID, v.Path, status)
	}
	for _, r := range rejections {
		fmt.Fprintf(w, "rejected  %s  %s\n", r.Path, r.Reason)
	}
}

// overridesFromFlags returns Overrides for the flags that were set on the command.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if !changed("model") && !changed("base-url") && !changed("flush-interval") && !changed("timeout") {
		return nil
	}
	o := &config.Overrides{}
	if changed("model") {
		v, _ := cmd.Flags().GetString("model")
		o.Model = &v
	}
	if changed("base-url") {
		v, _ := cmd.Flags().GetString("base-url")
		o.BaseURL = &v
	}
	if changed("flush-interval") {
		v, _ := cmd.Flags().GetDuration("flush-interval")
		v = stream.ClampInterval(v)
		o.FlushInterval = &v
	}
	if changed("timeout") {
		v, _ := cmd.Flags().GetDuration("timeout")
		if v <= 0 {
			v = 5 * time.Minute
		}
		o.Timeout = &v
	}
	return o
}
