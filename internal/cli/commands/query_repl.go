package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/engine"
)

func runQueryREPL(cmd *cobra.Command, eng *engine.Engine, statePath string, opts *QueryOptions) error {
	historyFile := filepath.Join(filepath.Dir(statePath), "query_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "stagehand> ",
		HistoryFile:     historyFile,
		AutoComplete:    newRelationCompleter(eng),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "stagehand warehouse REPL")
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt("stagehand> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if handleDotCommand(cmd, eng, line) {
				if line == ".quit" || line == ".exit" {
					break
				}
				continue
			}
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt("      ...> ")
			continue
		}
		rl.SetPrompt("stagehand> ")

		query := strings.TrimSuffix(multiLineBuffer.String(), ";")
		multiLineBuffer.Reset()

		if err := executeAndRender(cmd, eng, query, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

func handleDotCommand(cmd *cobra.Command, eng *engine.Engine, line string) bool {
	out := cmd.OutOrStdout()
	command := strings.ToLower(strings.Fields(line)[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)
		return true

	case ".models":
		if _, err := eng.Discover(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			return true
		}
		for _, m := range sortedModels(eng) {
			_, _ = fmt.Fprintf(out, "  %s (%s)\n", m.Relation(), m.Materialized)
		}
		return true

	case ".sources":
		for _, ns := range eng.Catalog().Namespaces() {
			for _, tbl := range ns.Tables {
				if rel, err := eng.Catalog().Resolve(ns.Name, tbl.Name); err == nil {
					_, _ = fmt.Fprintf(out, "  %s\n", rel.Qualified())
				}
			}
		}
		return true

	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")
		return true

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
		return true
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .models         List model relations
  .sources        List cataloged source relations
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for relation names
`
	_, _ = fmt.Fprintln(w, help)
}

// newRelationCompleter completes model and source relation names.
func newRelationCompleter(eng *engine.Engine) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	if _, err := eng.Discover(); err == nil {
		for _, m := range sortedModels(eng) {
			items = append(items, readline.PcItem(m.Relation()))
		}
	}
	for _, ns := range eng.Catalog().Namespaces() {
		for _, tbl := range ns.Tables {
			if rel, err := eng.Catalog().Resolve(ns.Name, tbl.Name); err == nil {
				items = append(items, readline.PcItem(rel.Qualified()))
			}
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".models"),
		readline.PcItem(".sources"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
