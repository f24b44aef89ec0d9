// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/meta"
)

// flagWords returns every spelling of cmd's visible flags, sorted.
func flagWords(cmd *cli.Command) []string {
	var words []string
	for _, f := range cmd.Flags {
		if vf, ok := f.(cli.VisibleFlag); ok && !vf.IsVisible() {
			continue
		}
		for _, n := range f.Names() {
			if len(n) == 1 {
				words = append(words, "-"+n)
			} else {
				words = append(words, "--"+n)
			}
		}
	}
	sort.Strings(words)
	return words
}

func visibleCommands(root *cli.Command) []*cli.Command {
	var cmds []*cli.Command
	for _, c := range root.Commands {
		if !c.Hidden && c.Name != "help" {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

func writeBashCompletion(w io.Writer, root *cli.Command) {
	name := root.Name
	var names []string
	for _, c := range visibleCommands(root) {
		names = append(names, c.Name)
	}

	fmt.Fprintf(w, "# bash completion for %s\n", name)
	fmt.Fprintf(w, "_%s()\n{\n", name)
	fmt.Fprintln(w, `    local cur prev cmd opts`)
	fmt.Fprintln(w, `    COMPREPLY=()`)
	fmt.Fprintln(w, `    cur=${COMP_WORDS[COMP_CWORD]}`)
	fmt.Fprintln(w, `    prev=${COMP_WORDS[COMP_CWORD-1]}`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, `    if [[ ${COMP_CWORD} -eq 1 ]]; then`)
	fmt.Fprintf(w, "        COMPREPLY=( $(compgen -W \"%s --help --version\" -- \"$cur\") )\n", strings.Join(names, " "))
	fmt.Fprintln(w, `        return 0`)
	fmt.Fprintln(w, `    fi`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, `    cmd=${COMP_WORDS[1]}`)
	fmt.Fprintln(w, `    case "$cmd" in`)
	for _, c := range visibleCommands(root) {
		if c.Name == "completion" {
			continue
		}
		fmt.Fprintf(w, "    %s)\n        opts=\"%s\"\n        ;;\n", c.Name, strings.Join(flagWords(c), " "))
	}
	fmt.Fprintln(w, `    completion)`)
	fmt.Fprintln(w, `        COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )`)
	fmt.Fprintln(w, `        return 0`)
	fmt.Fprintln(w, `        ;;`)
	fmt.Fprintln(w, `    esac`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, `    if [[ "$prev" == "--output" || "$prev" == "-o" ]]; then`)
	fmt.Fprintln(w, `        COMPREPLY=( $(compgen -W "text json yaml" -- "$cur") )`)
	fmt.Fprintln(w, `        return 0`)
	fmt.Fprintln(w, `    fi`)
	fmt.Fprintln(w, `    if [[ "$cur" == -* ]]; then`)
	fmt.Fprintln(w, `        COMPREPLY=( $(compgen -W "$opts" -- "$cur") )`)
	fmt.Fprintln(w, `        return 0`)
	fmt.Fprintln(w, `    fi`)
	fmt.Fprintln(w, `    COMPREPLY=( $(compgen -f -- "$cur") )`)
	fmt.Fprintln(w, `}`)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "complete -F _%s %s\n", name, name)
}

func writeZshCompletion(w io.Writer, root *cli.Command) {
	name := root.Name

	fmt.Fprintf(w, "#compdef %s\n\n_%s() {\n", name, name)
	fmt.Fprintln(w, `  local -a cmds`)
	fmt.Fprintln(w, `  cmds=(`)
	for _, c := range visibleCommands(root) {
		fmt.Fprintf(w, "    '%s:%s'\n", c.Name, strings.ReplaceAll(c.Usage, "'", ""))
	}
	fmt.Fprintln(w, `  )`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, `  if (( CURRENT == 2 )); then`)
	fmt.Fprintf(w, "    _describe -t commands '%s commands' cmds\n", name)
	fmt.Fprintln(w, `    return`)
	fmt.Fprintln(w, `  fi`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, `  case $words[2] in`)
	for _, c := range visibleCommands(root) {
		if c.Name == "completion" {
			continue
		}
		fmt.Fprintf(w, "    %s)\n      _arguments -C \\\n", c.Name)
		for _, word := range flagWords(c) {
			fmt.Fprintf(w, "        '%s' \\\n", word)
		}
		fmt.Fprintln(w, `        '*:file:_files'`)
		fmt.Fprintln(w, `      ;;`)
	}
	fmt.Fprintln(w, `    completion)`)
	fmt.Fprintln(w, `      _arguments '1: :((bash zsh))'`)
	fmt.Fprintln(w, `      ;;`)
	fmt.Fprintln(w, `  esac`)
	fmt.Fprintln(w, `}`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, `if ! typeset -f compdef >/dev/null 2>&1; then`)
	fmt.Fprintln(w, `  autoload -Uz compinit && compinit -i`)
	fmt.Fprintln(w, `fi`)
	fmt.Fprintf(w, "compdef _%s %s\n", name, name)
}

// CompletionCommandAction prints a completion script for the requested (or
// detected) shell, generated from the live command tree.
func CompletionCommandAction(_ context.Context, cmd *cli.Command) error {
	shell := cmd.Args().First()
	if shell == "" {
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	w := stdout(cmd)
	switch shell {
	case "bash":
		writeBashCompletion(w, cmd.Root())
	case "zsh":
		writeZshCompletion(w, cmd.Root())
	default:
		return fmt.Errorf("usage: %s completion [bash|zsh]", cmd.Root().Name)
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "rulecache completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
