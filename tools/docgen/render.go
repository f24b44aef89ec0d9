// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

type example struct {
	Desc string
	Cmd  string
}

// examples feed both the EXAMPLES man section and the tldr pages.
var examples = map[string][]example{
	"hash": {
		{"Show the identity of every tracked Python file", "git ls-files '*.py' | rulecache hash"},
		{"Hash untracked files with BLAKE2b", "rulecache hash --no-git --hash blake2b notes.md"},
	},
	"get": {
		{"Print the cached result for a file", "rulecache get --patterns {{id}} {{path/to/file}}"},
		{"Extract part of a JSON result", "rulecache get --rules {{rules.yaml}} --query results.# {{path/to/file}}"},
	},
	"put": {
		{"Store an analyzer result read from stdin", "semgrep-core -json {{file}} | rulecache put --patterns {{id}} {{file}}"},
	},
	"run": {
		{"Analyze a tree, skipping unchanged files", "git ls-files | rulecache run --rules {{rules.yaml}} --exec 'semgrep-core -json -rules rules.yaml {}'"},
		{"Print the payloads instead of the summary", "rulecache run --patterns {{id}} --exec {{cmd}} --emit {{files}}"},
	},
	"ls": {
		{"List entries larger than 1 KB", "rulecache ls --filter 'bytes>1024' --sort -bytes"},
	},
	"info": {
		{"Show where the cache lives", "rulecache info"},
	},
	"stats": {
		{"Aggregate timing reports of two repositories", "rulecache stats --out {{times.json}} web={{web.json}} api={{api.json}}"},
	},
	"push": {
		{"Share the local cache", "rulecache push --bucket {{bucket}}"},
	},
	"pull": {
		{"Fetch the shared cache", "rulecache pull --bucket {{bucket}} --region {{region}}"},
	},
	"completion": {
		{"Enable bash completion", "source <(rulecache completion bash)"},
	},
}

// renderMarkdown produces the man page source for one subcommand in the
// layout md2man expects.
func renderMarkdown(app string, cmd *cli.Command) []byte {
	var b bytes.Buffer
	full := app + "-" + cmd.Name

	fmt.Fprintf(&b, "%s 1\n", strings.ToUpper(full))
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", len(full)+2))

	b.WriteString("# NAME\n\n")
	fmt.Fprintf(&b, "%s - %s\n\n", full, cmd.Usage)

	b.WriteString("# SYNOPSIS\n\n")
	usage := cmd.UsageText
	if usage == "" {
		usage = app + " " + cmd.Name + " [options]"
	}
	fmt.Fprintf(&b, "`%s`\n\n", usage)

	if flags := visibleFlags(cmd); len(flags) > 0 {
		b.WriteString("# OPTIONS\n\n")
		for _, f := range flags {
			fmt.Fprintf(&b, "**%s**\n:   %s\n\n", flagSpelling(f), flagUsage(f))
		}
	}

	if exs := examples[cmd.Name]; len(exs) > 0 {
		b.WriteString("# EXAMPLES\n\n")
		for _, ex := range exs {
			fmt.Fprintf(&b, "%s:\n\n    %s\n\n", ex.Desc, sanitizeCommand(ex.Cmd))
		}
	}

	return b.Bytes()
}

func visibleFlags(cmd *cli.Command) []cli.Flag {
	var out []cli.Flag
	for _, f := range cmd.Flags {
		if vf, ok := f.(cli.VisibleFlag); ok && !vf.IsVisible() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func flagSpelling(f cli.Flag) string {
	var parts []string
	for _, n := range f.Names() {
		if len(n) == 1 {
			parts = append(parts, "-"+n)
		} else {
			parts = append(parts, "--"+n)
		}
	}
	return strings.Join(parts, ", ")
}

func flagUsage(f cli.Flag) string {
	if df, ok := f.(cli.DocGenerationFlag); ok {
		return df.GetUsage()
	}
	return ""
}

func buildTLDR(app, cmd, short string, exs []example) string {
	var b strings.Builder
	b.WriteString("# " + app + "-" + cmd + "\n\n")
	if short != "" {
		b.WriteString("> " + strings.ToUpper(short[:1]) + short[1:] + ".\n")
	} else {
		b.WriteString("> " + app + " " + cmd + "\n")
	}
	b.WriteString("> More information: https://github.com/staranto/rulecache.\n\n")

	if len(exs) == 0 {
		b.WriteString("- Show help for the command:\n\n")
		b.WriteString("`" + app + " " + cmd + " --help`\n")
		return b.String()
	}

	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + strings.TrimSpace(ex.Desc) + ":\n\n")
		b.WriteString("`" + sanitizeCommand(ex.Cmd) + "`\n")
	}
	return b.String()
}

// sanitizeCommand compresses runs of whitespace.
func sanitizeCommand(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
