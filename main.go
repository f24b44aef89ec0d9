// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/rulecache/internal/command"
	"github.com/staranto/rulecache/internal/config"
	mylog "github.com/staranto/rulecache/internal/log"
	"github.com/staranto/rulecache/internal/version"
)

// Exit statuses.
const (
	exitOK    = 0
	exitMiss  = 1
	exitError = 2
)

var ctx = context.Background()

func main() {
	os.Exit(realMain(os.Args))
}

func realMain(args []string) int {
	mylog.InitLogger()

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return exitOK
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	return exitCode(app.Run(ctx, args))
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, command.ErrMiss):
		log.Debug(err.Error())
		return exitMiss
	default:
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
}

// mangleArguments expands an argument set named with @set (or @defaults when
// none is named) from the <command>.<set> list in the config file. The
// expansion is inserted right after the subcommand, so explicit flags that
// follow still win.
func mangleArguments(args []string) []string {
	// Short-circuit for --help/-h.
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return append(args[:2:2], "--help")
		}
	}

	out := make([]string, 0, len(args))
	out = append(out, args[:2]...)

	set := "defaults"
	for _, a := range args[2:] {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			set = a[1:]
			continue
		}
		out = append(out, a)
	}

	config.Config.Namespace = args[1]
	setArgs, _ := config.GetStringSlice(args[1] + "." + set)

	var expanded []string
	for _, arg := range setArgs {
		expanded = append(expanded, strings.Fields(arg)...)
	}

	result := append(out[:2:2], expanded...)
	result = append(result, out[2:]...)

	log.Debugf("set=%s, args=%v", set, result)
	return result
}
