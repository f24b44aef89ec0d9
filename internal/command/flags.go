// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/rulecache/internal/config"
	"github.com/staranto/rulecache/internal/identity"
)

func init() {
	cfg, _ = config.Load("")
}

var cfg config.Type

// newTLDRFlag is built per command; urfave flags carry parse state.
func newTLDRFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
}

// NewGlobalFlags returns the presentation flags every listing command shares.
// params[0] is the command name, used to namespace config file lookups.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	flags = []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format (text, json, yaml)",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
	}

	return
}

// NewIdentityFlags are the flags steering how file identities are resolved.
func NewIdentityFlags(ns string) []cli.Flag {
	return []cli.Flag{
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "rev",
			Usage:   "revision object ids are read from",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_REV")),
			Value:   identity.DefaultRev,
			Validator: func(value string) error {
				return FlagValidators(value, NotEmptyValidator, JammedFlagValidator)
			},
		}),
		&cli.IntFlag{
			Name:  "batch",
			Usage: "paths per git query",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".batch", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("batch", altsrc.StringSourcer(cfg.Source)),
			),
			Value: identity.DefaultBatchSize,
			Validator: func(value int) error {
				return FlagValidators(value, PositiveIntValidator)
			},
		},
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "hash",
			Usage:   "content hash for untracked files (sha256, blake2b)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_HASH")),
			Value:   string(identity.SHA256),
			Validator: func(value string) error {
				return FlagValidators(value, HashValidator)
			},
		}),
		&cli.BoolWithInverseFlag{
			Name:  "git",
			Usage: "use git object ids for tracked files",
			Value: true,
		},
	}
}

// NewPatternsFlags select the pattern set an entry belongs to, either by id
// or by hashing a rules file.
func NewPatternsFlags(ns string) []cli.Flag {
	return []cli.Flag{
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "patterns",
			Aliases: []string{"p"},
			Usage:   "pattern set id",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_PATTERNS")),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "rules",
			Usage:   "rules file whose content hash is the pattern set id",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_RULES")),
		}),
	}
}

// NewS3Flags locate the remote snapshot for push and pull.
func NewS3Flags(ns string) []cli.Flag {
	return []cli.Flag{
		s3Flag(ns, &cli.StringFlag{
			Name:    "bucket",
			Usage:   "S3 bucket holding the shared snapshot",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_S3_BUCKET")),
		}),
		s3Flag(ns, &cli.StringFlag{
			Name:    "key",
			Usage:   "object key of the shared snapshot",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_S3_KEY")),
		}),
		s3Flag(ns, &cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AWS_REGION")),
		}),
		s3Flag(ns, &cli.StringFlag{
			Name:    "profile",
			Usage:   "AWS shared config profile",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AWS_PROFILE")),
		}),
		s3Flag(ns, &cli.StringFlag{
			Name:    "endpoint",
			Usage:   "S3-compatible endpoint URL",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RULECACHE_S3_ENDPOINT")),
		}),
	}
}

// s3Flag reads <ns>.s3.<name>, then s3.<name>, from the config file.
func s3Flag(ns string, flag *cli.StringFlag) *cli.StringFlag {
	flag.Sources.Chain = append(flag.Sources.Chain,
		yaml.YAML(ns+".s3."+flag.Name, altsrc.StringSourcer(cfg.Source)),
		yaml.YAML("s3."+flag.Name, altsrc.StringSourcer(cfg.Source)),
	)
	return flag
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config file
// sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}

// pathHas reports whether target is on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
