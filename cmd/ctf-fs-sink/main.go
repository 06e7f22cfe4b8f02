// SPDX-License-Identifier: Apache-2.0

// Command ctf-fs-sink is a standalone driver exercising the sink
// end-to-end: it reads a newline-delimited JSON message stream from
// stdin, in place of the plugin-host ABI spec.md §1 places out of
// scope, and feeds it to internal/sink's consume() in batches (spec.md
// §2 "a driver calls consume repeatedly").
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ctf-tools/fs-sink/internal/base"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/sink"
	"github.com/ctf-tools/fs-sink/internal/sinkcfg"
	"github.com/ctf-tools/fs-sink/internal/translate"
)

// batchSize bounds how many decoded messages accumulate before a
// Consume call, keeping a single malformed tail of stdin from growing
// an unbounded batch in memory.
const batchSize = 256

// maxLineBytes raises bufio.Scanner's default 64 KiB token limit: event
// payloads are arbitrary JSON and can legitimately exceed it.
const maxLineBytes = 16 * 1024 * 1024

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		path                   string
		assumeSingleTrace      bool
		ignoreDiscardedEvents  bool
		ignoreDiscardedPackets bool
		quiet                  bool
		ctfVersion             string
		offsetSec              int64
		offsetNanosec          int64
		forceUnixEpoch         bool
		mipVersion             int
	)

	cmd := &cobra.Command{
		Use:   "ctf-fs-sink",
		Short: "Write a CTF trace file-system sink driven by NDJSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := sinkcfg.Params{
				"path":                     path,
				"assume-single-trace":      boolStr(assumeSingleTrace),
				"ignore-discarded-events":  boolStr(ignoreDiscardedEvents),
				"ignore-discarded-packets": boolStr(ignoreDiscardedPackets),
				"quiet":                    boolStr(quiet),
				"ctf-version":              ctfVersion,
			}
			cfg, err := sinkcfg.Parse(params, mipVersion)
			if err != nil {
				return err
			}

			logger := logrus.StandardLogger()
			if cfg.Quiet {
				logger.SetLevel(logrus.WarnLevel)
			}
			log := base.NewSourceLogObject(logger, "ctf-fs-sink", int32(os.Getpid()))

			clkCfg := translate.ClkClsCfg{
				OffsetSec:              offsetSec,
				OffsetNanosec:          offsetNanosec,
				ForceOriginIsUnixEpoch: forceUnixEpoch,
			}

			s := sink.New(log, cfg, clkCfg)
			return run(s, os.Stdin)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&path, "path", "", "output directory for the trace tree (required)")
	flags.BoolVar(&assumeSingleTrace, "assume-single-trace", false, "treat path itself as the one trace's root")
	flags.BoolVar(&ignoreDiscardedEvents, "ignore-discarded-events", false, "drop discarded-events messages instead of validating and counting them")
	flags.BoolVar(&ignoreDiscardedPackets, "ignore-discarded-packets", false, "drop discarded-packets messages instead of validating and counting them")
	flags.BoolVar(&quiet, "quiet", false, "suppress the \"Created CTF trace\" acknowledgement line")
	flags.StringVar(&ctfVersion, "ctf-version", "", "metadata format to emit: \"1\"/\"1.8\" for TSDL, \"2\"/\"2.0\" for JSON-fragment (default 2)")
	flags.Int64Var(&offsetSec, "clock-offset-s", 0, "seconds added to every clock class's offset")
	flags.Int64Var(&offsetNanosec, "clock-offset-ns", 0, "nanoseconds added to every clock class's offset")
	flags.BoolVar(&forceUnixEpoch, "clock-force-unix-epoch", false, "treat every clock class as Unix-epoch-origin")
	flags.IntVar(&mipVersion, "mip-version", 1, "MIP version the host negotiated with this component")
	cmd.MarkFlagRequired("path")

	return cmd
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// run decodes NDJSON records from r and feeds them to s in batches
// until EOF or a fatal decode/consume error.
func run(s *sink.Sink, r *os.File) error {
	d := newDriver()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	batch := make([]irsrc.Message, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		status, err := s.Consume(batch)
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("consume: status %s: %w", status, err)
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := parseLine(line)
		if err != nil {
			return err
		}
		msg, err := d.process(env)
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}
		batch = append(batch, msg)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return flush()
}
