// SPDX-License-Identifier: Apache-2.0

// Package tracepath implements C5, the trace-path builder (spec.md
// §4.5). Directory creation follows the teacher's
// cmd/volumemgr/dirs.go idiom: stat first, MkdirAll on miss, log the
// creation.
package tracepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctf-tools/fs-sink/internal/base"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
	"github.com/ctf-tools/fs-sink/internal/sinkerr"
)

// Make derives and creates the final directory a trace's CTF files live
// under. traceName is the upstream trace's own name, used as the first
// fallback when LTTng-style environment sniffing fails.
func Make(log *base.LogObject, base_ string, singleTrace bool, env map[string]irsrc.EnvValue, traceName string) (string, error) {
	if singleTrace {
		if _, err := os.Stat(base_); err == nil {
			return "", sinkerr.Configf("tracepath.Make", "single-trace output path %q already exists", base_)
		} else if !os.IsNotExist(err) {
			return "", sinkerr.Wrap(sinkerr.IO, "tracepath.Make", err)
		}
		if err := create(log, base_); err != nil {
			return "", err
		}
		return base_, nil
	}

	rel := deriveRelativePath(env, traceName)
	sanitized := sanitize(rel)
	final, err := uniquify(base_, sanitized)
	if err != nil {
		return "", err
	}
	if err := create(log, final); err != nil {
		return "", err
	}
	return final, nil
}

// deriveRelativePath implements spec.md §4.5 step 2: LTTng environment
// sniffing with progressively weaker fallbacks.
func deriveRelativePath(env map[string]irsrc.EnvValue, traceName string) string {
	segs, ok := lttngPath(env)
	if ok {
		return strings.Join(segs, "/")
	}
	if traceName != "" {
		return traceName
	}
	return "trace"
}

func lttngPath(env map[string]irsrc.EnvValue) ([]string, bool) {
	tracerName, ok := envStr(env, "tracer_name")
	if !ok || (tracerName != "lttng-ust" && tracerName != "lttng-modules") {
		return nil, false
	}
	major, ok := envInt(env, "tracer_major")
	if !ok {
		return nil, false
	}
	minor, ok := envInt(env, "tracer_minor")
	if !ok {
		return nil, false
	}
	if !(major >= 3 || (major == 2 && minor >= 11)) {
		return nil, false
	}

	hostname, ok := envStr(env, "hostname")
	if !ok {
		return nil, false
	}
	traceName, ok := envStr(env, "trace_name")
	if !ok {
		return nil, false
	}
	creationDatetime, ok := envStr(env, "trace_creation_datetime")
	if !ok || !validISO8601(creationDatetime) {
		return nil, false
	}
	domain, ok := envStr(env, "domain")
	if !ok {
		return nil, false
	}

	segs := []string{hostname, fmt.Sprintf("%s-%s", traceName, creationDatetime), domain}

	if domain != "ust" {
		return segs, true
	}

	scheme, ok := envStr(env, "tracer_buffering_scheme")
	if !ok {
		return nil, false
	}
	segs = append(segs, scheme)

	switch scheme {
	case "uid":
		bufferingID, ok := envInt(env, "tracer_buffering_id")
		if !ok {
			return nil, false
		}
		archBits, ok := envInt(env, "architecture_bit_width")
		if !ok {
			return nil, false
		}
		segs = append(segs, fmt.Sprintf("%d", bufferingID), fmt.Sprintf("%d-bit", archBits))
	case "pid":
		procname, ok := envStr(env, "procname")
		if !ok {
			return nil, false
		}
		vpid, ok := envInt(env, "vpid")
		if !ok {
			return nil, false
		}
		vpidDatetime, ok := envStr(env, "vpid_datetime")
		if !ok || !validISO8601(vpidDatetime) {
			return nil, false
		}
		segs = append(segs, fmt.Sprintf("%s-%d-%s", procname, vpid, vpidDatetime))
	}

	return segs, true
}

func envStr(env map[string]irsrc.EnvValue, name string) (string, bool) {
	v, ok := env[name]
	if !ok || !v.IsString || v.Str == "" {
		return "", false
	}
	return v.Str, true
}

func envInt(env map[string]irsrc.EnvValue, name string) (int64, bool) {
	v, ok := env[name]
	if !ok || v.IsString {
		return 0, false
	}
	return v.Int, true
}

func validISO8601(s string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// sanitize implements spec.md §4.5 step 3 on every "/"-separated
// segment of p independently (I5: idempotent).
func sanitize(p string) string {
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s == "" {
			continue
		}
		switch s {
		case ".":
			s = "_"
		case "..":
			s = "__"
		}
		s = strings.TrimRight(s, "/")
		if s == "" {
			s = "trace"
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return "trace"
	}
	return strings.Join(out, "/")
}

// uniquify implements spec.md §4.5 step 4.
func uniquify(base_, sanitized string) (string, error) {
	candidate := filepath.Join(base_, sanitized)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	} else if err != nil {
		return "", sinkerr.Wrap(sinkerr.IO, "tracepath.uniquify", err)
	}
	for i := 0; ; i++ {
		candidate = filepath.Join(base_, fmt.Sprintf("%s-%d", sanitized, i))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", sinkerr.Wrap(sinkerr.IO, "tracepath.uniquify", err)
		}
	}
}

func create(log *base.LogObject, path string) error {
	if _, err := os.Stat(path); err != nil {
		log.Debugf("tracepath: create %s", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			return sinkerr.Wrap(sinkerr.IO, "tracepath.create", err)
		}
	}
	return nil
}
