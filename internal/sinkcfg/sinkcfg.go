// SPDX-License-Identifier: Apache-2.0

// Package sinkcfg parses and validates the component parameters of
// spec.md §6. It is the ambient "configuration parsing" concern
// SPEC_FULL.md §2.2 calls out, grounded on the small, explicit
// parameter structs cmd/downloader/globalconfig.go builds from pubsub
// config topics.
package sinkcfg

import (
	"github.com/ctf-tools/fs-sink/internal/sinkerr"
)

// CTFVersion is the target CTF version the sink emits metadata in.
type CTFVersion int

const (
	// CTFVersion1 is TSDL (CTF 1.8) metadata, requiring host MIP 0.
	CTFVersion1 CTFVersion = 1
	// CTFVersion2 is JSON-fragment (CTF 2) metadata, requiring host MIP 1.
	CTFVersion2 CTFVersion = 2
)

// MIPVersion required by a given CTF version, per spec.md §6's
// constraint table.
func (v CTFVersion) MIPVersion() int {
	if v == CTFVersion1 {
		return 0
	}
	return 1
}

// Config is the resolved, validated set of recognized parameters.
type Config struct {
	Path                   string
	AssumeSingleTrace      bool
	IgnoreDiscardedEvents  bool
	IgnoreDiscardedPackets bool
	Quiet                  bool
	CTFVersion             CTFVersion
}

// Params is the raw parameter bag the plugin host hands the component;
// values are strings because that is the shape host parameter maps
// arrive in (booleans and enums are all string-encoded at this
// boundary, as in the original's param-extraction helpers).
type Params map[string]string

// Parse validates and resolves params into a Config. hostMIPVersion is
// the MIP version the host negotiated; it is checked against the
// resolved CTF version per spec.md §6.
func Parse(params Params, hostMIPVersion int) (*Config, error) {
	path, ok := params["path"]
	if !ok || path == "" {
		return nil, sinkerr.Configf("sinkcfg.Parse", "required parameter %q missing", "path")
	}

	cfg := &Config{
		Path:                   path,
		AssumeSingleTrace:      boolParam(params, "assume-single-trace", false),
		IgnoreDiscardedEvents:  boolParam(params, "ignore-discarded-events", false),
		IgnoreDiscardedPackets: boolParam(params, "ignore-discarded-packets", false),
		Quiet:                  boolParam(params, "quiet", false),
	}

	version, err := resolveCTFVersion(params["ctf-version"])
	if err != nil {
		return nil, err
	}
	cfg.CTFVersion = version

	if version.MIPVersion() != hostMIPVersion {
		return nil, sinkerr.Configf("sinkcfg.Parse",
			"ctf-version %d requires host MIP version %d, got %d",
			version, version.MIPVersion(), hostMIPVersion)
	}

	return cfg, nil
}

// resolveCTFVersion implements the three-way outcome spec.md §9 (Open
// Question 2) calls for: (a) absent -> v2, (b) "1"/"1.8" -> v1,
// (c) "2"/"2.0" -> v2, (d) anything else -> ConfigError. See
// DESIGN.md "Open Question Decisions" for the rationale.
func resolveCTFVersion(raw string) (CTFVersion, error) {
	switch raw {
	case "":
		return CTFVersion2, nil
	case "1", "1.8":
		return CTFVersion1, nil
	case "2", "2.0":
		return CTFVersion2, nil
	default:
		return 0, sinkerr.Configf("sinkcfg.resolveCTFVersion",
			"unrecognized ctf-version %q", raw)
	}
}

func boolParam(params Params, name string, def bool) bool {
	raw, ok := params[name]
	if !ok {
		return def
	}
	switch raw {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}
