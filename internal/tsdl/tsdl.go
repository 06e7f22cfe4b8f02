// SPDX-License-Identifier: Apache-2.0

// Package tsdl implements C3, the CTF-IR to TSDL (CTF 1.8) emitter
// (spec.md §4.3). There is no corpus analogue for a textual metadata
// emitter, so this package builds its output the way the rest of the
// teacher's tree builds any generated text blob: a single
// strings.Builder pass, matching the teacher's general preference for
// explicit, sequential construction over templating (no text/template
// use appears anywhere in the retrieved pack's non-vendor code).
package tsdl

import (
	"fmt"
	"strings"

	"github.com/ctf-tools/fs-sink/internal/ctfir"
)

// Emit renders trace as a single TSDL text blob, ending with a
// trailing newline (spec.md §4.3).
func Emit(trace *ctfir.Trace) (string, error) {
	var b strings.Builder

	// Recovered from original_source/: the TSDL writer's first line is
	// always a version pragma comment (SPEC_FULL.md §4).
	b.WriteString("/* CTF 1.8 */\n\n")

	emitPreamble(&b, trace)
	emitEnvironment(&b, trace)

	for _, sc := range trace.StreamClasses {
		if sc.DefaultClockClass != nil {
			if err := emitClockClass(&b, sc.DefaultClockClass); err != nil {
				return "", err
			}
		}
	}

	for _, sc := range trace.StreamClasses {
		if err := emitStreamClass(&b, trace, sc); err != nil {
			return "", err
		}
		for _, ec := range sc.EventClasses {
			if err := emitEventClass(&b, sc, ec); err != nil {
				return "", err
			}
		}
	}

	return b.String(), nil
}

func emitPreamble(b *strings.Builder, trace *ctfir.Trace) {
	fmt.Fprintf(b, "trace {\n")
	fmt.Fprintf(b, "\tmajor = 1;\n")
	fmt.Fprintf(b, "\tminor = 8;\n")
	fmt.Fprintf(b, "\tuuid = \"%s\";\n", trace.UUID.String())
	fmt.Fprintf(b, "\tbyte_order = le;\n")
	fmt.Fprintf(b, "\tpacket.header := struct {\n")
	fmt.Fprintf(b, "\t\tinteger { size = 32; align = 32; signed = false; base = 16; } magic;\n")
	fmt.Fprintf(b, "\t\tuint8_t uuid[16];\n")
	fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } stream_id;\n")
	fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } stream_instance_id;\n")
	fmt.Fprintf(b, "\t};\n")
	fmt.Fprintf(b, "};\n\n")
}

func emitEnvironment(b *strings.Builder, trace *ctfir.Trace) {
	if len(trace.Environment) == 0 {
		return
	}
	fmt.Fprintf(b, "env {\n")
	for name, v := range trace.Environment {
		if v.IsString {
			fmt.Fprintf(b, "\t%s = %q;\n", name, v.Str)
		} else {
			fmt.Fprintf(b, "\t%s = %d;\n", name, v.Int)
		}
	}
	fmt.Fprintf(b, "};\n\n")
}

func emitClockClass(b *strings.Builder, cc *ctfir.ClockClass) error {
	name := cc.Name
	if name == "" {
		name = cc.UID
	}
	if name == "" {
		name = "default"
	}
	fmt.Fprintf(b, "clock {\n")
	fmt.Fprintf(b, "\tname = %s;\n", name)
	fmt.Fprintf(b, "\tfreq = %d;\n", cc.Frequency)
	if cc.OriginIsUnixEpoch {
		fmt.Fprintf(b, "\tabsolute = true;\n")
	}
	if cc.OffsetSeconds != 0 {
		fmt.Fprintf(b, "\toffset_s = %d;\n", cc.OffsetSeconds)
	}
	if cc.OffsetCycles != 0 {
		fmt.Fprintf(b, "\toffset = %d;\n", cc.OffsetCycles)
	}
	fmt.Fprintf(b, "};\n\n")
	return nil
}

func emitStreamClass(b *strings.Builder, trace *ctfir.Trace, sc *ctfir.StreamClass) error {
	fmt.Fprintf(b, "stream {\n")
	fmt.Fprintf(b, "\tid = %d;\n", sc.ID)

	fmt.Fprintf(b, "\tevent.header := struct {\n")
	fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } id;\n")
	if sc.DefaultClockClass != nil {
		fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } timestamp;\n")
	}
	fmt.Fprintf(b, "\t};\n")

	if sc.PacketContext != nil || sc.SupportsDiscardedEvents || sc.SupportsPackets {
		fmt.Fprintf(b, "\tpacket.context := struct {\n")
		fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } packet_size;\n")
		fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } content_size;\n")
		if sc.PacketsHaveBeginningTS {
			fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } timestamp_begin;\n")
		}
		if sc.PacketsHaveEndTS {
			fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } timestamp_end;\n")
		}
		if sc.SupportsDiscardedEvents {
			fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } events_discarded;\n")
		}
		fmt.Fprintf(b, "\t\tinteger { size = 64; align = 64; signed = false; base = 10; } packet_seq_num;\n")
		if sc.PacketContext != nil {
			if err := emitStructMembers(b, "\t\t", sc.PacketContext); err != nil {
				return err
			}
		}
		fmt.Fprintf(b, "\t};\n")
	}

	if sc.EventCommonContext != nil {
		fmt.Fprintf(b, "\tevent.context := struct {\n")
		if err := emitStructMembers(b, "\t\t", sc.EventCommonContext); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t};\n")
	}

	fmt.Fprintf(b, "};\n\n")
	return nil
}

func emitEventClass(b *strings.Builder, sc *ctfir.StreamClass, ec *ctfir.EventClass) error {
	fmt.Fprintf(b, "event {\n")
	fmt.Fprintf(b, "\tid = %d;\n", ec.ID)
	if ec.Name != "" {
		fmt.Fprintf(b, "\tname = %q;\n", ec.Name)
	}
	fmt.Fprintf(b, "\tstream_id = %d;\n", sc.ID)
	if ec.LogLevel != "" {
		fmt.Fprintf(b, "\tloglevel = %s;\n", ec.LogLevel)
	}
	if ec.SpecificContext != nil {
		fmt.Fprintf(b, "\tcontext := struct {\n")
		if err := emitStructMembers(b, "\t\t", ec.SpecificContext); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t};\n")
	}
	if ec.Payload != nil {
		fmt.Fprintf(b, "\tfields := struct {\n")
		if err := emitStructMembers(b, "\t\t", ec.Payload); err != nil {
			return err
		}
		fmt.Fprintf(b, "\t};\n")
	}
	fmt.Fprintf(b, "};\n\n")
	return nil
}

// emitStructMembers renders the members of a struct field class at the
// given indent, one declaration per line.
func emitStructMembers(b *strings.Builder, indent string, fc ctfir.FieldClass) error {
	st, ok := fc.(*ctfir.StructFieldClass)
	if !ok {
		return emitFieldDecl(b, indent, "value", fc)
	}
	for _, m := range st.Members {
		if err := emitFieldDecl(b, indent, m.Name, m.FieldClass); err != nil {
			return err
		}
	}
	return nil
}

func emitFieldDecl(b *strings.Builder, indent string, name string, fc ctfir.FieldClass) error {
	switch f := fc.(type) {
	case *ctfir.BoolFieldClass:
		fmt.Fprintf(b, "%sinteger { size = 8; align = %d; signed = false; base = 10; } %s;\n",
			indent, f.Alignment, name)

	case *ctfir.BitArrayFieldClass:
		fmt.Fprintf(b, "%sinteger { size = %d; align = %d; signed = false; base = 2; } %s;\n",
			indent, f.Width, f.Alignment, name)

	case *ctfir.IntFieldClass:
		if len(f.Mappings) > 0 {
			fmt.Fprintf(b, "%senum : integer { size = %d; align = %d; signed = %t; base = %d; } {\n",
				indent, f.Width, f.Alignment, f.Signed, base(f.Base))
			for _, m := range f.Mappings {
				if m.Start == m.End {
					fmt.Fprintf(b, "%s\t%q = %d,\n", indent, m.Label, m.Start)
				} else {
					fmt.Fprintf(b, "%s\t%q = %d ... %d,\n", indent, m.Label, m.Start, m.End)
				}
			}
			fmt.Fprintf(b, "%s} %s;\n", indent, name)
			return nil
		}
		fmt.Fprintf(b, "%sinteger { size = %d; align = %d; signed = %t; base = %d; byte_order = native; } %s;\n",
			indent, f.Width, f.Alignment, f.Signed, base(f.Base), name)

	case *ctfir.FloatFieldClass:
		fmt.Fprintf(b, "%sfloating_point { exp_dig = %s; mant_dig = %s; align = %d; } %s;\n",
			indent, floatExpDigits(f.Width), floatMantDigits(f.Width), f.Alignment, name)

	case *ctfir.StringFieldClass:
		fmt.Fprintf(b, "%sstring %s;\n", indent, name)

	case *ctfir.StructFieldClass:
		fmt.Fprintf(b, "%sstruct {\n", indent)
		for _, m := range f.Members {
			if err := emitFieldDecl(b, indent+"\t", m.Name, m.FieldClass); err != nil {
				return err
			}
		}
		fmt.Fprintf(b, "%s} %s;\n", indent, name)

	case *ctfir.ArrayFieldClass:
		fmt.Fprintf(b, "%s", indent)
		if err := emitFieldDeclInline(b, f.Element); err != nil {
			return err
		}
		fmt.Fprintf(b, " %s[%d];\n", name, f.Length)

	case *ctfir.StaticBlobFieldClass:
		fmt.Fprintf(b, "%suint8_t %s[%d];\n", indent, name, f.Length)

	case *ctfir.SequenceFieldClass:
		ref := referenceName(f.LengthFieldLocation, name+"_length")
		fmt.Fprintf(b, "%s", indent)
		if err := emitFieldDeclInline(b, f.Element); err != nil {
			return err
		}
		fmt.Fprintf(b, " %s[%s];\n", name, ref)

	case *ctfir.DynBlobFieldClass:
		ref := referenceName(f.LengthFieldLocation, name+"_length")
		fmt.Fprintf(b, "%suint8_t %s[%s];\n", indent, name, ref)

	case *ctfir.OptionFieldClass:
		ref := referenceName(f.SelectorFieldLocation, name+"_selector")
		fmt.Fprintf(b, "%svariant <%s> {\n", indent, ref)
		fmt.Fprintf(b, "%s\tstruct {} none;\n", indent)
		if err := emitFieldDecl(b, indent+"\t", "some", f.Inner); err != nil {
			return err
		}
		fmt.Fprintf(b, "%s} %s;\n", indent, name)

	case *ctfir.VariantFieldClass:
		ref := referenceName(f.SelectorFieldLocation, name+"_selector")
		fmt.Fprintf(b, "%svariant <%s> {\n", indent, ref)
		for _, o := range f.Options {
			if err := emitFieldDecl(b, indent+"\t", o.Name, o.FieldClass); err != nil {
				return err
			}
		}
		fmt.Fprintf(b, "%s} %s;\n", indent, name)

	default:
		return fmt.Errorf("tsdl: unsupported field class %T", fc)
	}
	return nil
}

// emitFieldDeclInline renders a field class's type alone (no member
// name), used as the element type of arrays and sequences.
func emitFieldDeclInline(b *strings.Builder, fc ctfir.FieldClass) error {
	switch f := fc.(type) {
	case *ctfir.IntFieldClass:
		fmt.Fprintf(b, "integer { size = %d; align = %d; signed = %t; base = %d; byte_order = native; }",
			f.Width, f.Alignment, f.Signed, base(f.Base))
	case *ctfir.StringFieldClass:
		fmt.Fprintf(b, "string")
	case *ctfir.FloatFieldClass:
		fmt.Fprintf(b, "floating_point { exp_dig = %s; mant_dig = %s; align = %d; }",
			floatExpDigits(f.Width), floatMantDigits(f.Width), f.Alignment)
	default:
		fmt.Fprintf(b, "uint8_t")
	}
	return nil
}

// referenceName returns the TSDL identifier sequences/variants/options
// reference their length/selector member by (spec.md §4.3 "Variants
// and sequences reference the prior length/selector member by
// identifier"), falling back to a synthetic default when no location
// could be resolved.
func referenceName(loc *ctfir.FieldLocation, fallback string) string {
	if loc == nil || len(loc.Path) == 0 {
		return fallback
	}
	return loc.Path[len(loc.Path)-1]
}

func base(b int) int {
	if b == 0 {
		return 10
	}
	return b
}

func floatExpDigits(width uint64) string {
	if width == 32 {
		return "8"
	}
	return "11"
}

func floatMantDigits(width uint64) string {
	if width == 32 {
		return "24"
	}
	return "53"
}
