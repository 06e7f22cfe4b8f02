// SPDX-License-Identifier: Apache-2.0

package tracepath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/ctf-tools/fs-sink/internal/base"
	"github.com/ctf-tools/fs-sink/internal/irsrc"
)

func TestSanitize(t *testing.T) {
	testMatrix := map[string]struct {
		in   string
		want string
	}{
		"plain":              {in: "hostname/trace", want: "hostname/trace"},
		"dot segment":        {in: "a/./b", want: "a/_/b"},
		"dotdot segment":     {in: "a/../b", want: "a/__/b"},
		"empty segments":     {in: "./a/../b/.//c/", want: "_/a/__/b/_/c"},
		"entirely empty":     {in: "", want: "trace"},
		"only slashes":       {in: "///", want: "trace"},
	}
	for name, tc := range testMatrix {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitize(tc.in))
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	in := "./a/../b/.//c/"
	once := sanitize(in)
	twice := sanitize(once)
	assert.Equal(t, once, twice)
}

func TestLTTngPathUST(t *testing.T) {
	env := map[string]irsrc.EnvValue{
		"tracer_name":             {IsString: true, Str: "lttng-ust"},
		"tracer_major":            {Int: 2},
		"tracer_minor":            {Int: 11},
		"hostname":                {IsString: true, Str: "myhost"},
		"trace_name":              {IsString: true, Str: "auto"},
		"trace_creation_datetime": {IsString: true, Str: "2023-01-01T00:00:00Z"},
		"domain":                  {IsString: true, Str: "ust"},
		"tracer_buffering_scheme": {IsString: true, Str: "uid"},
		"tracer_buffering_id":     {Int: 1000},
		"architecture_bit_width":  {Int: 64},
	}

	segs, ok := lttngPath(env)
	assert.True(t, ok)
	assert.Equal(t, []string{"myhost", "auto-2023-01-01T00:00:00Z", "ust", "uid", "1000", "64-bit"}, segs)
}

func TestLTTngPathRejectsOldTracer(t *testing.T) {
	env := map[string]irsrc.EnvValue{
		"tracer_name":  {IsString: true, Str: "lttng-ust"},
		"tracer_major": {Int: 2},
		"tracer_minor": {Int: 10},
	}
	_, ok := lttngPath(env)
	assert.False(t, ok)
}

func TestMakeSingleTrace(t *testing.T) {
	log := base.NewSourceLogObject(logrus.StandardLogger(), "test", 1)
	dir := filepath.Join(t.TempDir(), "single")

	got, err := Make(log, dir, true, nil, "")
	assert.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = Make(log, dir, true, nil, "")
	assert.Error(t, err)
}

func TestMakeDerivesAndUniquifies(t *testing.T) {
	log := base.NewSourceLogObject(logrus.StandardLogger(), "test", 1)
	base_ := t.TempDir()

	first, err := Make(log, base_, false, nil, "mytrace")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(base_, "mytrace"), first)

	second, err := Make(log, base_, false, nil, "mytrace")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(base_, "mytrace-0"), second)

	for _, p := range []string{first, second} {
		info, err := os.Stat(p)
		assert.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestMakeFallsBackToTrace(t *testing.T) {
	log := base.NewSourceLogObject(logrus.StandardLogger(), "test", 1)
	base_ := t.TempDir()

	got, err := Make(log, base_, false, nil, "")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(base_, "trace"), got)
}
