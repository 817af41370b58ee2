// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func redirectLogsToBuffer(buf *bytes.Buffer, format string, level string) {
	var programLevel = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{format: format}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, ""))
	setLoggingLevel(level, programLevel)
}

func fetchOutputs(format, level string) []string {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, format, level)

	fns := []func(){
		func() { Tracef("trace") },
		func() { Debugf("debug") },
		func() { Infof("info") },
		func() { Warnf("warn") },
		func() { Errorf("error") },
	}
	var out []string
	for _, f := range fns {
		f()
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func TestSeverityFiltering(t *testing.T) {
	out := fetchOutputs("text", Warning)
	assert.Empty(t, out[0])
	assert.Empty(t, out[1])
	assert.Empty(t, out[2])
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING`), out[3])
	assert.Regexp(t, regexp.MustCompile(`severity=ERROR`), out[4])
}

func TestTraceLevelEmitsEverything(t *testing.T) {
	out := fetchOutputs("text", Trace)
	assert.Regexp(t, regexp.MustCompile(`severity=TRACE`), out[0])
	assert.Regexp(t, regexp.MustCompile(`severity=DEBUG`), out[1])
	assert.Regexp(t, regexp.MustCompile(`severity=INFO`), out[2])
}

func TestJSONFormat(t *testing.T) {
	out := fetchOutputs("json", Info)
	assert.Regexp(t, regexp.MustCompile(`"severity":"INFO"`), out[2])
}

func TestOffSuppressesAll(t *testing.T) {
	out := fetchOutputs("text", Off)
	for _, o := range out {
		assert.Empty(t, o)
	}
}

func TestSetLoggingLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{Trace, LevelTrace},
		{Debug, LevelDebug},
		{Info, LevelInfo},
		{Warning, LevelWarn},
		{Error, LevelError},
		{Off, LevelOff},
	}
	for _, c := range cases {
		lv := new(slog.LevelVar)
		setLoggingLevel(c.input, lv)
		assert.Equal(t, c.want, lv.Level())
	}
}
