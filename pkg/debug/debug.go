// Package debug adds per-category debug output on top of slog.
//
// Categories pick what is logged (LFC_DEBUG, a comma-separated list or
// "all"); the level picks how much (LFC_LOG_LEVEL). Category output is
// emitted at DEBUG, so both must allow it:
//
//	LFC_DEBUG=funccall,providers LFC_LOG_LEVEL=DEBUG lfc serve
//
// At TRACE, JSON dumps are no longer truncated and Raw prints model text
// verbatim. Categories in use: completions, funccall, providers, auth,
// config.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

const (
	EnvCategories = "LFC_DEBUG"
	EnvLevel      = "LFC_LOG_LEVEL"
)

// jsonLimit bounds JSON dumps below TRACE.
const jsonLimit = 2000

type categorySet map[string]struct{}

var enabled atomic.Pointer[categorySet]

// rawOut receives Raw output.
var rawOut io.Writer = os.Stderr

func init() {
	setCategories(os.Getenv(EnvCategories))
}

// Init applies the configured categories and level and installs a text
// handler on stderr as the slog default. A non-empty LFC_DEBUG or
// LFC_LOG_LEVEL wins over the matching argument.
func Init(categories, level string) {
	setCategories(cmpEnv(EnvCategories, categories))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(cmpEnv(EnvLevel, level)),
	})))
}

func cmpEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setCategories(s string) {
	set := parseCategories(s)
	enabled.Store(&set)
}

func parseCategories(s string) categorySet {
	set := make(categorySet)
	for part := range strings.SplitSeq(s, ",") {
		if cat := strings.ToLower(strings.TrimSpace(part)); cat != "" {
			set[cat] = struct{}{}
		}
	}
	return set
}

// Enabled reports whether category is switched on, directly or by "all".
func Enabled(category string) bool {
	set := *enabled.Load()
	_, all := set["all"]
	_, one := set[category]
	return all || one
}

// Categories lists the enabled categories in order.
func Categories() []string {
	return slices.Sorted(maps.Keys(*enabled.Load()))
}

func Log(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Debug(msg, append([]any{"debug", category}, args...)...)
	}
}

func Trace(category, msg string, args ...any) {
	if Enabled(category) {
		slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
	}
}

// TraceEnabled reports whether category is on and the level reaches TRACE.
func TraceEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// JSON logs v as JSON under key. Nothing is encoded when category is off.
func JSON(category, msg, key string, v any) {
	if !Enabled(category) {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug(msg, "debug", category, key+"_error", err.Error())
		return
	}
	text := string(data)
	if !TraceEnabled(category) {
		text = Truncate(text, jsonLimit)
	}
	slog.Debug(msg, "debug", category, key, text)
}

// Raw prints text unformatted, for output meant to be copied as is. It is
// silent below TRACE.
func Raw(category, text string) {
	if TraceEnabled(category) {
		fmt.Fprintln(rawOut, text)
	}
}

// ParseLevel accepts TRACE, WARNING and anything slog.Level parses, in any
// case. Unknown or empty input means INFO.
func ParseLevel(s string) slog.Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "TRACE":
		return LevelTrace
	case "WARNING":
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Truncate cuts s to at most maxLen bytes, backing off to a rune boundary,
// and marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
