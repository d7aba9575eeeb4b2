package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tetratelabs/wazero/api"
)

// LogMessageWire is the JSON a unit passes to log_message.
type LogMessageWire struct {
	Level   string        `json:"level"`
	Message string        `json:"message"`
	Attrs   []LogAttrWire `json:"attrs,omitempty"`
}

// LogAttrWire represents a single slog attribute.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"` // "string", "int64", "bool", "float64", "time", "error", "any"
	Value string `json:"value"`
}

// LogMessage implements the `log_message` host function. It receives a packed
// uint64 (ptr+len) pointing to a JSON-encoded LogMessageWire and returns
// nothing. Malformed messages are dropped.
func LogMessage(ctx context.Context, mod api.Module, stack []uint64, scrub Scrubber) {
	logger := loggerFromContext(ctx)
	if name, ok := UnitNameFromContext(ctx); ok {
		logger = logger.With("unit", name)
	}

	ptr, length := unpackPtrLen(stack[0])
	raw, ok := readGuest(mod, ptr, length)
	if !ok {
		logger.ErrorContext(ctx, "hostfuncs: failed to read log message from guest memory")
		return
	}

	var msg LogMessageWire
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.ErrorContext(ctx, "hostfuncs: failed to unmarshal log message", "error", err)
		return
	}

	text := msg.Message
	attrs := convertLogAttrs(msg.Attrs)
	if scrub != nil {
		text = scrub.ScrubString(text)
		for i, a := range attrs {
			if a.Value.Kind() == slog.KindString {
				attrs[i] = slog.String(a.Key, scrub.ScrubString(a.Value.String()))
			}
		}
	}

	logger.LogAttrs(ctx, parseLogLevel(msg.Level), text, attrs...)
}

func parseLogLevel(levelStr string) slog.Level {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func convertLogAttrs(wireAttrs []LogAttrWire) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(wireAttrs))
	for _, attr := range wireAttrs {
		attrs = append(attrs, convertSingleAttr(attr))
	}
	return attrs
}

func convertSingleAttr(attr LogAttrWire) slog.Attr {
	switch attr.Type {
	case "int64":
		if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
			return slog.Int64(attr.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(attr.Value); err == nil {
			return slog.Bool(attr.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
			return slog.Float64(attr.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, attr.Value); err == nil {
			return slog.Time(attr.Key, v)
		}
	case "error":
		return slog.Any(attr.Key, fmt.Errorf("%s", attr.Value))
	}
	return slog.String(attr.Key, attr.Value)
}
