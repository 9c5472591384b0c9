package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LogLevel is the ordered severity of a log entry.
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInformation
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = map[LogLevel]string{
	LevelTrace:       "Trace",
	LevelDebug:       "Debug",
	LevelInformation: "Information",
	LevelWarning:     "Warning",
	LevelError:       "Error",
	LevelCritical:    "Critical",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l LogLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ParseLogLevel resolves a level name case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	for lvl, name := range levelNames {
		if strings.EqualFold(name, s) {
			return lvl, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// MarshalJSON renders the level by name.
func (l LogLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either a level name or its numeric value.
func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		lvl, perr := ParseLogLevel(s)
		if perr != nil {
			return perr
		}
		*l = lvl
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid log level %s", data)
	}
	lvl := LogLevel(n)
	if !lvl.Valid() {
		return fmt.Errorf("log level %d out of range", n)
	}
	*l = lvl
	return nil
}
