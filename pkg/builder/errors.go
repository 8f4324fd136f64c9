package builder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// Per-language error-line patterns, exactly as spec.md §6 enumerates:
//
//	file.cs(line,col): error CSxxxx: msg
//	file.ts(line,col): error TSxxxx: msg
//	file.java:line: error: msg
//	Python lines containing SyntaxError|IndentationError
var (
	csharpErrorPattern     = regexp.MustCompile(`^(?P<file>\S+)\((?P<line>\d+),\d+\): (?P<kind>error|warning) (?P<code>\w+): (?P<msg>.+)$`)
	typescriptErrorPattern = regexp.MustCompile(`^(?P<file>\S+)\((?P<line>\d+),\d+\): (?P<kind>error|warning) (?P<code>\w+): (?P<msg>.+)$`)
	javaErrorPattern       = regexp.MustCompile(`^(?P<file>\S+):(?P<line>\d+): (?P<kind>error|warning): (?P<msg>.+)$`)
	pythonErrorPattern     = regexp.MustCompile(`(?P<kind>SyntaxError|IndentationError)(: (?P<msg>.+))?`)
)

// parseErrors scans a toolchain's combined output line by line, matching
// the pattern for language and turning each match into a BuilderError with
// severity 8 (error) or 4 (warning).
func parseErrors(language, output string) []swarmtypes.BuilderError {
	var pattern *regexp.Regexp
	switch language {
	case "typescript":
		pattern = typescriptErrorPattern
	case "java":
		pattern = javaErrorPattern
	case "python":
		pattern = pythonErrorPattern
	default:
		pattern = csharpErrorPattern
	}

	var out []swarmtypes.BuilderError
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		out = append(out, builderErrorFromMatch(pattern, match, line))
	}
	return out
}

func builderErrorFromMatch(pattern *regexp.Regexp, match []string, line string) swarmtypes.BuilderError {
	groups := make(map[string]string, len(match))
	for i, name := range pattern.SubexpNames() {
		if name == "" || i >= len(match) {
			continue
		}
		groups[name] = match[i]
	}

	msg := groups["msg"]
	if msg == "" {
		msg = line
	}

	lineNumber, _ := strconv.Atoi(groups["line"])

	severity := 8
	if groups["kind"] == "warning" {
		severity = 4
	}

	errorType := groups["code"]
	if errorType == "" {
		errorType = groups["kind"]
	}
	if errorType == "" {
		errorType = "BuildError"
	}

	return swarmtypes.BuilderError{
		ErrorID:      uuid.NewString(),
		FileName:     groups["file"],
		LineNumber:   lineNumber,
		ErrorType:    errorType,
		ErrorMessage: msg,
		Severity:     severity,
	}
}
