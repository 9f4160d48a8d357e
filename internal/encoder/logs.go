package encoder

import (
	"bytes"
	"errors"
	"strings"
)

// Startup failures classified from the encoder's diagnostic output.
var (
	ErrUnknown          = errors.New("encoder failed to start")
	ErrUnknownHost      = errors.New("destination host could not be resolved")
	ErrConnectionFailed = errors.New("connection to destination failed")
	ErrTimeout          = errors.New("connection to destination timed out")
	ErrForbidden        = errors.New("destination rejected the stream")
)

// StartErrFromLogs infers a startup error from the encoder's diagnostic
// output. It classifies each fatal or error line against well-known ffmpeg
// failure messages and returns the first match.
func StartErrFromLogs(logs [][]byte) error {
	for _, logBytes := range logs {
		if !bytes.Contains(logBytes, []byte("[fatal]")) && !bytes.Contains(logBytes, []byte("[error]")) {
			continue
		}
		if err := classifyLogLine(string(logBytes)); err != nil {
			return err
		}
	}
	return ErrUnknown
}

func classifyLogLine(line string) error {
	switch {
	case strings.Contains(line, "Name does not resolve"),
		strings.Contains(line, "Failed to resolve hostname"):
		return ErrUnknownHost
	case strings.Contains(line, "timed out"):
		return ErrTimeout
	case strings.Contains(line, "Broken pipe"),
		strings.Contains(line, "Connection refused"):
		return ErrConnectionFailed
	case strings.Contains(line, "Access denied"),
		strings.Contains(line, "Authentication failed"):
		return ErrForbidden
	default:
		return nil
	}
}

// hintFromLogLine turns a single diagnostic output line into a
// human-readable hint, or returns an empty string. The matching is
// heuristic substring scanning and deliberately non-authoritative.
func hintFromLogLine(line []byte) string {
	s := string(line)

	switch {
	case strings.Contains(s, "drop"):
		return "encoder reported dropped data: " + s
	case strings.Contains(s, "timed out"):
		return "encoder reported a timeout: " + s
	case strings.Contains(s, "Broken pipe"):
		return "encoder lost its downstream connection: " + s
	default:
		return ""
	}
}
