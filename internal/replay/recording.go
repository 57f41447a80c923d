// Package replay feeds recorded landmark files through the rep analyser,
// either locally (dry run) or as sessions on a RepCoach server.
package replay

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
)

// maxLineBytes bounds one JSONL line; 33 landmarks fit comfortably.
const maxLineBytes = 1 << 20

// Header is the first line of a recording.
type Header struct {
	Exercise reps.Workout `json:"exercise"`
}

// Record is one recorded line: a landmark frame, a heart rate sample, or both.
type Record struct {
	T         Timestamp       `json:"t"`
	Landmarks []pose.Landmark `json:"landmarks,omitempty"`
	BPM       int             `json:"bpm,omitempty"`
}

// Frame returns the record's landmarks as a frame.
func (r Record) Frame() pose.Frame {
	return pose.Frame{Landmarks: r.Landmarks}
}

// Timestamp accepts RFC 3339 strings or Unix milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// Recording is a parsed recording file.
type Recording struct {
	Header  Header
	Records []Record
	// Rejected holds "line N: reason" for lines that did not parse.
	Rejected []string
}

// Parse reads a JSONL recording. Blank lines are skipped and malformed lines
// are collected in Rejected; only a bad header fails the whole file.
func Parse(r io.Reader) (*Recording, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	rec := &Recording{}
	lineNo := 0
	seenHeader := false
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		if !seenHeader {
			if err := json.Unmarshal(line, &rec.Header); err != nil {
				return nil, fmt.Errorf("line %d: header: %w", lineNo, err)
			}
			if !rec.Header.Exercise.Valid() {
				return nil, fmt.Errorf("line %d: header has no exercise", lineNo)
			}
			seenHeader = true
			continue
		}

		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			rec.Rejected = append(rec.Rejected, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		if len(r.Landmarks) == 0 && r.BPM <= 0 {
			rec.Rejected = append(rec.Rejected, fmt.Sprintf("line %d: no landmarks or bpm", lineNo))
			continue
		}
		rec.Records = append(rec.Records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	if !seenHeader {
		return nil, fmt.Errorf("empty recording")
	}
	return rec, nil
}

// ReadFile parses a recording from disk, decompressing .gz files.
func ReadFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	rec, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
