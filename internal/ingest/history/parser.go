package history

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/models"
)

var (
	// recordRe matches: 12,1741073460000,Push-ups,25,88
	// or with a textual date: 12;2025-03-04 07:31;"Squats";30;100
	recordRe = regexp.MustCompile(`^(\d+)[,;]\s*"?([^,;"]+?)"?\s*[,;]\s*"?([^,;"]+?)"?\s*[,;]\s*(\d+)\s*[,;]\s*(\d+)$`)

	// headerRe matches the column header line of the export.
	headerRe = regexp.MustCompile(`(?i)^"?id"?[,;]"?date"?[,;]"?exercise_?type"?[,;]"?reps"?[,;]"?score"?$`)
)

// ParseError describes a line that could not be parsed.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Parse reads a workout-history export (one finished session per line:
// id, date, exerciseType, reps, score) and returns the records it could
// parse along with per-line errors for those it could not.
func Parse(r io.Reader, loc *time.Location) ([]models.HistoryRecord, []*ParseError, error) {
	if loc == nil {
		loc = time.UTC
	}
	scanner := bufio.NewScanner(r)
	var records []models.HistoryRecord
	var rejected []*ParseError

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || headerRe.MatchString(line) {
			continue
		}

		m := recordRe.FindStringSubmatch(line)
		if m == nil {
			rejected = append(rejected, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("unrecognised record")})
			continue
		}

		id, err := parseInt32("id", m[1])
		if err != nil {
			rejected = append(rejected, &ParseError{Line: lineNo, Text: line, Err: err})
			continue
		}
		date, err := parseDate(m[2], loc)
		if err != nil {
			rejected = append(rejected, &ParseError{Line: lineNo, Text: line, Err: err})
			continue
		}
		reps, err := parseInt32("reps", m[4])
		if err != nil {
			rejected = append(rejected, &ParseError{Line: lineNo, Text: line, Err: err})
			continue
		}
		score, err := parseInt32("score", m[5])
		if err != nil {
			rejected = append(rejected, &ParseError{Line: lineNo, Text: line, Err: err})
			continue
		}
		if score > 100 {
			rejected = append(rejected, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("score %d out of range", score)})
			continue
		}

		records = append(records, models.HistoryRecord{
			LegacyID:     id,
			Date:         date,
			ExerciseType: strings.TrimSpace(m[3]),
			Reps:         reps,
			Score:        score,
		})
	}

	return records, rejected, scanner.Err()
}

// parseInt32 parses a non-negative column that must fit a PostgreSQL INTEGER.
func parseInt32(field, s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s %q out of range", field, s)
	}
	return int(n), nil
}

// parseDate accepts epoch milliseconds, RFC 3339, or "2006-01-02 15:04"
// (interpreted in loc).
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02 3:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}
