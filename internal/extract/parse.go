package extract

import (
	"encoding/json"
	"strings"
)

// ParseFailure describes why no JSON object could be read from a model reply.
type ParseFailure struct {
	Reason string
}

func (p *ParseFailure) Error() string { return "unparseable model response: " + p.Reason }

// ExtractJSON reads the first JSON object embedded in free-form model text.
// Each fenced block is tried in order, then the whole text. Within a candidate every
// balanced top-level object is tried until one decodes; a failed object is skipped
// whole, so its nested objects are never returned on their own.
func ExtractJSON(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseFailure{Reason: "empty response"}
	}

	var firstErr string
	for _, body := range append(fencedBlocks(text), text) {
		obj, reason := firstObject(body)
		if obj != nil {
			return obj, nil
		}
		if firstErr == "" && reason != "" {
			firstErr = reason
		}
	}
	if firstErr == "" {
		firstErr = "no JSON object found"
	}
	return nil, &ParseFailure{Reason: firstErr}
}

// firstObject decodes the first balanced top-level object in body. When none decodes it
// returns the first decode error, or "" when body holds no '{' at all.
func firstObject(body string) (map[string]any, string) {
	var firstErr string
	for start := strings.IndexByte(body, '{'); start >= 0; {
		end := matchBrace(body, start)
		if end < 0 {
			if firstErr == "" {
				firstErr = "unbalanced braces"
			}
			break
		}
		var obj map[string]any
		err := json.Unmarshal([]byte(body[start:end+1]), &obj)
		if err == nil && obj != nil {
			return obj, ""
		}
		if firstErr == "" && err != nil {
			firstErr = err.Error()
		}
		next := strings.IndexByte(body[end+1:], '{')
		if next < 0 {
			break
		}
		start = end + 1 + next
	}
	return nil, firstErr
}

// fencedBlocks returns the body of every ``` block in order, without its info string.
// An unclosed final fence runs to the end of text.
func fencedBlocks(text string) []string {
	var blocks []string
	for {
		open := strings.Index(text, "```")
		if open < 0 {
			return blocks
		}
		rest := text[open+3:]
		text = ""
		if closing := strings.Index(rest, "```"); closing >= 0 {
			text = rest[closing+3:]
			rest = rest[:closing]
		}
		// drop the info string (```json)
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsRune(rest[:nl], '{') {
			rest = rest[nl+1:]
		}
		blocks = append(blocks, rest)
	}
}

// matchBrace returns the index of the brace closing s[start], skipping braces inside strings.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
