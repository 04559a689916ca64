package ai

import (
	"fmt"
	"strings"

	"github.com/NeuralTrust/ReviewGuard/pkg/domain/moderation"
	"github.com/valyala/fastjson"
)

// ParseCompletion validates a chat-completion body and extracts the verdict
// from the first choice. Every failure wraps moderation.ErrInvalidAPIResponse.
func ParseCompletion(body []byte) (*moderation.AIResult, error) {
	var p fastjson.Parser
	root, err := p.ParseBytes(body)
	if err != nil {
		return nil, invalid("response is not json: %v", err)
	}
	if root.Type() != fastjson.TypeObject {
		return nil, invalid("response is not an object")
	}
	choices := root.Get("choices")
	if choices == nil || choices.Type() != fastjson.TypeArray {
		return nil, invalid("response has no choices array")
	}
	items := choices.GetArray()
	if len(items) == 0 {
		return nil, invalid("choices array is empty")
	}
	content := items[0].Get("message", "content")
	if content == nil || content.Type() != fastjson.TypeString {
		return nil, invalid("first choice has no message content")
	}
	return ExtractVerdict(string(content.GetStringBytes()))
}

// ExtractVerdict pulls the (optionally fenced) JSON object out of message
// content and checks it against the verdict schema.
func ExtractVerdict(content string) (*moderation.AIResult, error) {
	raw := extractJSONObject(content)
	if raw == "" {
		return nil, invalid("no json object in message content")
	}

	var p fastjson.Parser
	v, err := p.Parse(raw)
	if err != nil {
		return nil, invalid("malformed verdict json: %v", err)
	}
	return decodeVerdict(v)
}

func extractJSONObject(content string) string {
	text := strings.TrimSpace(content)
	if i := strings.Index(text, "```"); i != -1 {
		fenced := text[i+3:]
		if nl := strings.IndexByte(fenced, '\n'); nl != -1 {
			fenced = fenced[nl+1:]
		}
		if j := strings.Index(fenced, "```"); j != -1 {
			fenced = fenced[:j]
		}
		text = fenced
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func decodeVerdict(v *fastjson.Value) (*moderation.AIResult, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, invalid("verdict is not an object")
	}
	for _, field := range []string{"status", "tags", "issues", "confidence"} {
		if !v.Exists(field) {
			return nil, invalid("verdict is missing %q", field)
		}
	}

	var result moderation.AIResult

	status := v.Get("status")
	if status.Type() != fastjson.TypeString {
		return nil, invalid("status must be a string")
	}
	result.Status = moderation.Status(status.GetStringBytes())
	if !result.Status.Valid() {
		return nil, invalid("unknown status %q", result.Status)
	}

	tags := v.Get("tags")
	if !validTags(tags) {
		return nil, invalid("tags must be a string or a list of strings")
	}
	result.Tags = tags.MarshalTo(nil)

	confidence := v.Get("confidence")
	if confidence.Type() != fastjson.TypeNumber {
		return nil, invalid("confidence must be a number")
	}
	result.Confidence = confidence.GetFloat64()
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, invalid("confidence %v is outside [0,1]", result.Confidence)
	}

	issues := v.Get("issues")
	if issues.Type() != fastjson.TypeArray {
		return nil, invalid("issues must be a list")
	}
	result.Issues = make([]moderation.Issue, 0, len(issues.GetArray()))
	for i, item := range issues.GetArray() {
		issue, err := decodeIssue(item)
		if err != nil {
			return nil, invalid("issue %d: %v", i, err)
		}
		result.Issues = append(result.Issues, issue)
	}

	return &result, nil
}

func validTags(v *fastjson.Value) bool {
	switch v.Type() {
	case fastjson.TypeString:
		return true
	case fastjson.TypeArray:
		for _, t := range v.GetArray() {
			if t.Type() != fastjson.TypeString {
				return false
			}
		}
		return true
	}
	return false
}

func decodeIssue(v *fastjson.Value) (moderation.Issue, error) {
	var issue moderation.Issue
	if v.Type() != fastjson.TypeObject {
		return issue, fmt.Errorf("not an object")
	}

	for _, field := range []string{"category", "description"} {
		f := v.Get(field)
		if f == nil || f.Type() != fastjson.TypeString {
			return issue, fmt.Errorf("%s must be a string", field)
		}
	}
	issue.Category = string(v.GetStringBytes("category"))
	issue.Description = string(v.GetStringBytes("description"))

	law := v.Get("law")
	switch {
	case law == nil:
		return issue, fmt.Errorf("law is missing")
	case law.Type() == fastjson.TypeNull:
	case law.Type() == fastjson.TypeString:
		s := string(law.GetStringBytes())
		issue.Law = &s
	default:
		return issue, fmt.Errorf("law must be a string or null")
	}

	if code := v.Get("code"); code != nil {
		switch code.Type() {
		case fastjson.TypeString:
			issue.Code = string(code.GetStringBytes())
		case fastjson.TypeNumber:
			issue.Code = code.String()
		case fastjson.TypeNull:
		default:
			return issue, fmt.Errorf("code must be a string or a number")
		}
	}

	return issue, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", moderation.ErrInvalidAPIResponse, fmt.Sprintf(format, args...))
}
