package escalation

import (
	"regexp"
	"strings"
)

// tagRule binds a bracketed tag to a response type. Rules are evaluated in
// order; the first tag present in the reply determines the type, so
// precedence is data, auditable and testable in isolation.
type tagRule struct {
	tag      string
	respType ResponseType
}

var tagRules = []tagRule{
	{"INSTRUCTION", TypeInstruction},
	{"RESOLVE", TypeResolve},
	{"DRAFT", TypeDraft},
	{"TAKEOVER", TypeTakeover},
}

// knowledgeTag marks content for knowledge extraction without selecting a
// response type of its own.
const knowledgeTag = "KB"

var knownTags = []string{"INSTRUCTION", "RESOLVE", "DRAFT", "KB", "TAKEOVER"}

var (
	quoteHeaderPattern = regexp.MustCompile(`(?i)^On .+ wrote:\s*$`)
	mobileSigPattern   = regexp.MustCompile(`(?i)^Sent from my .+$`)
)

// ParsedResponse is the typed result of parsing a supervisor reply.
type ParsedResponse struct {
	Type    ResponseType `json:"type"`
	Tags    []string     `json:"tags"`
	Content string       `json:"content"`
	// KnowledgeTagged reports an explicit [KB] marker, which submits the
	// content for knowledge extraction regardless of length.
	KnowledgeTagged bool `json:"knowledge_tagged"`
}

// ParseResponse scans a reply body for bracketed action tags
// (case-insensitive), strips them and quoted-reply boilerplate, and returns
// the typed action. A reply with no recognized tag is a relay.
func ParseResponse(body string) ParsedResponse {
	parsed := ParsedResponse{
		Type: TypeRelay,
		Tags: []string{},
	}

	remaining := body
	for _, tag := range knownTags {
		pattern := regexp.MustCompile(`(?i)\[` + tag + `\]`)
		if pattern.MatchString(remaining) {
			parsed.Tags = append(parsed.Tags, tag)
			remaining = pattern.ReplaceAllString(remaining, "")
			if tag == knowledgeTag {
				parsed.KnowledgeTagged = true
			}
		}
	}

	for _, rule := range tagRules {
		if containsTag(parsed.Tags, rule.tag) {
			parsed.Type = rule.respType
			break
		}
	}

	parsed.Content = stripQuoted(remaining)
	return parsed
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// stripQuoted removes quoted-reply boilerplate: "> " quoted lines,
// "On <date> wrote:" headers, signature separators, and mobile signatures.
// Everything from a quote header or signature separator onward is dropped.
func stripQuoted(body string) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if quoteHeaderPattern.MatchString(trimmed) {
			break
		}
		if trimmed == "--" || trimmed == "---" {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		if mobileSigPattern.MatchString(trimmed) {
			continue
		}

		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}
