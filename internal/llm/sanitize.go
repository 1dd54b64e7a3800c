package llm

import "strings"

// CleanOutput normalizes raw model output before it is stored or parsed:
// reasoning tags are dropped and one surrounding markdown fence is removed.
func CleanOutput(s string) string {
	return stripFences(StripThinkingTags(s))
}

// StripThinkingTags removes <think>...</think> blocks from model output.
// Some models wrap their chain of thought in these tags.
func StripThinkingTags(s string) string {
	const openTag, closeTag = "<think>", "</think>"
	for {
		start := strings.Index(s, openTag)
		if start == -1 {
			return strings.TrimSpace(s)
		}
		end := strings.Index(s, closeTag)
		if end == -1 {
			return strings.TrimSpace(s[:start])
		}
		s = s[:start] + s[end+len(closeTag):]
	}
}

// stripFences removes one outermost ``` fence pair if the whole output is
// wrapped in it, which multimodal models tend to do for report prompts.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	last := len(lines) - 1
	if last < 1 || !strings.HasPrefix(strings.TrimSpace(lines[last]), "```") {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:last], "\n"))
}
