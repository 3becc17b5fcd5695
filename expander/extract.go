package expander

import "strings"

// ExtractReply isolates the assistant's reply from raw model output that
// echoes the rendered prompt.
//
// When the output starts with the rendered prompt the reply is what follows
// it. Otherwise the reply starts after the last assistant header. Either way
// it ends at the first EOS token. Without a header the known input is
// removed from the output instead. The heuristic is lossy on odd model
// output (leftover template tokens can survive); the result is always
// trimmed.
func (t ChatTemplate) ExtractReply(raw, rendered string) string {
	if rendered != "" && strings.HasPrefix(raw, rendered) {
		return t.untilEOS(raw[len(rendered):])
	}

	header := strings.TrimRight(t.AssistantHeader, "\n")
	if i := strings.LastIndex(raw, header); header != "" && i >= 0 {
		return t.untilEOS(raw[i+len(header):])
	}

	out := raw
	if rendered != "" {
		out = strings.Replace(out, rendered, "", 1)
		input := t.stripSpecial(rendered)
		if input != "" {
			out = strings.Replace(out, input, "", 1)
		}
	}
	return strings.TrimSpace(t.stripSpecial(out))
}

func (t ChatTemplate) untilEOS(reply string) string {
	if t.EOS != "" {
		if j := strings.Index(reply, t.EOS); j >= 0 {
			reply = reply[:j]
		}
	}
	return strings.TrimSpace(reply)
}

func (t ChatTemplate) stripSpecial(s string) string {
	if t.BOS != "" {
		s = strings.ReplaceAll(s, t.BOS, "")
	}
	if t.EOS != "" {
		s = strings.ReplaceAll(s, t.EOS, "")
	}
	return s
}
