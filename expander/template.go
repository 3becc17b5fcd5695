package expander

import (
	"fmt"
	"strings"
)

// ChatTemplate renders a single system + user turn into the raw prompt a
// chat-tuned model expects, ending with the assistant generation header.
type ChatTemplate struct {
	Name            string
	SystemHeader    string
	UserHeader      string
	AssistantHeader string
	// EOS closes a turn. BOS is a token some tokenizers prepend; it is
	// stripped when matching the input inside the output.
	EOS string
	BOS string
}

var (
	// Zephyr is the TinyLlama-Chat format.
	Zephyr = ChatTemplate{
		Name:            "zephyr",
		SystemHeader:    "<|system|>\n",
		UserHeader:      "<|user|>\n",
		AssistantHeader: "<|assistant|>\n",
		EOS:             "</s>",
		BOS:             "<s>",
	}

	ChatML = ChatTemplate{
		Name:            "chatml",
		SystemHeader:    "<|im_start|>system\n",
		UserHeader:      "<|im_start|>user\n",
		AssistantHeader: "<|im_start|>assistant\n",
		EOS:             "<|im_end|>",
	}
)

var templates = map[string]ChatTemplate{
	Zephyr.Name: Zephyr,
	ChatML.Name: ChatML,
}

// TemplateByName looks up a built-in template. An empty name selects Zephyr.
func TemplateByName(name string) (ChatTemplate, error) {
	if name == "" {
		return Zephyr, nil
	}
	t, ok := templates[strings.ToLower(name)]
	if !ok {
		return ChatTemplate{}, fmt.Errorf("unknown chat template %q", name)
	}
	return t, nil
}

// Render produces system turn, user turn, then the open assistant header.
func (t ChatTemplate) Render(system, user string) string {
	var b strings.Builder
	b.Grow(len(system) + len(user) + 64)
	if system != "" {
		b.WriteString(t.SystemHeader)
		b.WriteString(system)
		b.WriteString(t.EOS)
		b.WriteString("\n")
	}
	b.WriteString(t.UserHeader)
	b.WriteString(user)
	b.WriteString(t.EOS)
	b.WriteString("\n")
	b.WriteString(t.AssistantHeader)
	return b.String()
}
