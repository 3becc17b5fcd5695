package expander

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZephyr_Render(t *testing.T) {
	got := Zephyr.Render("SYS", "a cat")
	assert.Equal(t, "<|system|>\nSYS</s>\n<|user|>\na cat</s>\n<|assistant|>\n", got)
}

func TestChatML_Render_NoSystem(t *testing.T) {
	got := ChatML.Render("", "a cat")
	assert.Equal(t, "<|im_start|>user\na cat<|im_end|>\n<|im_start|>assistant\n", got)
}

func TestTemplateByName(t *testing.T) {
	tmpl, err := TemplateByName("")
	require.NoError(t, err)
	assert.Equal(t, "zephyr", tmpl.Name)

	tmpl, err = TemplateByName("ChatML")
	require.NoError(t, err)
	assert.Equal(t, "chatml", tmpl.Name)

	_, err = TemplateByName("llama2")
	assert.Error(t, err)
}

func TestExtractReply_Cases(t *testing.T) {
	rendered := Zephyr.Render("SYS", "a cat")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"echoed input", rendered + "A ginger cat naps.</s>", "A ginger cat naps."},
		{"reply runs into next turn", rendered + "Reply.</s>\n<|user|>\nmore", "Reply."},
		{"bos prefix defeats prefix match", "<s>" + rendered + " Reply ", "Reply"},
		{"header without trailing newline", "<|assistant|>Reply", "Reply"},
		{"lossy: unmatched input survives", "<|system|>\nSYS\n<|user|>\na cat\nno header reply", "<|system|>\nSYS\n<|user|>\na cat\nno header reply"},
		{"no header, reply only", "just a reply</s>", "just a reply"},
		{"empty reply", rendered + "</s>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Zephyr.ExtractReply(tt.raw, rendered))
		})
	}
}

func TestExtractReply_StripsInputWithoutSpecials(t *testing.T) {
	tmpl := ChatTemplate{Name: "plain", UserHeader: "U: ", EOS: "</s>", BOS: "<s>"}
	rendered := tmpl.Render("", "hi")
	// decoded output drops special tokens
	raw := "<s>U: hi\nhello there"
	assert.Equal(t, "hello there", tmpl.ExtractReply(raw, rendered))
}

// Rendered prompt followed by any reply and EOS extracts exactly the reply.
func TestProperty_ExtractReplyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, tmpl := range []ChatTemplate{Zephyr, ChatML} {
		tmpl := tmpl
		properties.Property(tmpl.Name+": echoed prompt + reply yields reply", prop.ForAll(
			func(system, user, reply, tail string) bool {
				rendered := tmpl.Render(system, user)
				raw := rendered + " " + reply + " " + tmpl.EOS + tail
				return tmpl.ExtractReply(raw, rendered) == strings.TrimSpace(reply)
			},
			gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
		))

		properties.Property(tmpl.Name+": BOS-prefixed output still yields reply", prop.ForAll(
			func(system, user, reply string) bool {
				rendered := tmpl.Render(system, user)
				raw := "<s>" + rendered + reply
				return tmpl.ExtractReply(raw, rendered) == strings.TrimSpace(reply)
			},
			gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
		))
	}

	properties.TestingRun(t)
}

// Rendering always ends with the assistant header and contains the user text.
func TestProperty_RenderShape(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("render ends with assistant header", prop.ForAll(
		func(system, user string) bool {
			out := Zephyr.Render(system, user)
			return strings.HasSuffix(out, Zephyr.AssistantHeader) &&
				strings.Contains(out, Zephyr.UserHeader+user+Zephyr.EOS)
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
