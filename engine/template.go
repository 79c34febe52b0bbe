package engine

import (
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/cortex/core/protocol"
)

// ChatTemplate selects how a conversation is rendered into a single prompt
// for engines that only accept raw text.
type ChatTemplate string

const (
	TemplateLlama3 ChatTemplate = "llama3"
	TemplateChatML ChatTemplate = "chatml"
	TemplatePhi3   ChatTemplate = "phi3"
	TemplateGemma  ChatTemplate = "gemma"
	TemplateRaw    ChatTemplate = "raw"
)

// ParseChatTemplate resolves a template name. The empty string selects
// TemplateLlama3.
func ParseChatTemplate(name string) (ChatTemplate, error) {
	switch t := ChatTemplate(strings.ToLower(name)); t {
	case "":
		return TemplateLlama3, nil
	case TemplateLlama3, TemplateChatML, TemplatePhi3, TemplateGemma, TemplateRaw:
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
}

// Format renders messages as a prompt that ends with an open assistant turn.
// TemplateRaw joins message contents with newlines.
func (t ChatTemplate) Format(messages []protocol.Message) string {
	var b strings.Builder

	switch t {
	case TemplateChatML:
		for _, m := range messages {
			fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", roleName(m.Role), m.Content)
		}
		b.WriteString("<|im_start|>assistant\n")

	case TemplatePhi3:
		for _, m := range messages {
			fmt.Fprintf(&b, "<|%s|>\n%s<|end|>\n", roleName(m.Role), m.Content)
		}
		b.WriteString("<|assistant|>\n")

	case TemplateGemma:
		// Gemma has no system or tool turns; both render as user turns.
		for _, m := range messages {
			turn := "user"
			if m.Role == protocol.RoleAssistant {
				turn = "model"
			}
			fmt.Fprintf(&b, "<start_of_turn>%s\n%s<end_of_turn>\n", turn, m.Content)
		}
		b.WriteString("<start_of_turn>model\n")

	case TemplateRaw:
		for i, m := range messages {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(m.Content)
		}

	default:
		b.WriteString("<|begin_of_text|>")
		for _, m := range messages {
			fmt.Fprintf(&b, "<|start_header_id|>%s<|end_header_id|>\n\n%s<|eot_id|>", roleName(m.Role), m.Content)
		}
		b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	}

	return b.String()
}

func roleName(r protocol.Role) string {
	if r.Valid() {
		return string(r)
	}
	return string(protocol.RoleUser)
}
