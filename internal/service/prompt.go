package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/domain"
)

// NoInformationReply is what the model is told to answer when the context
// does not cover the question.
const NoInformationReply = "Sorry, I don't have information about that in my material."

var DefaultSystemPrompt = strings.Join([]string{
	"You are a study assistant.",
	"Answer the question using ONLY the information in the context below.",
	fmt.Sprintf("If the context does not contain the answer, reply exactly: %q", NoInformationReply),
	"Keep the answer short, simple, didactic and objective.",
}, "\n")

// BuildMessages assembles the generation request for one question. An empty
// systemPrompt falls back to DefaultSystemPrompt.
func BuildMessages(systemPrompt, contextText, question string) []domain.Message {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: b.String()},
	}
}
