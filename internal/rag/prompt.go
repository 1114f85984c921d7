package rag

import (
	"fmt"
	"strings"
)

const promptTemplate = "Answer based on context:\n %s \n Question: %s \n Answer:"

// BuildPrompt monta o prompt de geração a partir da pergunta e dos documentos
// recuperados, na ordem recebida. Sem documentos o template sai com contexto vazio.
func BuildPrompt(question string, docs []RetrievedDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}
