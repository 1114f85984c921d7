package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 30
)

// SplitText quebra o texto em trechos de até size caracteres, cortando em
// espaços. Cada trecho começa com as últimas palavras do anterior, até overlap
// caracteres. Palavras maiores que size são cortadas.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	words := splitLongWords(strings.Fields(sanitizeUTF8(text)), size)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks []string
		cur    []string
		curLen int
	)

	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if curLen > 0 && curLen+1+wl > size {
			chunks = append(chunks, strings.Join(cur, " "))
			cur, curLen = tail(cur, overlap)
			if curLen > 0 && curLen+1+wl > size {
				cur, curLen = nil, 0
			}
		}
		if curLen > 0 {
			curLen++
		}
		cur = append(cur, w)
		curLen += wl
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

// tail devolve as últimas palavras de words que cabem em max caracteres.
func tail(words []string, max int) ([]string, int) {
	n := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := utf8.RuneCountInString(words[i])
		if n > 0 {
			add++
		}
		if n+add > max {
			break
		}
		n += add
		start = i
	}
	out := make([]string, len(words)-start)
	copy(out, words[start:])
	return out, n
}

func splitLongWords(words []string, size int) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		r := []rune(w)
		for len(r) > size {
			out = append(out, string(r[:size]))
			r = r[size:]
		}
		if len(r) > 0 {
			out = append(out, string(r))
		}
	}
	return out
}
