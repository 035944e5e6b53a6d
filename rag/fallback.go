package rag

import (
	"fmt"
	"strings"
)

// keywordTaxonomy maps financial topics to the terms that identify them.
// When a question touches a topic, context lines mentioning any of the
// topic's terms count as relevant even without direct token overlap with
// the question.
var keywordTaxonomy = map[string][]string{
	"revenue":     {"revenue", "sales", "turnover"},
	"profit":      {"profit", "income", "earnings", "margin"},
	"expenses":    {"expense", "expenses", "cost", "costs"},
	"cash":        {"cash", "liquidity"},
	"assets":      {"asset", "assets"},
	"liabilities": {"liability", "liabilities", "debt"},
	"growth":      {"growth", "increase", "decrease", "decline"},
}

const maxFallbackLines = 7

// fallbackAnswer builds a deterministic answer from the assembled context
// when no generative model is available. It surfaces context lines that
// share a token (longer than 3 characters) with the question or match the
// keyword taxonomy for the question's topic.
func fallbackAnswer(question, contextText string) string {
	keywords := questionKeywords(question)

	var relevant []string
	for _, line := range strings.Split(contextText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, w := range keywords {
			if strings.Contains(lower, w) {
				relevant = append(relevant, line)
				break
			}
		}
		if len(relevant) == maxFallbackLines {
			break
		}
	}

	if len(relevant) == 0 {
		return noMatchAnswer(question)
	}

	return "Based on the indexed documents, here is what I found related to your question:\n\n" +
		strings.Join(relevant, "\n") +
		"\n\nNote: this is a keyword-based summary generated without a language model."
}

func questionKeywords(question string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	add := func(w string) {
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}

	for _, tok := range strings.Fields(strings.ToLower(question)) {
		tok = strings.Trim(tok, `.,;:!?"'()`)
		if len(tok) > 3 {
			add(tok)
		}
		for _, terms := range keywordTaxonomy {
			for _, term := range terms {
				if tok == term {
					for _, t := range terms {
						add(t)
					}
					break
				}
			}
		}
	}

	return keywords
}

func noMatchAnswer(question string) string {
	return fmt.Sprintf("I found indexed content, but couldn't extract details related to %q. "+
		"Please try rephrasing your question, for example:\n"+
		"- What was the total revenue?\n"+
		"- How did operating expenses change?\n"+
		"- What is the net profit margin?", question)
}
