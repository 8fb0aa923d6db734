package config

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	trailingBackslash = regexp.MustCompile(`\\\s*$`)
	lineContinuation  = regexp.MustCompile(`\\\s*\n\s*`)
)

// splitWords tokenizes a possibly multi-line, backslash-continued value into
// shell words. Backslash-newline pairs collapse to a single space before
// tokenization; single and double quotes group words and are stripped.
func splitWords(value string) ([]string, error) {
	value = trailingBackslash.ReplaceAllString(value, "")
	value = lineContinuation.ReplaceAllString(value, " ")
	value = strings.ReplaceAll(value, "\n", " ")

	var (
		words   []string
		current strings.Builder
		quote   rune
		inWord  bool
	)

	for _, r := range value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in word list", quote)
	}
	if inWord {
		words = append(words, current.String())
	}

	return words, nil
}
