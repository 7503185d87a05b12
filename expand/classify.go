package expand

import (
	"regexp"
	"strings"

	"github.com/poiesic/ontoquery/concept"
)

// Kind classifies one query token.
type Kind int

const (
	FreeText Kind = iota
	ExternalCode
	ConceptCode
	MappingName
)

func (k Kind) String() string {
	switch k {
	case ExternalCode:
		return "external_code"
	case ConceptCode:
		return "concept_code"
	case MappingName:
		return "mapping_name"
	default:
		return "free_text"
	}
}

var (
	externalCodePattern = regexp.MustCompile(`^\s*([0-9]{7,15})\s*$`)
	conceptCodePattern  = regexp.MustCompile(`^\s*([Cc][0-9]{5,15})\s*$`)
)

// Classify decides how a token is expanded. Code patterns win over
// mapping names; anything else is free text.
func Classify(token string, mappings *concept.Mappings) Kind {
	switch {
	case externalCodePattern.MatchString(token):
		return ExternalCode
	case conceptCodePattern.MatchString(token):
		return ConceptCode
	case mappings.Has(token):
		return MappingName
	default:
		return FreeText
	}
}

// Tokens splits raw term values on commas, trimming blanks.
func Tokens(raw []string) []string {
	var tokens []string
	for _, value := range raw {
		for _, tok := range strings.Split(value, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

// conceptCode returns the normalised concept code inside token.
func conceptCode(token string) string {
	m := conceptCodePattern.FindStringSubmatch(token)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// externalCode returns the code digits inside token.
func externalCode(token string) string {
	m := externalCodePattern.FindStringSubmatch(token)
	if m == nil {
		return ""
	}
	return m[1]
}
