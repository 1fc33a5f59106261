package extract

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/pkg/errors"

	"github.com/athapong/papergraph/pkg/graph"
)

// ProseAnalyzer implements graph.Analyzer on top of jdkato/prose: sentence
// segmentation, POS tagging and NER run locally with no external services.
type ProseAnalyzer struct{}

// NewProseAnalyzer creates the default analyzer backend.
func NewProseAnalyzer() *ProseAnalyzer {
	return &ProseAnalyzer{}
}

// Segment splits raw text into sentences.
func (a *ProseAnalyzer) Segment(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return nil, errors.Wrap(err, "segmenting text")
	}

	sentences := make([]string, 0, len(doc.Sentences()))
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			sentences = append(sentences, t)
		}
	}
	return sentences, nil
}

// RecognizeEntities returns the entity mentions of one sentence: maximal runs
// of noun tokens, typed via NER when prose recognizes them.
func (a *ProseAnalyzer) RecognizeEntities(sentence string) ([]graph.Mention, error) {
	doc, err := prose.NewDocument(sentence)
	if err != nil {
		return nil, errors.Wrap(err, "tagging sentence")
	}

	tokens := doc.Tokens()
	nerTypes := make(map[string]string)
	for _, ent := range doc.Entities() {
		nerTypes[strings.ToLower(ent.Text)] = entityTypeTag(ent.Label)
	}

	mentions := make([]graph.Mention, 0)
	for i := 0; i < len(tokens); i++ {
		if !isNounTag(tokens[i].Tag) {
			continue
		}

		start := i
		parts := make([]string, 0, 2)
		for i < len(tokens) && isNounTag(tokens[i].Tag) {
			parts = append(parts, tokens[i].Text)
			i++
		}

		text := strings.Join(parts, " ")
		if len(parts) == 1 {
			lower := strings.ToLower(text)
			if pronouns.Contains(lower) || stopWords.Contains(lower) {
				continue
			}
		}

		mention := graph.Mention{
			Text:  text,
			Start: start,
			End:   i,
		}
		if tag, ok := nerTypes[strings.ToLower(text)]; ok {
			mention.Type = tag
		}
		mentions = append(mentions, mention)
	}

	return mentions, nil
}

// ExtractRelations derives subject-verb-object triples linking two recognized
// mentions. The relation label is the governing verb, case-normalized, with a
// directly attached preposition appended ("works for" -> "works_for"). A verb
// with several objects yields one triple per object.
func (a *ProseAnalyzer) ExtractRelations(sentence string, mentions []graph.Mention) ([]graph.ExtractedTriple, error) {
	if len(mentions) < 2 {
		return nil, nil
	}

	doc, err := prose.NewDocument(sentence)
	if err != nil {
		return nil, errors.Wrap(err, "tagging sentence")
	}
	tokens := doc.Tokens()

	verbs := mainVerbIndexes(tokens)
	triples := make([]graph.ExtractedTriple, 0)

	for vi, verbIdx := range verbs {
		subject := nearestMentionBefore(mentions, verbIdx)
		if subject == nil {
			continue
		}

		// Objects are the mentions between this verb and the next one.
		objectLimit := len(tokens)
		if vi+1 < len(verbs) {
			objectLimit = verbs[vi+1]
		}

		label := relationLabel(tokens, verbIdx)
		for mi := range mentions {
			m := &mentions[mi]
			if m.Start <= verbIdx || m.Start >= objectLimit || m == subject {
				continue
			}
			triples = append(triples, graph.ExtractedTriple{
				Subject:     subject.Text,
				SubjectType: subject.Type,
				Relation:    label,
				Object:      m.Text,
				ObjectType:  m.Type,
				Provenance:  graph.Provenance{Sentence: sentence},
			})
		}
	}

	return triples, nil
}

func isNounTag(tag string) bool {
	return strings.HasPrefix(tag, "NN")
}

func isVerbTag(tag string) bool {
	return strings.HasPrefix(tag, "VB")
}

// mainVerbIndexes returns the indexes of governing verbs, skipping
// auxiliaries that are immediately followed by another verb ("is working").
func mainVerbIndexes(tokens []prose.Token) []int {
	verbs := make([]int, 0, 2)
	for i, tok := range tokens {
		if !isVerbTag(tok.Tag) {
			continue
		}
		if auxiliaryVerbs.Contains(strings.ToLower(tok.Text)) {
			next := i + 1
			for next < len(tokens) && strings.HasPrefix(tokens[next].Tag, "RB") {
				next++
			}
			if next < len(tokens) && isVerbTag(tokens[next].Tag) {
				continue
			}
		}
		verbs = append(verbs, i)
	}
	return verbs
}

// relationLabel builds the relation label from the verb and, when directly
// attached, a trailing preposition or particle.
func relationLabel(tokens []prose.Token, verbIdx int) string {
	parts := []string{tokens[verbIdx].Text}

	next := verbIdx + 1
	for next < len(tokens) && strings.HasPrefix(tokens[next].Tag, "RB") {
		next++
	}
	if next < len(tokens) {
		switch tokens[next].Tag {
		case "IN", "TO", "RP":
			parts = append(parts, tokens[next].Text)
		}
	}

	return graph.NormalizeRelation(strings.Join(parts, " "))
}

func nearestMentionBefore(mentions []graph.Mention, verbIdx int) *graph.Mention {
	var best *graph.Mention
	for i := range mentions {
		if mentions[i].End <= verbIdx {
			best = &mentions[i]
		}
	}
	return best
}

func entityTypeTag(label string) string {
	switch label {
	case "PERSON":
		return "person"
	case "GPE":
		return "place"
	default:
		return strings.ToLower(label)
	}
}
