package garment

import (
	"sort"
	"strings"

	"stylist/internal/domain"
)

// Match is a detected category together with the short phrase extracted from
// the description, used downstream as a search/generation hint.
type Match struct {
	Category domain.Category
	Priority int
	Hint     string
}

// Composition is the classifier output for a single description.
type Composition struct {
	IsMultiPiece  bool
	Categories    []Match
	FallbackQuery string
}

// Primary returns the highest-priority detected category, or
// CategoryUnclassified when no keyword matched.
func (c Composition) Primary() domain.Category {
	if len(c.Categories) == 0 {
		return domain.CategoryUnclassified
	}
	return c.Categories[0].Category
}

// Classifier maps free-text garment descriptions onto the fixed taxonomy.
// Classification is pure and deterministic for a given taxonomy snapshot.
type Classifier struct {
	rules []Rule
}

func NewClassifier() *Classifier {
	return &Classifier{rules: DefaultTaxonomy()}
}

func NewClassifierWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify matches the description against every category's keywords
// (case-insensitive substring match) and resolves conflicts:
//
//  1. a detected one-piece removes a lone top or bottom (a one-piece garment
//     cannot simultaneously be a separate top or bottom),
//  2. conversely, when both tops and bottoms are detected the description
//     names a complete set of separates, so one-piece is removed instead,
//  3. more than four remaining categories shed accessories first, then
//     footwear, then truncate,
//  4. the remainder sorts ascending by priority.
func (c *Classifier) Classify(description string) Composition {
	lower := strings.ToLower(description)
	detected := make(map[domain.Category]Match, len(c.rules))
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				detected[rule.Category] = Match{
					Category: rule.Category,
					Priority: rule.Priority,
					Hint:     hintFor(description, kw),
				}
				break
			}
		}
	}

	_, hasTops := detected[domain.CategoryTops]
	_, hasBottoms := detected[domain.CategoryBottoms]
	if hasTops && hasBottoms {
		delete(detected, domain.CategoryOnePiece)
	} else if _, ok := detected[domain.CategoryOnePiece]; ok {
		delete(detected, domain.CategoryTops)
		delete(detected, domain.CategoryBottoms)
	}

	for len(detected) > 4 {
		if _, ok := detected[domain.CategoryAccessories]; ok {
			delete(detected, domain.CategoryAccessories)
			continue
		}
		if _, ok := detected[domain.CategoryFootwear]; ok {
			delete(detected, domain.CategoryFootwear)
			continue
		}
		break
	}

	matches := make([]Match, 0, len(detected))
	for _, m := range detected {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Priority < matches[j].Priority
	})
	if len(matches) > 4 {
		matches = matches[:4]
	}

	return Composition{
		IsMultiPiece:  len(matches) > 1,
		Categories:    matches,
		FallbackQuery: strings.TrimSpace(description),
	}
}

// hintFor extracts the matched word plus up to two preceding words, e.g.
// "flowy red sundress" for the keyword "sundress".
func hintFor(description, keyword string) string {
	words := strings.Fields(description)
	for i, w := range words {
		if strings.Contains(strings.ToLower(w), keyword) {
			start := i - 2
			if start < 0 {
				start = 0
			}
			return strings.Join(words[start:i+1], " ")
		}
	}
	return keyword
}
