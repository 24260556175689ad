package sentiment

import (
	"math"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Analyzer scores free text with a valence lexicon and returns a compound
// polarity in [-1, 1]. It is immutable after construction and safe for
// concurrent use; build one per process and pass it to whoever needs it.
type Analyzer struct {
	lexicon  map[string]float64
	negators map[string]struct{}
	boosters map[string]float64
}

const (
	// normalizationAlpha flattens the raw valence sum into [-1, 1].
	normalizationAlpha = 15.0
	// negationScope is how many following tokens a negator flips.
	negationScope  = 3
	negationDampen = -0.74
)

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		lexicon:  defaultLexicon(),
		negators: defaultNegators(),
		boosters: defaultBoosters(),
	}
}

// Polarity returns the compound polarity of text. Empty or unscorable text
// yields 0.
func (a *Analyzer) Polarity(text string) float64 {
	tokens := a.tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var sum float64
	for i, tok := range tokens {
		valence, ok := a.lexicon[tok]
		if !ok {
			continue
		}

		boost := 1.0
		negated := false
		for j := i - 1; j >= 0 && j >= i-negationScope; j-- {
			if _, isNeg := a.negators[tokens[j]]; isNeg {
				negated = true
			}
			if b, isBoost := a.boosters[tokens[j]]; isBoost && j == i-1 {
				boost = b
			}
		}

		valence *= boost
		if negated {
			valence *= negationDampen
		}
		sum += valence
	}

	compound := sum / math.Sqrt(sum*sum+normalizationAlpha)
	return math.Max(-1, math.Min(1, compound))
}

func (a *Analyzer) tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		// Tokenizer failure is not worth losing the article over.
		return lowerAll(strings.Fields(text))
	}

	raw := doc.Tokens()
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		tokens = append(tokens, strings.ToLower(t.Text))
	}
	return tokens
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, strings.ToLower(strings.Trim(w, ".,!?;:\"'()")))
	}
	return out
}

func defaultNegators() map[string]struct{} {
	words := []string{
		"not", "no", "never", "neither", "nobody", "none", "nor", "nothing",
		"nowhere", "hardly", "barely", "scarcely", "without", "won't", "can't",
		"cannot", "isn't", "wasn't", "aren't", "weren't", "don't", "doesn't",
		"didn't", "n't",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func defaultBoosters() map[string]float64 {
	return map[string]float64{
		"absolutely":   1.3,
		"completely":   1.3,
		"extremely":    1.3,
		"hugely":       1.3,
		"incredibly":   1.3,
		"really":       1.15,
		"remarkably":   1.2,
		"so":           1.1,
		"totally":      1.2,
		"very":         1.25,
		"increasingly": 1.2,
		"fairly":       0.9,
		"kind":         0.9,
		"marginally":   0.8,
		"slightly":     0.8,
		"somewhat":     0.85,
	}
}

// Valences loosely follow the usual [-4, 4] sentiment-lexicon scale, trimmed
// to words that actually show up in local news coverage.
func defaultLexicon() map[string]float64 {
	return map[string]float64{
		// positive
		"improve": 1.9, "improved": 1.9, "improvement": 1.8, "improving": 1.9,
		"growth": 1.8, "growing": 1.6, "grow": 1.5,
		"thriving": 2.4, "thrive": 2.2, "vibrant": 2.2, "flourish": 2.2,
		"revitalize": 2.0, "revitalized": 2.0, "revitalization": 2.0, "renewal": 1.7,
		"boom": 1.9, "booming": 2.1, "prosperity": 2.3, "prosperous": 2.3,
		"success": 2.2, "successful": 2.3, "win": 1.8, "winning": 1.8,
		"invest": 1.4, "investment": 1.5, "investments": 1.5,
		"development": 1.2, "redevelopment": 1.3, "expansion": 1.4,
		"opportunity": 1.8, "opportunities": 1.8, "promising": 1.9,
		"safe": 1.9, "safer": 2.0, "safety": 1.5,
		"popular": 1.6, "beautiful": 2.1, "attractive": 1.8, "charming": 2.0,
		"historic": 1.0, "landmark": 1.0, "award": 1.9, "awarded": 1.9,
		"celebrate": 2.0, "celebration": 2.0, "festival": 1.3, "welcome": 1.7,
		"affordable": 1.5, "benefit": 1.6, "benefits": 1.6, "boost": 1.7,
		"strong": 1.5, "stronger": 1.6, "record": 0.8, "excellent": 2.7,
		"great": 2.4, "good": 1.9, "best": 3.0, "better": 1.8,
		"new": 0.6, "opening": 1.0, "opened": 0.9, "opens": 0.9,
		"restored": 1.6, "restoration": 1.5, "renovated": 1.5, "renovation": 1.4,
		"jobs": 1.2, "hiring": 1.3, "employment": 1.0,
		"clean": 1.6, "cleaner": 1.6, "green": 1.0, "park": 0.7,
		"love": 2.8, "loved": 2.6, "praise": 2.1, "praised": 2.1,
		"hope": 1.7, "hopeful": 1.9, "optimism": 2.0, "optimistic": 2.0,

		// negative
		"crime": -2.2, "crimes": -2.2, "criminal": -2.2,
		"shooting": -3.2, "shot": -2.8, "gunfire": -3.0, "gun": -1.8,
		"murder": -3.5, "homicide": -3.4, "killed": -3.2, "killing": -3.2,
		"stabbing": -3.1, "stabbed": -3.0, "assault": -2.9, "assaulted": -2.9,
		"robbery": -2.8, "robbed": -2.7, "burglary": -2.5, "theft": -2.3,
		"stolen": -2.2, "vandalism": -2.1, "arson": -2.8,
		"violence": -3.0, "violent": -2.9, "dangerous": -2.6, "danger": -2.4,
		"arrest": -1.8, "arrested": -1.8, "charged": -1.5, "jail": -1.9,
		"drug": -1.9, "drugs": -1.9, "overdose": -2.8, "gang": -2.4,
		"blight": -2.4, "blighted": -2.4, "abandoned": -2.0, "vacant": -1.6,
		"decline": -1.9, "declining": -2.0, "decay": -2.2, "deteriorate": -2.1,
		"poverty": -2.3, "poor": -1.8, "unemployment": -2.0, "layoffs": -2.2,
		"closure": -1.8, "closed": -1.2, "closing": -1.4, "shutdown": -1.9,
		"demolition": -1.3, "demolished": -1.3, "condemned": -2.2,
		"fire": -2.0, "flood": -2.2, "flooding": -2.2, "collapse": -2.6,
		"crash": -2.3, "accident": -2.0, "fatal": -3.0, "death": -2.9,
		"died": -2.8, "dead": -2.8, "injured": -2.4, "injury": -2.2,
		"victim": -2.2, "victims": -2.2, "fear": -2.2, "afraid": -2.1,
		"complaint": -1.5, "complaints": -1.5, "protest": -1.2, "dispute": -1.4,
		"lawsuit": -1.6, "fraud": -2.7, "corruption": -2.9, "scandal": -2.5,
		"dirty": -1.8, "trash": -1.6, "rats": -2.0, "unsafe": -2.5,
		"worst": -3.1, "bad": -2.5, "worse": -2.1, "terrible": -2.9,
		"problem": -1.6, "problems": -1.6, "crisis": -2.4, "struggling": -2.0,
		"failing": -2.2, "failure": -2.3, "lost": -1.4, "loss": -1.5,
	}
}
