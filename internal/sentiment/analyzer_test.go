package sentiment

import "testing"

func TestPolarityPositiveText(t *testing.T) {
	a := NewAnalyzer()
	score := a.Polarity("Thriving new development brings jobs and investment to a revitalized, safer neighborhood")
	if score <= 0 {
		t.Fatalf("expected positive compound, got %v", score)
	}
}

func TestPolarityNegativeText(t *testing.T) {
	a := NewAnalyzer()
	score := a.Polarity("Shooting and robbery leave two injured as violent crime rises")
	if score >= 0 {
		t.Fatalf("expected negative compound, got %v", score)
	}
}

func TestPolarityNeutralText(t *testing.T) {
	a := NewAnalyzer()
	score := a.Polarity("The council meets on Thursday at the community center")
	if score != 0 {
		t.Fatalf("expected 0 for text without lexicon hits, got %v", score)
	}
}

func TestPolarityEmptyText(t *testing.T) {
	a := NewAnalyzer()
	if score := a.Polarity(""); score != 0 {
		t.Fatalf("expected 0 for empty text, got %v", score)
	}
}

func TestPolarityBounded(t *testing.T) {
	a := NewAnalyzer()
	long := ""
	for i := 0; i < 50; i++ {
		long += "murder shooting violence danger terrible "
	}
	score := a.Polarity(long)
	if score < -1 || score > 1 {
		t.Fatalf("compound out of [-1,1]: %v", score)
	}
	if score > -0.9 {
		t.Fatalf("uniformly negative text should saturate near -1, got %v", score)
	}
}

func TestPolarityNegationFlips(t *testing.T) {
	a := NewAnalyzer()
	plain := a.Polarity("the street is safe")
	negated := a.Polarity("the street is not safe")
	if plain <= 0 {
		t.Fatalf("expected positive baseline, got %v", plain)
	}
	if negated >= 0 {
		t.Fatalf("negation should flip polarity, got %v", negated)
	}
}

func TestPolarityBoosterAmplifies(t *testing.T) {
	a := NewAnalyzer()
	plain := a.Polarity("a dangerous corner")
	boosted := a.Polarity("an extremely dangerous corner")
	if boosted >= plain {
		t.Fatalf("booster should push polarity further negative: plain=%v boosted=%v", plain, boosted)
	}
}
