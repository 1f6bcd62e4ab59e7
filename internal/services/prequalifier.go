package services

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"alfredoptarigan/policy-analyzer/internal/models"
)

const (
	DefaultGeneralThreshold        = 3
	DefaultLineOfBusinessThreshold = 2

	generalCategory = "general"
)

//go:embed lexicons.yaml
var defaultLexiconYAML []byte

// Lexicons is the keyword taxonomy used by the prequalifier.
type Lexicons struct {
	General         []string            `yaml:"general"`
	LinesOfBusiness map[string][]string `yaml:"lines_of_business"`
}

// lobOrder fixes iteration order so verdicts are reproducible; unknown lines
// of business from an override file sort after these.
var lobOrder = []string{"health", "life", "auto", "home"}

// DefaultLexicons returns the embedded taxonomy.
func DefaultLexicons() (*Lexicons, error) {
	return parseLexicons(defaultLexiconYAML)
}

// LoadLexicons reads a taxonomy override from path, or the embedded default
// when path is empty.
func LoadLexicons(path string) (*Lexicons, error) {
	if path == "" {
		return DefaultLexicons()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return parseLexicons(data)
}

func parseLexicons(data []byte) (*Lexicons, error) {
	var lex Lexicons
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicons: %w", err)
	}
	if len(lex.General) == 0 {
		return nil, fmt.Errorf("lexicons: general list is empty")
	}
	if len(lex.LinesOfBusiness) == 0 {
		return nil, fmt.Errorf("lexicons: no lines of business defined")
	}

	lex.General = normalizeTerms(lex.General)
	for name, terms := range lex.LinesOfBusiness {
		lex.LinesOfBusiness[name] = normalizeTerms(terms)
	}
	return &lex, nil
}

// normalizeTerms lower-cases and de-duplicates terms so a repeated entry
// cannot count twice.
func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// LineOfBusinessNames returns the taxonomy's lines of business in verdict order.
func (l *Lexicons) LineOfBusinessNames() []string {
	names := make([]string, 0, len(l.LinesOfBusiness))
	known := make(map[string]bool, len(lobOrder))
	for _, name := range lobOrder {
		known[name] = true
		if _, ok := l.LinesOfBusiness[name]; ok {
			names = append(names, name)
		}
	}

	var extra []string
	for name := range l.LinesOfBusiness {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Prequalifier is the keyword gate in front of the oracle. It holds no
// mutable state and is safe for concurrent use.
type Prequalifier struct {
	lexicons         *Lexicons
	lobNames         []string
	generalThreshold int
	lobThreshold     int
}

func NewPrequalifier(lexicons *Lexicons, generalThreshold, lobThreshold int) *Prequalifier {
	if generalThreshold <= 0 {
		generalThreshold = DefaultGeneralThreshold
	}
	if lobThreshold <= 0 {
		lobThreshold = DefaultLineOfBusinessThreshold
	}
	return &Prequalifier{
		lexicons:         lexicons,
		lobNames:         lexicons.LineOfBusinessNames(),
		generalThreshold: generalThreshold,
		lobThreshold:     lobThreshold,
	}
}

// Prequalify scores text against every lexicon. A term counts once no matter
// how often it appears. The text is accepted when the general score and at
// least one line-of-business score reach their thresholds.
func (p *Prequalifier) Prequalify(text string) models.Verdict {
	lower := strings.ToLower(text)

	scores := make(map[string]int, len(p.lobNames)+1)
	scores[generalCategory] = countTerms(lower, p.lexicons.General)

	bestLOB, bestScore := "", 0
	for _, name := range p.lobNames {
		score := countTerms(lower, p.lexicons.LinesOfBusiness[name])
		scores[name] = score
		if score > bestScore {
			bestLOB, bestScore = name, score
		}
	}

	verdict := models.Verdict{Scores: scores}
	if strings.TrimSpace(text) == "" {
		verdict.Reasons = []string{"document contains no text"}
		return verdict
	}

	if scores[generalCategory] < p.generalThreshold {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf(
			"matched %d general insurance terms, need at least %d",
			scores[generalCategory], p.generalThreshold,
		))
	}
	if bestScore < p.lobThreshold {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf(
			"no line of business matched at least %d terms",
			p.lobThreshold,
		))
	} else {
		verdict.LineOfBusiness = bestLOB
	}

	verdict.Accepted = len(verdict.Reasons) == 0
	return verdict
}

// Check is Prequalify expressed as an error for the pipeline.
func (p *Prequalifier) Check(text string) (models.Verdict, error) {
	verdict := p.Prequalify(text)
	if !verdict.Accepted {
		return verdict, &PrequalificationError{Verdict: verdict}
	}
	return verdict, nil
}

func countTerms(lowerText string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(lowerText, term) {
			n++
		}
	}
	return n
}
