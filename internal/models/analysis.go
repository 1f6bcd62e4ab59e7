package models

// Feature buckets, in display order.
const (
	BucketGreat   = "great"
	BucketGood    = "good"
	BucketBad     = "bad"
	BucketUnclear = "unclear"
)

var Buckets = []string{BucketGreat, BucketGood, BucketBad, BucketUnclear}

const DefaultDisclaimer = "This analysis is for informational purposes only. Please read the full policy document and consult with the insurer for complete details."

// PolicyFeature is a single clause judgement produced by the oracle.
type PolicyFeature struct {
	Name        string `json:"name"`
	Quote       string `json:"quote"`
	Reference   string `json:"reference"`
	Explanation string `json:"explanation"`
}

type FeatureSummary struct {
	Great   int `json:"great"`
	Good    int `json:"good"`
	Bad     int `json:"bad"`
	Unclear int `json:"unclear"`
}

type FeatureSet struct {
	Great   []PolicyFeature `json:"great"`
	Good    []PolicyFeature `json:"good"`
	Bad     []PolicyFeature `json:"bad"`
	Unclear []PolicyFeature `json:"unclear"`
}

type PolicyAnalysis struct {
	PolicyName   string         `json:"policyName"`
	Insurer      string         `json:"insurer"`
	SumInsured   string         `json:"sumInsured"`
	PolicyType   string         `json:"policyType"`
	DocumentType string         `json:"documentType"`
	Summary      FeatureSummary `json:"summary"`
	Features     FeatureSet     `json:"features"`
	Disclaimer   string         `json:"disclaimer"`
}

// Count returns the summary count reported for a bucket.
func (s FeatureSummary) Count(bucket string) int {
	switch bucket {
	case BucketGreat:
		return s.Great
	case BucketGood:
		return s.Good
	case BucketBad:
		return s.Bad
	case BucketUnclear:
		return s.Unclear
	}
	return 0
}

func (f FeatureSet) Bucket(bucket string) []PolicyFeature {
	switch bucket {
	case BucketGreat:
		return f.Great
	case BucketGood:
		return f.Good
	case BucketBad:
		return f.Bad
	case BucketUnclear:
		return f.Unclear
	}
	return nil
}

// TotalFeatures is the number of features across all buckets.
func (a *PolicyAnalysis) TotalFeatures() int {
	total := 0
	for _, b := range Buckets {
		total += len(a.Features.Bucket(b))
	}
	return total
}

// IsEmpty reports an analysis that classified nothing.
func (a *PolicyAnalysis) IsEmpty() bool {
	return a.TotalFeatures() == 0
}

// CountMismatch describes a bucket whose summary count disagrees with its
// feature list.
type CountMismatch struct {
	Bucket   string `json:"bucket"`
	Reported int    `json:"reported"`
	Actual   int    `json:"actual"`
}

func (a *PolicyAnalysis) CountMismatches() []CountMismatch {
	var out []CountMismatch
	for _, b := range Buckets {
		reported := a.Summary.Count(b)
		actual := len(a.Features.Bucket(b))
		if reported != actual {
			out = append(out, CountMismatch{Bucket: b, Reported: reported, Actual: actual})
		}
	}
	return out
}

// Normalize replaces nil feature lists with empty ones so the JSON contract
// always carries arrays, and fills the disclaimer when the oracle left it out.
func (a *PolicyAnalysis) Normalize() {
	if a.Features.Great == nil {
		a.Features.Great = []PolicyFeature{}
	}
	if a.Features.Good == nil {
		a.Features.Good = []PolicyFeature{}
	}
	if a.Features.Bad == nil {
		a.Features.Bad = []PolicyFeature{}
	}
	if a.Features.Unclear == nil {
		a.Features.Unclear = []PolicyFeature{}
	}
	if a.Disclaimer == "" {
		a.Disclaimer = DefaultDisclaimer
	}
}
