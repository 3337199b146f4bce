package sentiment

import (
	"sort"

	"github.com/spacesedan/forumpulse/internal/models"
)

const (
	DefaultExamplesPerClass = 3
	maxCitationTitle        = 100

	TonePositive = "positive"
	ToneNegative = "negative"
	ToneNeutral  = "neutral"
)

// Aggregate computes the summary and the citations for rs in one call.
func Aggregate(rs models.ResultSet, perClass int) (models.SentimentSummary, models.Examples) {
	return Summarize(rs), SelectCitations(rs, perClass)
}

// Summarize tallies rs by label. Unclassified posts count as neutral and an
// empty set is all zeros with a neutral tone.
func Summarize(rs models.ResultSet) models.SentimentSummary {
	s := models.SentimentSummary{Total: len(rs), OverallTone: ToneNeutral}
	for _, p := range rs {
		switch p.Sentiment.Bucket() {
		case models.SentimentPositive:
			s.Positive++
		case models.SentimentNegative:
			s.Negative++
		default:
			s.Neutral++
		}
	}
	if s.Total == 0 {
		return s
	}
	s.PositivePercent, s.NegativePercent, s.NeutralPercent = Percentages(s.Positive, s.Negative, s.Total)
	s.OverallTone = Tone(s.PositivePercent, s.NegativePercent)
	return s
}

// Percentages rounds the positive and negative shares half-up to one decimal
// and derives neutral as the complement, so the three always total 100.
// Arithmetic is done in tenths of a percent to keep the JSON values exact.
func Percentages(positive, negative, total int) (pos, neg, neu float64) {
	if total <= 0 {
		return 0, 0, 0
	}
	posT := tenths(positive, total)
	negT := tenths(negative, total)
	if posT+negT > 1000 {
		negT = 1000 - posT
	}
	return float64(posT) / 10, float64(negT) / 10, float64(1000-posT-negT) / 10
}

func tenths(count, total int) int {
	return (count*2000 + total) / (2 * total)
}

// Tone applies the threshold rule. The positive branch is checked first; a
// negative tone tolerates exactly 30% positive (30/41 reads as negative).
func Tone(positivePercent, negativePercent float64) string {
	switch {
	case positivePercent > 40 && negativePercent < 30:
		return TonePositive
	case negativePercent > 40 && positivePercent <= 30:
		return ToneNegative
	default:
		return ToneNeutral
	}
}

// SelectCitations picks up to perClass posts per bucket by descending score.
// rs is not reordered.
func SelectCitations(rs models.ResultSet, perClass int) models.Examples {
	if perClass <= 0 {
		perClass = DefaultExamplesPerClass
	}
	buckets := map[models.Sentiment][]models.Post{}
	for _, p := range rs {
		b := p.Sentiment.Bucket()
		buckets[b] = append(buckets[b], p)
	}

	pick := func(label models.Sentiment) []models.Citation {
		posts := buckets[label]
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Score > posts[j].Score })
		if len(posts) > perClass {
			posts = posts[:perClass]
		}
		out := make([]models.Citation, 0, len(posts))
		for _, p := range posts {
			out = append(out, NewCitation(p))
		}
		return out
	}

	return models.Examples{
		Positive: pick(models.SentimentPositive),
		Negative: pick(models.SentimentNegative),
		Neutral:  pick(models.SentimentNeutral),
	}
}

func NewCitation(p models.Post) models.Citation {
	url := p.Permalink
	if url == "" {
		url = p.URL
	}
	return models.Citation{
		Title:     truncateRunes(p.Title, maxCitationTitle, "..."),
		Subreddit: p.Forum,
		Author:    p.Author,
		Sentiment: p.Sentiment.Bucket(),
		Score:     p.Score,
		URL:       url,
	}
}

func truncateRunes(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}
