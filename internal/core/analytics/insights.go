// Package analytics derives aggregate insights over a loaded content
// set: sentiment, posting-time patterns, engagement correlation, and
// word frequency.
package analytics

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"Skymarshal/internal/core/models"
)

// Sentiment labels used for posts and insights.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var positiveWords = map[string]bool{
	"love": true, "great": true, "awesome": true, "amazing": true,
	"good": true, "happy": true, "excellent": true, "wonderful": true,
	"best": true, "beautiful": true, "thanks": true, "thank": true,
	"excited": true, "fun": true, "nice": true, "cool": true,
}

var negativeWords = map[string]bool{
	"hate": true, "terrible": true, "awful": true, "bad": true,
	"sad": true, "angry": true, "worst": true, "horrible": true,
	"annoying": true, "disappointed": true, "broken": true, "ugh": true,
	"wrong": true, "fail": true, "tired": true, "sick": true,
}

// stopWords are excluded from the word-frequency table.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "at": true, "for": true, "with": true, "it": true,
	"this": true, "that": true, "i": true, "you": true, "my": true,
	"me": true, "we": true, "so": true, "just": true, "not": true,
	"have": true, "has": true, "do": true, "dont": true, "its": true,
	"im": true, "like": true, "what": true, "all": true, "as": true,
	"if": true, "they": true, "he": true, "she": true, "his": true,
	"her": true, "your": true, "about": true, "can": true, "will": true,
}

// SentimentBreakdown counts labeled posts.
type SentimentBreakdown struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Score    float64 `json:"score"` // (positive - negative) / labeled
}

// TimePatterns aggregates posting activity by hour and weekday.
type TimePatterns struct {
	ByHour    [24]int        `json:"by_hour"`
	ByWeekday map[string]int `json:"by_weekday"`
	PeakHour  int            `json:"peak_hour"`
}

// EngagementCorrelation relates post length and sentiment to engagement.
type EngagementCorrelation struct {
	AvgEngagement        float64 `json:"avg_engagement"`
	AvgEngagementShort   float64 `json:"avg_engagement_short"` // <= 100 chars
	AvgEngagementLong    float64 `json:"avg_engagement_long"`
	BySentiment          map[string]float64
	LengthEngagementCorr float64 `json:"length_engagement_corr"` // Pearson r
}

// WordCount is one entry in the frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Insights is the full analytics result.
type Insights struct {
	Sentiment   SentimentBreakdown    `json:"sentiment"`
	TimePattern TimePatterns          `json:"time_patterns"`
	Engagement  EngagementCorrelation `json:"engagement"`
	TopWords    []WordCount           `json:"top_words"`
	PostCount   int                   `json:"post_count"`
}

// ClassifySentiment labels text by lexicon hits. Ties and no-hits are
// neutral.
func ClassifySentiment(text string) string {
	pos, neg := 0, 0
	for _, w := range tokenize(text) {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Compute runs all analyses over the item set. Only posts and replies
// contribute; interactions carry no text or own engagement.
func Compute(items []*models.ContentItem) *Insights {
	ins := &Insights{
		TimePattern: TimePatterns{ByWeekday: map[string]int{}},
		Engagement:  EngagementCorrelation{BySentiment: map[string]float64{}},
	}

	type sample struct {
		length     int
		engagement float64
		sentiment  string
	}
	var samples []sample
	wordCounts := map[string]int{}

	for _, item := range items {
		if item.Type != models.TypePost && item.Type != models.TypeReply {
			continue
		}
		ins.PostCount++

		sentiment := ClassifySentiment(item.Text)
		switch sentiment {
		case SentimentPositive:
			ins.Sentiment.Positive++
		case SentimentNegative:
			ins.Sentiment.Negative++
		default:
			ins.Sentiment.Neutral++
		}

		if item.CreatedAt != nil {
			ins.TimePattern.ByHour[item.CreatedAt.Hour()]++
			ins.TimePattern.ByWeekday[item.CreatedAt.Weekday().String()]++
		}

		for _, w := range tokenize(item.Text) {
			if !stopWords[w] && len(w) > 2 {
				wordCounts[w]++
			}
		}

		samples = append(samples, sample{
			length:     len(item.Text),
			engagement: item.EngagementScore,
			sentiment:  sentiment,
		})
	}

	if labeled := ins.Sentiment.Positive + ins.Sentiment.Negative + ins.Sentiment.Neutral; labeled > 0 {
		ins.Sentiment.Score = float64(ins.Sentiment.Positive-ins.Sentiment.Negative) / float64(labeled)
	}

	peak, peakCount := 0, -1
	for hour, count := range ins.TimePattern.ByHour {
		if count > peakCount {
			peak, peakCount = hour, count
		}
	}
	ins.TimePattern.PeakHour = peak

	var total, totalShort, totalLong float64
	var nShort, nLong int
	sentimentTotals := map[string]float64{}
	sentimentCounts := map[string]int{}
	for _, s := range samples {
		total += s.engagement
		if s.length <= 100 {
			totalShort += s.engagement
			nShort++
		} else {
			totalLong += s.engagement
			nLong++
		}
		sentimentTotals[s.sentiment] += s.engagement
		sentimentCounts[s.sentiment]++
	}
	if len(samples) > 0 {
		ins.Engagement.AvgEngagement = total / float64(len(samples))
	}
	if nShort > 0 {
		ins.Engagement.AvgEngagementShort = totalShort / float64(nShort)
	}
	if nLong > 0 {
		ins.Engagement.AvgEngagementLong = totalLong / float64(nLong)
	}
	for sentiment, sum := range sentimentTotals {
		ins.Engagement.BySentiment[sentiment] = sum / float64(sentimentCounts[sentiment])
	}
	ins.Engagement.LengthEngagementCorr = pearson(samples, func(s sample) (float64, float64) {
		return float64(s.length), s.engagement
	})

	ins.TopWords = topWords(wordCounts, 20)
	return ins
}

func pearson[T any](xs []T, pair func(T) (float64, float64)) float64 {
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY float64
	for _, s := range xs {
		x, y := pair(s)
		sumX += x
		sumY += y
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for _, s := range xs {
		x, y := pair(s)
		cov += (x - meanX) * (y - meanY)
		varX += (x - meanX) * (x - meanX)
		varY += (y - meanY) * (y - meanY)
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func topWords(counts map[string]int, n int) []WordCount {
	words := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		words = append(words, WordCount{Word: w, Count: c})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
