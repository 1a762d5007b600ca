package grading

import (
	"math"
	"strings"
	"time"
)

var (
	positiveKeywords = []string{"great", "happy", "help", "understand", "thank", "appreciate"}
	negativeKeywords = []string{"unfortunately", "sorry", "cannot", "problem", "difficult"}

	fillerWords         = []string{"um", "uh", "like", "you know", "sort of"}
	professionalPhrases = []string{"would you be interested", "i can help", "let me explain", "thank you"}
)

// Engine grades transcripts with fixed keyword heuristics. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	script Script
}

func NewEngine(script Script) *Engine {
	return &Engine{script: script}
}

// Grade scores the transcript and generates coaching notes.
func (e *Engine) Grade(sessionID, transcript string) Result {
	lower := strings.ToLower(transcript)

	scores := Scores{
		Tone:              e.scoreTone(lower),
		OnScript:          e.scoreScriptAdherence(lower),
		Presentation:      e.scorePresentation(lower),
		ObjectionHandling: e.scoreObjectionHandling(lower),
		Speaking:          e.scoreSpeaking(transcript),
	}
	scores.Overall = clampScore(math.Round(float64(scores.Tone+scores.OnScript+scores.Presentation+scores.ObjectionHandling+scores.Speaking) / 5))

	return Result{
		SessionID:  sessionID,
		Scores:     scores,
		Notes:      performanceNotes(scores),
		Transcript: transcript,
		GradedAt:   time.Now().UTC(),
	}
}

func (e *Engine) scoreTone(lower string) int {
	score := 7.0
	for _, word := range positiveKeywords {
		if strings.Contains(lower, word) {
			score += 0.5
		}
	}
	for _, word := range negativeKeywords {
		if strings.Contains(lower, word) {
			score -= 0.5
		}
	}
	return clampScore(math.Round(score))
}

func (e *Engine) scoreScriptAdherence(lower string) int {
	var points []string
	for _, line := range strings.Split(strings.ToLower(e.script.Content), "\n") {
		line = strings.NewReplacer("[", "", "]", "").Replace(line)
		line = strings.TrimSpace(line)
		if line != "" {
			points = append(points, line)
		}
	}
	if len(points) == 0 {
		return 1
	}

	matched := 0
	for _, point := range points {
		if strings.Contains(lower, point) {
			matched++
		}
	}
	return clampScore(math.Round(float64(matched) / float64(len(points)) * 10))
}

func (e *Engine) scorePresentation(lower string) int {
	score := 7.0
	for _, word := range fillerWords {
		score -= float64(strings.Count(lower, word)) * 0.2
	}
	for _, phrase := range professionalPhrases {
		if strings.Contains(lower, phrase) {
			score += 0.5
		}
	}
	return clampScore(math.Round(score))
}

func (e *Engine) scoreObjectionHandling(lower string) int {
	score := 7.0
	objectionCount := 0

	for _, objections := range e.script.Objections {
		for objection, responses := range objections {
			if !strings.Contains(lower, strings.ToLower(objection)) {
				continue
			}
			objectionCount++
			for _, response := range responses {
				if strings.Contains(lower, strings.ToLower(response)) {
					score++
				}
			}
		}
	}

	// No objections raised means nothing to grade; stay neutral.
	if objectionCount == 0 {
		return 7
	}
	return clampScore(math.Round(score))
}

func (e *Engine) scoreSpeaking(transcript string) int {
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return 1
	}

	score := 7.0

	totalLen := 0
	for _, w := range words {
		totalLen += len(w)
	}
	avgWordLen := float64(totalLen) / float64(len(words))
	if avgWordLen < 3 || avgWordLen > 8 {
		score--
	}

	sentences := strings.FieldsFunc(transcript, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(sentences) > 0 {
		totalWords := 0
		for _, s := range sentences {
			totalWords += len(strings.Fields(s))
		}
		avgSentenceLen := float64(totalWords) / float64(len(sentences))
		if avgSentenceLen > 5 && avgSentenceLen < 20 {
			score++
		}
	}

	return clampScore(math.Round(score))
}

func performanceNotes(scores Scores) string {
	var notes []string

	if scores.Tone < 7 {
		notes = append(notes, "Consider maintaining a more positive tone throughout the call.")
	}
	if scores.OnScript < 7 {
		notes = append(notes, "Try to follow the script more closely while keeping conversation natural.")
	}
	if scores.Presentation < 7 {
		notes = append(notes, "Work on reducing filler words and maintaining professional language.")
	}
	if scores.ObjectionHandling < 7 {
		notes = append(notes, "Review objection handling techniques and practice standard responses.")
	}
	if scores.Speaking < 7 {
		notes = append(notes, "Focus on clear articulation and appropriate pacing.")
	}

	switch {
	case scores.Overall >= 8:
		notes = append([]string{"Outstanding performance! Excellent work across all metrics."}, notes...)
	case scores.Overall >= 6:
		notes = append([]string{"Good performance with room for improvement in specific areas."}, notes...)
	default:
		notes = append([]string{"Additional training and practice recommended to improve overall performance."}, notes...)
	}

	return strings.Join(notes, "\n")
}

func clampScore(v float64) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return int(v)
}
