package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// System prompts for the three AI task families.
const (
	systemTutor = `You are a patient, encouraging tutor. Explain things clearly and
simply, one idea at a time. Keep replies short (2-4 sentences unless asked for
more), stay on the current topic, and never invent facts that are not in the
provided material.`

	systemClassifier = `You are a strict text classifier. Answer with exactly one
word, YES or NO, and nothing else.`

	systemEvaluator = `You are an answer evaluator. Compare the student's answer to
the reference material and respond with a single number between 0.0 and 1.0,
where 0.0 is completely wrong and 1.0 is completely correct. Respond with the
number only.`
)

// stepFocus maps an explanation step to what that step should emphasize.
// Steps beyond the configured count reuse the last focus.
var stepFocus = []string{
	"introduce the core idea in the simplest possible terms, as if to a beginner",
	"go one level deeper: give a concrete example or a short walkthrough",
	"connect the idea to the bigger picture and recap the key point in one sentence",
}

func focusForStep(step int) string {
	if step < 1 {
		step = 1
	}
	if step > len(stepFocus) {
		step = len(stepFocus)
	}
	return stepFocus[step-1]
}

func introPrompt(topic string, subtopicTitles []string) string {
	return fmt.Sprintf(`We are starting a tutoring session on %q. The session will
cover these subtopics in order: %s.

Write a warm two-sentence welcome that names the topic and invites the student
to begin. Do not start explaining yet.`, topic, strings.Join(subtopicTitles, ", "))
}

func explanationPrompt(topic, subtopic, body string, step, totalSteps int, lastReply string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nSubtopic: %s\nStep %d of %d.\n\n", topic, subtopic, step, totalSteps)
	fmt.Fprintf(&b, "Reference material:\n%s\n\n", truncate(body, 1200))
	fmt.Fprintf(&b, "For this step, %s.\n", focusForStep(step))
	if lastReply != "" {
		fmt.Fprintf(&b, "Your previous message was:\n%s\nDo not repeat it; build on it.\n", truncate(lastReply, 400))
	}
	b.WriteString("Write the next part of the explanation now.")
	return b.String()
}

func checkQuestionPrompt(topic, subtopic, body string) string {
	return fmt.Sprintf(`Topic: %s
Subtopic: %s

Reference material:
%s

Write ONE short open question that checks whether the student understood this
subtopic. The question must be answerable from the material above. Ask the
question only, with no preamble.`, topic, subtopic, truncate(body, 1200))
}

func answerFeedbackPrompt(question, answer, concept string, correct bool) string {
	verdict := "The answer is essentially correct."
	if !correct {
		verdict = "The answer is incomplete or incorrect."
	}
	return fmt.Sprintf(`The student was asked: %q
They answered: %q
%s

Write 2-3 sentences of feedback on the answer about %q. Acknowledge what was
right, gently correct what was not, and end on an encouraging note.`,
		question, answer, verdict, concept)
}

func userQuestionPrompt(question string, passages []string) string {
	material := "No matching material was found."
	if len(passages) > 0 {
		material = strings.Join(passages, "\n---\n")
	}
	return fmt.Sprintf(`The student asked: %q

Relevant material:
%s

Answer the question in 2-4 sentences using only the material above. If the
material does not cover it, say so briefly and steer back to the lesson.`,
		question, material)
}

func transitionPrompt(topic, nextSubtopic string, done, total int) string {
	return fmt.Sprintf(`We are in a tutoring session on %q and have finished %d of %d
subtopics. The next subtopic is %q.

Write one short bridging sentence that closes the previous subtopic and
introduces the next one.`, topic, done, total, nextSubtopic)
}

func quizPrompt(topic string, concepts []string, difficulty string) string {
	return fmt.Sprintf(`Write a quick %s-difficulty quiz question on %q covering these
concepts the student has just learned: %s.

Ask ONE question that ties the concepts together. Question only, no answer.`,
		difficulty, topic, strings.Join(concepts, ", "))
}

func quizFeedbackPrompt(topic, answer string, performance float64) string {
	verdict := "The student did well."
	if performance <= 0.5 {
		verdict = "The student struggled and needs a brief recap of the weak points."
	}
	return fmt.Sprintf(`In a quiz on %q the student answered: %q
%s

Write 2-3 sentences of quiz feedback, then say we will continue the lesson.`,
		topic, answer, verdict)
}

func endIntentPrompt(text string) string {
	return fmt.Sprintf(`Does the following message express that the student wants to
stop or end the tutoring session? Message: %q`, text)
}

func isQuestionPrompt(text string) string {
	return fmt.Sprintf(`Is the following message a question asking for information or
an explanation, rather than an answer or a statement? Message: %q`, text)
}

func scorePrompt(question, answer, material string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nStudent answer: %s\n", question, answer)
	if material != "" {
		fmt.Fprintf(&b, "Reference material:\n%s\n", truncate(material, 800))
	}
	b.WriteString("Score the answer from 0.0 to 1.0.")
	return b.String()
}

// Deterministic fallback replies used when generation fails mid-session. The
// lesson keeps moving even with the AI backend down.
func fallbackIntro(topic string) string {
	return fmt.Sprintf("Welcome! Today we are going to work through %s together. Say anything when you are ready to begin.", topic)
}

func fallbackExplanation(subtopic string, step int) string {
	return fmt.Sprintf("Let's keep going with %s (part %d). Read through your notes on this and tell me when you are ready for more.", subtopic, step)
}

func fallbackCheckQuestion(subtopic string) string {
	return fmt.Sprintf("In your own words, what is the most important thing to remember about %s?", subtopic)
}

func fallbackFeedback(correct bool) string {
	if correct {
		return "Good answer, that covers the key point. Let's move on."
	}
	return "Not quite, but that's okay. Have another look at this idea as we continue."
}

func fallbackTransition(next string) string {
	return fmt.Sprintf("Nice progress. Next up: %s.", next)
}

func fallbackQuiz(topic string) string {
	return fmt.Sprintf("Quick check: summarize what we have covered about %s so far in one or two sentences.", topic)
}

func fallbackQuizFeedback() string {
	return "Thanks, noted. Let's get back to the lesson."
}

func fallbackAnswerToQuestion() string {
	return "Good question. I can't look that up right now, but let's keep it in mind and continue the lesson."
}

func summaryText(topic string, stats Stats, concepts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great work today! Here is a summary of your session on %s:\n", topic)
	fmt.Fprintf(&b, "- Interactions: %d\n", stats.TotalInteractions)
	fmt.Fprintf(&b, "- Concepts learned: %d", stats.ConceptsLearned)
	if len(concepts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(concepts, ", "))
	}
	b.WriteString("\n")
	if stats.QuizzesTaken > 0 {
		fmt.Fprintf(&b, "- Quizzes taken: %d\n", stats.QuizzesTaken)
	}
	fmt.Fprintf(&b, "- Average score: %.0f%%\n", stats.AverageScore*100)
	fmt.Fprintf(&b, "- Time spent: %.0f minutes\n", stats.DurationMinutes)
	b.WriteString("Come back any time to review or continue with a new topic.")
	return b.String()
}

func noContentMessage(topic string) string {
	return fmt.Sprintf("I don't have any teaching material for %q yet, so there is nothing to cover in this session. Try another topic.", topic)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
