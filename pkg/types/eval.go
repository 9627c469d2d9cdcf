// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Page is one page of a source document.
type Page struct {
	Type string `json:"type" yaml:"type"`
	Text string `json:"text" yaml:"text"`
}

// Source is a titled document attached to a question.
type Source struct {
	Title string `json:"title" yaml:"title"`
	Pages []Page `json:"pages" yaml:"pages"`
}

// Question is an evaluation question with its source documents.
type Question struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Content   string    `json:"content" yaml:"content"`
	Sources   []Source  `json:"sources,omitempty" yaml:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Prompt is a versioned prompt template. Templates may reference
// {question} and {sources}.
type Prompt struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Content   string    `json:"content" yaml:"content"`
	Version   int       `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// TestRun groups the results of running one prompt and one sampling
// configuration over a set of questions.
type TestRun struct {
	ID          string         `json:"id" yaml:"id"`
	PromptID    int64          `json:"prompt_id" yaml:"prompt_id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Model       string         `json:"model" yaml:"model"`
	Sampling    SamplingConfig `json:"sampling" yaml:"sampling"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
}

// RunResult is the formatted response to one question within a test run.
type RunResult struct {
	ID         int64     `json:"id" yaml:"id"`
	RunID      string    `json:"run_id" yaml:"run_id"`
	QuestionID int64     `json:"question_id" yaml:"question_id"`
	Response   string    `json:"response" yaml:"response"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}
