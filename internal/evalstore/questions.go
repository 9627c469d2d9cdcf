// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// AddQuestion stores a question and its sources and returns it with ID and
// CreatedAt set.
func (s *Store) AddQuestion(ctx context.Context, q types.Question) (types.Question, error) {
	if strings.TrimSpace(q.Name) == "" || strings.TrimSpace(q.Content) == "" {
		return types.Question{}, errors.New("adding question: name and content are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Question{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	created, ts := s.timestamp()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (name, content, created_at) VALUES (?, ?, ?)`,
		q.Name, q.Content, ts,
	)
	if err != nil {
		return types.Question{}, fmt.Errorf("inserting question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Question{}, fmt.Errorf("reading question id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sources (question_id, position, title, pages) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return types.Question{}, fmt.Errorf("preparing source insert: %w", err)
	}
	defer stmt.Close()

	for i, src := range q.Sources {
		pages, err := json.Marshal(src.Pages)
		if err != nil {
			return types.Question{}, fmt.Errorf("encoding pages of %q: %w", src.Title, err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, src.Title, string(pages)); err != nil {
			return types.Question{}, fmt.Errorf("inserting source %q: %w", src.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Question{}, fmt.Errorf("committing question: %w", err)
	}

	q.ID = id
	q.CreatedAt = created
	return q, nil
}

// Questions returns all questions in insertion order, without sources.
func (s *Store) Questions(ctx context.Context) ([]types.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, created_at FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var out []types.Question
	for rows.Next() {
		var (
			q  types.Question
			ts string
		)
		if err := rows.Scan(&q.ID, &q.Name, &q.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		q.CreatedAt = parseTime(ts)
		out = append(out, q)
	}
	return out, rows.Err()
}

// Question returns one question with its sources.
func (s *Store) Question(ctx context.Context, id int64) (types.Question, error) {
	var (
		q  types.Question
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, created_at FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.Name, &q.Content, &ts)
	if err != nil {
		return types.Question{}, notFound(err, fmt.Sprintf("question %d", id))
	}
	q.CreatedAt = parseTime(ts)

	q.Sources, err = s.SourcesForQuestion(ctx, id)
	if err != nil {
		return types.Question{}, err
	}
	return q, nil
}

// SourcesForQuestion returns a question's sources in the order they were added.
func (s *Store) SourcesForQuestion(ctx context.Context, questionID int64) ([]types.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, pages FROM sources WHERE question_id = ? ORDER BY position`, questionID)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var out []types.Source
	for rows.Next() {
		var (
			src   types.Source
			pages string
		)
		if err := rows.Scan(&src.Title, &pages); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		if err := json.Unmarshal([]byte(pages), &src.Pages); err != nil {
			return nil, fmt.Errorf("decoding pages of %q: %w", src.Title, err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// DeleteQuestion removes a question and its sources. Results that refer to
// the question are kept.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting question %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("question %d", id))
}
