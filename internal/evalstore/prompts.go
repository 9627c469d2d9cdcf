// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// AddPrompt stores a new version of the named prompt. The first prompt with
// a name is version 1; each later one gets the next version.
func (s *Store) AddPrompt(ctx context.Context, name, content string) (types.Prompt, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return types.Prompt{}, errors.New("adding prompt: name and content are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Prompt{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM prompts WHERE name = ?`, name,
	).Scan(&latest); err != nil {
		return types.Prompt{}, fmt.Errorf("reading latest version of %q: %w", name, err)
	}

	created, ts := s.timestamp()
	p := types.Prompt{Name: name, Content: content, Version: latest + 1, CreatedAt: created}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO prompts (name, content, version, created_at) VALUES (?, ?, ?, ?)`,
		p.Name, p.Content, p.Version, ts,
	)
	if err != nil {
		return types.Prompt{}, fmt.Errorf("inserting prompt: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return types.Prompt{}, fmt.Errorf("reading prompt id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Prompt{}, fmt.Errorf("committing prompt: %w", err)
	}
	return p, nil
}

// Prompts returns all prompts ordered by name and version.
func (s *Store) Prompts(ctx context.Context) ([]types.Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, version, created_at FROM prompts ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("querying prompts: %w", err)
	}
	defer rows.Close()

	var out []types.Prompt
	for rows.Next() {
		var (
			p  types.Prompt
			ts string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &p.Version, &ts); err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		p.CreatedAt = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Prompt returns one prompt by ID.
func (s *Store) Prompt(ctx context.Context, id int64) (types.Prompt, error) {
	var (
		p  types.Prompt
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, version, created_at FROM prompts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Content, &p.Version, &ts)
	if err != nil {
		return types.Prompt{}, notFound(err, fmt.Sprintf("prompt %d", id))
	}
	p.CreatedAt = parseTime(ts)
	return p, nil
}

// DeletePrompt removes one prompt version. Test runs that used it keep
// their results and lose the prompt reference.
func (s *Store) DeletePrompt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting prompt %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("prompt %d", id))
}
