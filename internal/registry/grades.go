package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/openlms/lticore/pkg/lti1p3/deeplinking"
)

/*
Grade and content item persistence.

Shares the registry database: scores pushed back over the 1.1 Result and
Outcomes services land in the scores table, and content items returned
from deep linking flows land in content_items.
*/

// ErrScoreNotFound means no grade is stored for the tool/user pair.
var ErrScoreNotFound = errors.New("registry: score not found")

// GetScore returns the stored grade for one tool/user pair. A stored row
// may carry no score (cleared grade), in which case score is nil.
func (s *Store) GetScore(ctx context.Context, toolID, userID string) (*float64, string, error) {
	q := `SELECT score, comment FROM scores WHERE tool_id = $1 AND user_id = $2`
	var score sql.NullFloat64
	var comment string
	err := s.db.QueryRowContext(ctx, s.rebind(q), toolID, userID).Scan(&score, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrScoreNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if !score.Valid {
		return nil, comment, nil
	}
	v := score.Float64
	return &v, comment, nil
}

// SetScore stores or replaces the grade for one tool/user pair.
func (s *Store) SetScore(ctx context.Context, toolID, userID string, score *float64, comment string) error {
	q := `
INSERT INTO scores (tool_id, user_id, score, comment, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (tool_id, user_id) DO UPDATE SET
  score=EXCLUDED.score, comment=EXCLUDED.comment, updated_at=EXCLUDED.updated_at`
	var v sql.NullFloat64
	if score != nil {
		v = sql.NullFloat64{Float64: *score, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(q), toolID, userID, v, comment, time.Now().Unix())
	return err
}

// DeleteScore clears the grade. Unknown pairs are not an error.
func (s *Store) DeleteScore(ctx context.Context, toolID, userID string) error {
	q := `DELETE FROM scores WHERE tool_id = $1 AND user_id = $2`
	_, err := s.db.ExecContext(ctx, s.rebind(q), toolID, userID)
	return err
}

// SaveContentItems appends the content items a tool returned from a deep
// linking flow, one row per item.
func (s *Store) SaveContentItems(ctx context.Context, toolID string, items []deeplinking.ContentItem) error {
	q := `INSERT INTO content_items (tool_id, item_type, payload, created_at) VALUES ($1,$2,$3,$4)`
	now := time.Now().Unix()
	for _, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, s.rebind(q), toolID, it.Type, string(raw), now); err != nil {
			return err
		}
	}
	return nil
}
