package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Pull returns one page of dataType. token is the session token, optionally
// followed by the cursor of a previous page. The pseudo type "diff" returns
// rows of every type changed since the previous check, each tagged with its
// type.
func (s *Service) Pull(ctx context.Context, user *models.User, dataType, token string) (*models.Page, error) {
	claims, cursor, err := s.verifyToken(user, token)
	if err != nil {
		return nil, err
	}

	repo := s.rm.Catalog(s.conn())
	var rows []models.CatalogRow
	if dataType == models.DiffType {
		after := max(cursor, claims.Since)
		rows, err = repo.Changed(ctx, user.ID, after, s.pageSize+1)
	} else {
		rows, err = repo.Page(ctx, user.ID, dataType, cursor, s.pageSize+1)
	}
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", dataType, err)
	}

	p := &models.Page{Data: make([]json.RawMessage, 0, len(rows))}
	if len(rows) > s.pageSize {
		rows = rows[:s.pageSize]
		more := rows[len(rows)-1].Seq
		p.More = &more
	}
	for _, r := range rows {
		payload := r.Payload
		if dataType == models.DiffType {
			if payload, err = withType(payload, r.DataType); err != nil {
				return nil, fmt.Errorf("pull %s: row %s: %w", dataType, r.Key, err)
			}
		}
		p.Data = append(p.Data, payload)
	}

	s.log.Debug(ctx, "page served", "user", user.UserName, "type", dataType, "cursor", cursor, "rows", len(p.Data))
	return p, nil
}

// withType sets the "type" field of a JSON object.
func withType(payload json.RawMessage, dataType string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, err
	}
	t, err := json.Marshal(dataType)
	if err != nil {
		return nil, err
	}
	obj["type"] = t
	return json.Marshal(obj)
}

// Content returns the printable content of a referenced document.
func (s *Service) Content(ctx context.Context, user *models.User, docType, docGUID, token string) (string, error) {
	if _, _, err := s.verifyToken(user, token); err != nil {
		return "", err
	}
	return s.rm.Catalog(s.conn()).Content(ctx, user.ID, docType, docGUID)
}
