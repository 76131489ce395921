package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Seed is the layout of the seed file.
type Seed struct {
	Users []struct {
		UserName string         `json:"username"`
		Password string         `json:"password"`
		Options  models.Options `json:"options"`
	} `json:"users"`
	Catalog []struct {
		User string          `json:"user"`
		Type string          `json:"type"`
		Key  string          `json:"key"`
		Data json.RawMessage `json:"data"`
	} `json:"catalog"`
	Contents []struct {
		User    string `json:"user"`
		DocType string `json:"doc_type"`
		DocGUID string `json:"doc_guid"`
		Content string `json:"content"`
	} `json:"contents"`
}

// LoadSeed upserts the users, catalog rows and document contents read from
// r in one transaction.
func (s *Service) LoadSeed(ctx context.Context, r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	return s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ids := map[string]string{}
		for _, u := range seed.Users {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return fmt.Errorf("hash password of %s: %w", u.UserName, err)
			}
			user, err := s.rm.Users(tx).Create(ctx, &models.User{UserName: u.UserName, PasswordHash: hash, Options: u.Options})
			if err != nil {
				return fmt.Errorf("create user %s: %w", u.UserName, err)
			}
			ids[u.UserName] = user.ID
		}

		userID := func(name string) (string, error) {
			if id, ok := ids[name]; ok {
				return id, nil
			}
			u, err := s.rm.Users(tx).GetUserByLogin(ctx, name)
			if err != nil {
				return "", fmt.Errorf("user %s: %w", name, err)
			}
			ids[name] = u.ID
			return u.ID, nil
		}

		for _, c := range seed.Catalog {
			id, err := userID(c.User)
			if err != nil {
				return err
			}
			row := models.CatalogRow{UserID: id, DataType: c.Type, Key: c.Key, Payload: c.Data}
			if _, err := s.rm.Catalog(tx).Upsert(ctx, row); err != nil {
				return fmt.Errorf("upsert %s %s: %w", c.Type, c.Key, err)
			}
		}
		for _, c := range seed.Contents {
			id, err := userID(c.User)
			if err != nil {
				return err
			}
			if err := s.rm.Catalog(tx).PutContent(ctx, id, c.DocType, c.DocGUID, c.Content); err != nil {
				return fmt.Errorf("content %s %s: %w", c.DocType, c.DocGUID, err)
			}
		}

		s.log.Info(ctx, "seed loaded", "users", len(seed.Users), "catalog", len(seed.Catalog), "contents", len(seed.Contents))
		return nil
	})
}
