package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

// Document statuses.
const (
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusConfirmed = "confirmed"
)

type postEnvelope struct {
	Type string `json:"type"`
}

type documentBody struct {
	GUID       string            `json:"guid"`
	ClientGUID string            `json:"client_guid"`
	Sum        float64           `json:"sum"`
	Items      []json.RawMessage `json:"items"`
}

type batchBody struct {
	Data json.RawMessage `json:"data"`
}

type pushTokenBody struct {
	Token string `json:"token"`
}

// Post accepts one document or auxiliary upload. Malformed bodies and
// unknown kinds fail with common.ErrProtocol; a well-formed document that
// fails validation is stored with a rejected status instead.
func (s *Service) Post(ctx context.Context, user *models.User, token string, body []byte) (*models.PostResult, error) {
	if _, _, err := s.verifyToken(user, token); err != nil {
		return nil, err
	}

	var env postEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrProtocol, err)
	}

	switch env.Type {
	case models.KindOrder, models.KindCash:
		return s.postDocument(ctx, user, env.Type, body)
	case models.UploadLocations, models.UploadClientsLocations, models.UploadCompetitorPrices:
		var b batchBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrProtocol, env.Type, err)
		}
		if len(b.Data) == 0 || string(b.Data) == "null" {
			return nil, fmt.Errorf("%w: %s: no data", common.ErrProtocol, env.Type)
		}
		return s.addUpload(ctx, user, env.Type, b.Data)
	case models.UploadPushToken:
		var b pushTokenBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", common.ErrProtocol, env.Type, err)
		}
		if b.Token == "" {
			return nil, fmt.Errorf("%w: push token is empty", common.ErrProtocol)
		}
		return s.addUpload(ctx, user, env.Type, body)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", common.ErrProtocol, env.Type)
	}
}

func (s *Service) addUpload(ctx context.Context, user *models.User, kind string, payload json.RawMessage) (*models.PostResult, error) {
	err := s.rm.Documents(s.conn()).AddUpload(ctx, models.Upload{UserID: user.ID, Kind: kind, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", kind, err)
	}
	s.log.Info(ctx, "upload received", "user", user.UserName, "kind", kind)
	return &models.PostResult{Result: models.ResultOK}, nil
}

func (s *Service) postDocument(ctx context.Context, user *models.User, kind string, body []byte) (*models.PostResult, error) {
	var b documentBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrProtocol, kind, err)
	}
	if b.GUID == "" {
		return nil, fmt.Errorf("%w: %s without guid", common.ErrProtocol, kind)
	}

	repo := s.rm.Documents(s.conn())
	if prev, err := repo.Get(ctx, user.ID, b.GUID); err == nil {
		s.log.Info(ctx, "document resubmitted", "user", user.UserName, "kind", kind, "guid", b.GUID)
		return documentResult(prev), nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("get %s %s: %w", kind, b.GUID, err)
	}

	doc := &models.Document{
		UserID:  user.ID,
		GUID:    b.GUID,
		Kind:    kind,
		Payload: body,
		Result:  models.ResultOK,
		Status:  StatusAccepted,
	}
	if reason := validate(kind, b); reason != "" {
		doc.Result, doc.Status, doc.Error = models.ResultError, StatusRejected, reason
	}

	err := repo.Create(ctx, doc)
	if errors.Is(err, common.ErrAlreadyExists) {
		prev, gerr := repo.Get(ctx, user.ID, b.GUID)
		if gerr != nil {
			return nil, fmt.Errorf("get %s %s: %w", kind, b.GUID, gerr)
		}
		return documentResult(prev), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store %s %s: %w", kind, b.GUID, err)
	}

	if doc.Status == StatusAccepted {
		s.storeReceipt(ctx, doc)
	}
	s.log.Info(ctx, "document received", "user", user.UserName, "kind", kind, "guid", b.GUID, "status", doc.Status)
	return documentResult(doc), nil
}

func validate(kind string, b documentBody) string {
	if b.ClientGUID == "" {
		return "client_guid is empty"
	}
	switch kind {
	case models.KindOrder:
		if len(b.Items) == 0 {
			return "order has no items"
		}
	case models.KindCash:
		if b.Sum <= 0 {
			return "sum must be positive"
		}
	}
	return ""
}

func documentResult(d *models.Document) *models.PostResult {
	return &models.PostResult{Result: d.Result, Status: d.Status, Error: d.Error}
}

// Confirm records the agent's response code for a document.
func (s *Service) Confirm(ctx context.Context, user *models.User, code, guid string) (*models.PostResult, error) {
	err := s.rm.Documents(s.conn()).Confirm(ctx, user.ID, guid, code, StatusConfirmed)
	if errors.Is(err, common.ErrNotFound) {
		return &models.PostResult{Result: models.ResultError, Error: "document not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("confirm %s: %w", guid, err)
	}
	s.log.Info(ctx, "document confirmed", "user", user.UserName, "guid", guid, "code", code)
	return &models.PostResult{Result: models.ResultOK, Status: StatusConfirmed}, nil
}

// Print returns the printable file of a submitted document, base64 encoded.
func (s *Service) Print(ctx context.Context, user *models.User, guid string) (*models.PostResult, error) {
	if s.prints == nil {
		return &models.PostResult{Result: models.ResultError, Error: "printing is not enabled"}, nil
	}

	_, err := s.rm.Documents(s.conn()).Get(ctx, user.ID, guid)
	if errors.Is(err, common.ErrNotFound) {
		return &models.PostResult{Result: models.ResultError, Error: "document not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", guid, err)
	}

	file, err := s.prints.Get(ctx, guid)
	if errors.Is(err, common.ErrNotFound) {
		return &models.PostResult{Result: models.ResultError, Error: "no printable file"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", guid, err)
	}
	return &models.PostResult{Result: models.ResultOK, Data: base64.StdEncoding.EncodeToString(file)}, nil
}
