// Package services implements the reference sync server: account checks,
// paginated catalog pulls, document intake and print/confirm requests.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/config"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/server/printstore"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/repomanager"
)

type Service struct {
	// db is nil with in-memory storage.
	db        *sql.DB
	rm        repomanager.RepositoryManager
	prints    printstore.Store
	log       logging.Logger
	jwtSecret []byte
	validity  time.Duration
	pageSize  int
}

// NewService wires the service. prints may be nil, in which case print
// requests are answered with an error result.
func NewService(db *sql.DB, rm repomanager.RepositoryManager, prints printstore.Store, cfg *config.Config, log logging.Logger) *Service {
	return &Service{
		db:        db,
		rm:        rm,
		prints:    prints,
		log:       log,
		jwtSecret: []byte(cfg.SecretKey),
		validity:  cfg.TokenValidity,
		pageSize:  cfg.PageSize,
	}
}

func (s *Service) conn() dbx.DBTX {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// Authenticate checks basic-auth credentials.
func (s *Service) Authenticate(ctx context.Context, userName, password string) (*models.User, error) {
	user, err := s.rm.Users(s.conn()).GetUserByLogin(ctx, userName)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrUnauthorized
	}
	return user, nil
}

// Check issues a session token and returns the user's options. The token
// remembers the catalog position of the previous check, so a differential
// pull made with it returns everything changed since then.
func (s *Service) Check(ctx context.Context, user *models.User, userID string) (models.Options, error) {
	if userID != user.UserName && userID != user.ID {
		return models.Options{}, common.ErrAccessDenied
	}

	var since int64
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		top, err := s.rm.Catalog(tx).MaxSeq(ctx, user.ID)
		if err != nil {
			return err
		}
		since, err = s.rm.Users(tx).AdvanceSeq(ctx, user.ID, top)
		return err
	})
	if err != nil {
		return models.Options{}, fmt.Errorf("advance seq: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, since, s.jwtSecret, s.validity)
	if err != nil {
		return models.Options{}, fmt.Errorf("generate token: %w", err)
	}

	opts := user.Options
	opts.Token = token
	if opts.UserName == "" {
		opts.UserName = user.UserName
	}
	s.log.Info(ctx, "session opened", "user", user.UserName, "since", since)
	return opts, nil
}

// verifyToken parses a path token, which may carry a "-more<cursor>" suffix,
// and checks that it belongs to user.
func (s *Service) verifyToken(user *models.User, raw string) (*auth.Claims, int64, error) {
	token, cursor := raw, int64(0)
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		i := strings.LastIndex(raw, "-more")
		if i < 0 {
			return nil, 0, err
		}
		n, perr := strconv.ParseInt(raw[i+len("-more"):], 10, 64)
		if perr != nil || n < 0 {
			return nil, 0, err
		}
		token, cursor = raw[:i], n
		if claims, err = auth.ParseToken(token, s.jwtSecret); err != nil {
			return nil, 0, err
		}
	}
	if claims.UserID != user.ID {
		return nil, 0, common.ErrAccessDenied
	}
	return claims, cursor, nil
}
