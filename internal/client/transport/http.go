package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"golang.org/x/sync/errgroup"
)

// HTTPConfig holds the connection parameters of the HTTP transport.
type HTTPConfig struct {
	BaseURL  string
	UserID   string
	Username string
	Password string

	Timeout            time.Duration
	Retry              RetryPolicy
	ContentParallelism int
}

// HTTP is the live protocol client.
type HTTP struct {
	cfg   HTTPConfig
	api   *apiClient
	log   logging.Logger
	state stateMachine

	mu    sync.Mutex
	token string
}

func NewHTTP(cfg HTTPConfig, log logging.Logger) *HTTP {
	if cfg.ContentParallelism <= 0 {
		cfg.ContentParallelism = 1
	}
	return &HTTP{
		cfg: cfg,
		api: newAPIClient(cfg.BaseURL, cfg.Username, cfg.Password, cfg.Timeout, cfg.Retry),
		log: log.With("module", "transport", "format", config.FormatHTTP),
	}
}

func (t *HTTP) Format() string { return config.FormatHTTP }

// State returns the protocol state of the running (or last) session.
func (t *HTTP) State() State { return t.state.get() }

func (t *HTTP) setState(ctx context.Context, s State, args ...any) {
	t.state.set(s)
	t.log.Debug(ctx, "state", append([]any{"state", s}, args...)...)
}

func (t *HTTP) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		s := &httpSession{t: t, req: req, out: out}
		if err := s.run(ctx); err != nil {
			t.setState(ctx, StateFailed, "error", err)
			out <- Event{Kind: EventFailed, Err: err}
			return
		}
		t.setState(ctx, StateFinished)
		out <- Event{Kind: EventFinished}
	}()
	return out
}

// DocumentContent fetches one debt document body, requesting a session
// token first when none is known.
func (t *HTTP) DocumentContent(ctx context.Context, docType, docGUID string) (string, error) {
	token := t.currentToken()
	if token == "" {
		opts, err := t.requestToken(ctx)
		if err != nil {
			return "", err
		}
		token = opts.Token
	}
	return t.fetchContent(ctx, token, docType, docGUID)
}

func (t *HTTP) currentToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

func (t *HTTP) requestToken(ctx context.Context) (models.Options, error) {
	var opts models.Options
	if err := t.api.getJSON(ctx, "check/"+url.PathEscape(t.cfg.UserID), &opts); err != nil {
		return opts, fmt.Errorf("token request: %w", err)
	}
	if !opts.Read || opts.Token == "" {
		return opts, fmt.Errorf("token request: %w", common.ErrAccessDenied)
	}
	t.mu.Lock()
	t.token = opts.Token
	t.mu.Unlock()
	return opts, nil
}

func (t *HTTP) fetchContent(ctx context.Context, token, docType, docGUID string) (string, error) {
	var r contentResponse
	path := fmt.Sprintf("document/%s/%s/%s", url.PathEscape(docType), url.PathEscape(docGUID), url.PathEscape(token))
	if err := t.api.getJSON(ctx, path, &r); err != nil {
		return "", err
	}
	return r.Content, nil
}

// httpSession is the state of one Run.
type httpSession struct {
	t    *HTTP
	req  Request
	out  chan<- Event
	opts models.Options

	content    errgroup.Group
	contentCtx context.Context
}

func (s *httpSession) emit(ev Event) { s.out <- ev }

func (s *httpSession) run(ctx context.Context) error {
	switch s.req.Mode {
	case ModeConfirm:
		return s.confirm(ctx)
	case ModePrint:
		return s.print(ctx)
	case ModeFull, ModeSendOnly:
	default:
		return fmt.Errorf("unknown session mode %q", s.req.Mode)
	}

	s.t.setState(ctx, StateTokenRequest)
	opts, err := s.t.requestToken(ctx)
	if err != nil {
		return err
	}
	s.opts = opts
	s.emit(Event{Kind: EventOptions, Options: opts})

	var cancel context.CancelFunc
	s.contentCtx, cancel = context.WithCancel(ctx)
	defer cancel()
	s.content.SetLimit(s.t.cfg.ContentParallelism)

	err = s.exchange(ctx)
	if err != nil {
		cancel()
	}
	// content fetches never fail the session, but must finish before the
	// terminal event
	_ = s.content.Wait()
	return err
}

func (s *httpSession) exchange(ctx context.Context) error {
	if s.req.Mode == ModeFull {
		for _, dt := range s.opts.PullTypes() {
			if err := s.pull(ctx, dt, StatePulling); err != nil {
				return err
			}
		}
	}

	pushed, err := s.push(ctx)
	if err != nil {
		return err
	}

	if s.opts.DifferentialUpdates && pushed > 0 {
		if err := s.pull(ctx, models.TypeDiff, StateDiff); err != nil {
			return err
		}
	}
	return nil
}

// pull pages through one data type. Protocol problems abandon the type;
// every other error is terminal.
func (s *httpSession) pull(ctx context.Context, dt models.DataType, state State) error {
	log := s.t.log.With("data_type", dt)
	var cursor int64
	for {
		s.t.setState(ctx, state, "data_type", dt, "cursor", cursor)

		path := fmt.Sprintf("get/%s/%s", dt, url.PathEscape(s.opts.Token))
		if cursor > 0 {
			path += fmt.Sprintf("-more%d", cursor)
		}
		body, err := s.t.api.get(ctx, path)
		if errors.Is(err, common.ErrProtocol) {
			log.Warn(ctx, "pull abandoned", "cursor", cursor, "error", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("pull %s: %w", dt, err)
		}

		rows, more, err := decodePage(body, dt)
		if err != nil {
			log.Warn(ctx, "malformed page, pull abandoned", "cursor", cursor, "error", err)
			return nil
		}
		if len(rows) > 0 {
			s.emit(Event{Kind: EventRecords, DataType: dt, Records: rows})
		}
		// content rows only update debts already emitted
		s.scheduleContent(rows)
		log.Debug(ctx, "page received", "cursor", cursor, "records", len(rows))

		if more == nil {
			if dt.IsReference() {
				s.emit(Event{Kind: EventPulled, DataType: dt})
			}
			return nil
		}
		if *more <= cursor {
			log.Warn(ctx, "protocol anomaly: cursor did not advance, pull stopped", "cursor", cursor, "more", *more)
			return nil
		}
		cursor = *more
	}
}

func (s *httpSession) scheduleContent(rows []models.Row) {
	ctx := s.contentCtx
	for _, r := range rows {
		d, ok := r.(models.Debt)
		if !ok || !d.NeedsContent() {
			continue
		}
		s.content.Go(func() error {
			c, err := s.t.fetchContent(ctx, s.opts.Token, d.DocType, d.DocGUID)
			if err != nil {
				s.t.log.Warn(ctx, "document content fetch failed", "doc_guid", d.DocGUID, "error", err)
				return nil
			}
			s.emit(Event{
				Kind:     EventRecords,
				DataType: models.TypeDocumentContent,
				Records:  []models.Row{models.DocumentContent{DocType: d.DocType, DocGUID: d.DocGUID, Content: c}},
			})
			return nil
		})
	}
}

// push posts every outbound document and auxiliary upload once and returns
// the number of documents the server answered.
func (s *httpSession) push(ctx context.Context) (int, error) {
	box := s.req.Outbox
	path := "post/" + url.PathEscape(s.opts.Token)
	pushed := 0

	type doc struct {
		kind models.DocKind
		guid string
		body any
	}
	var docs []doc
	for _, o := range box.Orders {
		docs = append(docs, doc{models.KindOrder, o.GUID, orderPayload(o)})
	}
	for _, c := range box.Cash {
		docs = append(docs, doc{models.KindCash, c.GUID, cashPayload(c)})
	}
	if len(docs) > 0 && !s.opts.Write {
		s.t.log.Warn(ctx, "server does not accept documents, push skipped", "documents", len(docs))
		docs = nil
	}

	for _, d := range docs {
		s.t.setState(ctx, StatePushing, "kind", d.kind, "guid", d.guid)
		var r pushResponse
		err := s.t.api.postJSON(ctx, path, d.body, &r)
		if errors.Is(err, common.ErrProtocol) {
			s.t.log.Warn(ctx, "push rejected", "kind", d.kind, "guid", d.guid, "error", err)
			s.emit(Event{Kind: EventResult, Result: models.PendingResult{Kind: d.kind, GUID: d.guid, Result: "error", Error: err.Error()}})
			continue
		}
		if err != nil {
			return pushed, fmt.Errorf("push %s %s: %w", d.kind, d.guid, err)
		}
		pushed++
		s.emit(Event{Kind: EventResult, Result: models.PendingResult{
			Kind: d.kind, GUID: d.guid, Result: r.Result, Status: r.Status, Error: r.Error,
		}})
	}

	for _, u := range auxUploads(box, s.opts) {
		s.t.setState(ctx, StatePushing, "kind", u.kind)
		var r pushResponse
		err := s.t.api.postJSON(ctx, path, u.body, &r)
		if errors.Is(err, common.ErrProtocol) {
			s.t.log.Warn(ctx, "upload rejected", "kind", u.kind, "error", err)
			continue
		}
		if err != nil {
			return pushed, fmt.Errorf("upload %s: %w", u.kind, err)
		}
		s.emit(Event{Kind: EventAuxResult, Aux: u.result(r)})
	}
	return pushed, nil
}

func (s *httpSession) confirm(ctx context.Context) error {
	s.t.setState(ctx, StateConfirming, "guid", s.req.ConfirmGUID)
	var r pushResponse
	path := fmt.Sprintf("confirm/%s/%s", url.PathEscape(s.req.ResponseCode), url.PathEscape(s.req.ConfirmGUID))
	if err := s.t.api.getJSON(ctx, path, &r); err != nil {
		return fmt.Errorf("confirm %s: %w", s.req.ConfirmGUID, err)
	}
	s.emit(Event{Kind: EventResult, Result: models.PendingResult{
		Kind: s.req.ConfirmKind, GUID: s.req.ConfirmGUID, Result: r.Result, Status: r.Status, Error: r.Error,
	}})
	return nil
}

func (s *httpSession) print(ctx context.Context) error {
	s.t.setState(ctx, StatePrinting, "guid", s.req.PrintGUID)
	var r printResponse
	if err := s.t.api.getJSON(ctx, "print/"+url.PathEscape(s.req.PrintGUID), &r); err != nil {
		return fmt.Errorf("print %s: %w", s.req.PrintGUID, err)
	}
	if !models.IsOK(r.Result) {
		return fmt.Errorf("%w: print %s: %s", common.ErrServer, s.req.PrintGUID, r.Error)
	}
	file, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		return fmt.Errorf("%w: print %s: %w", common.ErrProtocol, s.req.PrintGUID, err)
	}
	s.emit(Event{Kind: EventPrint, File: file})
	return nil
}
