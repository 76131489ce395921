package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/client/transport"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// TransportFactory builds the transport of a tenant.
type TransportFactory func(tc config.TenantConfig) (transport.Transport, error)

// DefaultTransports selects transports with transport.New.
func DefaultTransports(cfg *config.Config, log logging.Logger) TransportFactory {
	return func(tc config.TenantConfig) (transport.Transport, error) {
		return transport.New(tc, cfg, log)
	}
}

// SessionRequest describes what a session should do.
type SessionRequest struct {
	Mode transport.Mode

	ConfirmKind  models.DocKind
	ConfirmGUID  string
	ResponseCode string

	PrintGUID string
}

type SyncService interface {
	// Start begins a session and returns immediately. It fails with
	// common.ErrSyncActive while another session of the tenant runs.
	Start(ctx context.Context, tenantID string, req SessionRequest) (*Session, error)
	// Run starts a session and waits for it.
	Run(ctx context.Context, tenantID string, req SessionRequest) (*Summary, error)
	// DocumentContent returns the body of a debt document, fetching and
	// storing it when it is not cached.
	DocumentContent(ctx context.Context, tenantID, clientGUID, docID string) (string, error)
	// ActiveSessions lists tenants with a running session.
	ActiveSessions() []string
}

type syncService struct {
	store      *store.Store
	transports TransportFactory
	cfg        *config.Config
	log        logging.Logger
	now        func() time.Time

	mu     sync.Mutex
	active map[string]bool
}

func NewSyncService(st *store.Store, transports TransportFactory, cfg *config.Config, log logging.Logger) SyncService {
	return &syncService{
		store:      st,
		transports: transports,
		cfg:        cfg,
		log:        log.With("module", "sync"),
		now:        time.Now,
		active:     map[string]bool{},
	}
}

// Session is a running sync session.
type Session struct {
	Tenant string
	Mode   transport.Mode

	done    chan struct{}
	summary *Summary
	err     error
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends. On failure the summary is nil and the
// error carries the classified cause (see common.Classify).
func (s *Session) Wait() (*Summary, error) {
	<-s.done
	return s.summary, s.err
}

func (s *syncService) acquire(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[tenantID] {
		return false
	}
	s.active[tenantID] = true
	return true
}

func (s *syncService) release(tenantID string) {
	s.mu.Lock()
	delete(s.active, tenantID)
	s.mu.Unlock()
}

func (s *syncService) ActiveSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *syncService) Run(ctx context.Context, tenantID string, req SessionRequest) (*Summary, error) {
	sess, err := s.Start(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	return sess.Wait()
}

// allUploads lets the outbox carry every pending upload; the transport
// filters them against the options the server returns.
var allUploads = models.Options{Locations: true, ClientsLocations: true, CompetitorPrice: true}

func (s *syncService) Start(ctx context.Context, tenantID string, req SessionRequest) (*Session, error) {
	if !s.acquire(tenantID) {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, common.ErrSyncActive)
	}

	r, err := s.prepare(ctx, tenantID, req)
	if err != nil {
		s.release(tenantID)
		s.log.Error(ctx, "session not started", "tenant", tenantID, "mode", req.Mode, "error", err)
		return nil, err
	}

	sess := &Session{Tenant: tenantID, Mode: req.Mode, done: make(chan struct{})}
	go func() {
		defer close(sess.done)
		defer s.release(tenantID)
		sess.summary, sess.err = r.run(ctx)
	}()
	return sess, nil
}

func (s *syncService) prepare(ctx context.Context, tenantID string, req SessionRequest) (*runner, error) {
	tc, err := s.cfg.Tenant(tenantID)
	if err != nil {
		return nil, err
	}
	tr, err := s.transports(tc)
	if err != nil {
		return nil, err
	}

	started := s.now()
	tn := s.store.Tenant(tenantID)
	treq := transport.Request{
		Mode:         req.Mode,
		ConfirmKind:  req.ConfirmKind,
		ConfirmGUID:  req.ConfirmGUID,
		ResponseCode: req.ResponseCode,
		PrintGUID:    req.PrintGUID,
	}
	if req.Mode == transport.ModeFull || req.Mode == transport.ModeSendOnly {
		if treq.Outbox, err = tn.Outbox(ctx, allUploads, tc.PushToken); err != nil {
			return nil, fmt.Errorf("%w: load outbox: %w", common.ErrStore, err)
		}
	}

	return &runner{
		tn:        tn,
		tr:        tr,
		req:       treq,
		cfg:       s.cfg,
		log:       s.log.With("tenant", tenantID, "session_mode", req.Mode),
		watermark: started.UnixMilli(),
		summary:   newSummary(tenantID, req.Mode, started),
		now:       s.now,
	}, nil
}

func (s *syncService) DocumentContent(ctx context.Context, tenantID, clientGUID, docID string) (string, error) {
	tn := s.store.Tenant(tenantID)
	d, err := tn.Debt(ctx, clientGUID, docID)
	if err != nil {
		return "", err
	}
	if d.Content != "" || !d.HasContent || d.DocGUID == "" {
		return d.Content, nil
	}

	tc, err := s.cfg.Tenant(tenantID)
	if err != nil {
		return "", err
	}
	tr, err := s.transports(tc)
	if err != nil {
		return "", err
	}
	content, err := tr.DocumentContent(ctx, d.DocType, d.DocGUID)
	if err != nil {
		return "", err
	}
	if _, err := tn.MergeDocumentContent(ctx, []models.DocumentContent{
		{DocType: d.DocType, DocGUID: d.DocGUID, Content: content},
	}); err != nil {
		s.log.Warn(ctx, "document content not stored", "doc_guid", d.DocGUID, "error", err)
	}
	return content, nil
}

// runner drives one session. Store writes happen on the writer goroutine
// only, in the order they were queued.
type runner struct {
	tn        *store.Tenant
	tr        transport.Transport
	req       transport.Request
	cfg       *config.Config
	log       logging.Logger
	watermark int64
	summary   *Summary
	now       func() time.Time

	jobs chan func(context.Context)
	// failed holds the data types with a rolled back batch; writer only.
	failed map[models.DataType]bool
}

func (r *runner) run(ctx context.Context) (*Summary, error) {
	r.log.Info(ctx, "session started", "format", r.tr.Format(), "documents", len(r.req.Outbox.Orders)+len(r.req.Outbox.Cash))

	r.jobs = make(chan func(context.Context), 64)
	r.failed = make(map[models.DataType]bool)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for job := range r.jobs {
			job(ctx)
		}
	}()

	b := &batcher{
		threshold: r.cfg.BatchThreshold,
		direct:    r.cfg.DirectBatchSize,
		flush:     func(rows []models.Row) { r.jobs <- func(ctx context.Context) { r.dispatch(ctx, rows) } },
	}

	var (
		finished      bool
		failure       error
		referenceSeen bool
		pulled        []models.DataType
	)
	for ev := range r.tr.Run(ctx, r.req) {
		switch ev.Kind {
		case transport.EventRecords:
			if ev.DataType.IsReference() && len(ev.Records) > 0 {
				referenceSeen = true
			}
			b.add(ev.Records)
		case transport.EventPulled:
			pulled = append(pulled, ev.DataType)
		case transport.EventOptions:
			r.saveOptions(ctx, ev.Options)
		case transport.EventResult:
			res := ev.Result
			r.jobs <- func(ctx context.Context) { r.applyResult(ctx, res) }
		case transport.EventAuxResult:
			aux := ev.Aux
			r.jobs <- func(ctx context.Context) { r.applyAux(ctx, aux) }
		case transport.EventPrint:
			r.summary.PrintFile = ev.File
		case transport.EventFinished:
			finished = true
		case transport.EventFailed:
			failure = ev.Err
		}
	}

	if finished && r.req.Mode == transport.ModeFull {
		wm := models.Watermark{Types: pulled}
		if referenceSeen {
			wm.Value = r.watermark
		}
		b.buf = append(b.buf, wm)
	}
	b.drain()
	close(r.jobs)
	<-writerDone

	r.summary.Duration = r.now().Sub(r.summary.Started)
	r.summary.Watermark = r.watermark

	if failure == nil && !finished {
		failure = errors.New("transport stream ended without a terminal event")
	}
	if failure != nil {
		r.log.Error(ctx, "session failed", "code", common.Classify(failure), "error", failure,
			"records", r.summary.Total(), "sent", r.summary.Sent)
		return nil, failure
	}

	if r.req.Mode == transport.ModeFull || r.req.Mode == transport.ModeSendOnly {
		if err := r.tn.SaveJSON(ctx, store.SettingLastSync, r.summary); err != nil {
			r.log.Warn(ctx, "summary not saved", "error", err)
		}
	}
	r.log.Info(ctx, "session finished", "records", r.summary.Total(), "failed", r.summary.Failed,
		"sent", r.summary.Sent, "rejected", r.summary.Rejected, "duration", r.summary.Duration)
	return r.summary, nil
}

func (r *runner) saveOptions(ctx context.Context, o models.Options) {
	if err := r.tn.SaveOptions(ctx, o); err != nil {
		r.log.Error(ctx, "options not saved", "error", err)
		return
	}
	r.log.Debug(ctx, "options saved", "write", o.Write, "differential", o.DifferentialUpdates)
}

// dispatch merges a flushed buffer, one homogeneous batch at a time. A
// failed batch is counted and the session continues.
func (r *runner) dispatch(ctx context.Context, rows []models.Row) {
	order, groups := groupByType(rows)
	for _, dt := range order {
		batch := groups[dt]
		switch {
		case dt == models.TypeWatermark:
			for _, row := range batch {
				r.applyWatermark(ctx, row.(models.Watermark))
			}
		case dt == models.TypeDocumentContent:
			items := make([]models.DocumentContent, 0, len(batch))
			for _, row := range batch {
				items = append(items, row.(models.DocumentContent))
			}
			if _, err := r.tn.MergeDocumentContent(ctx, items); err != nil {
				r.summary.Failed += len(batch)
				r.failed[dt] = true
				continue
			}
			r.summary.Records[dt] += len(batch)
		case dt.IsReference():
			n, err := r.tn.MergeBatch(ctx, dt, batch, r.watermark)
			if err != nil {
				r.summary.Failed += len(batch)
				r.failed[dt] = true
				continue
			}
			r.summary.Records[dt] += n
		default:
			r.log.Warn(ctx, "records of unexpected type dropped", "data_type", dt, "rows", len(batch))
		}
	}
}

func (r *runner) applyWatermark(ctx context.Context, wm models.Watermark) {
	if wm.Value == 0 {
		r.log.Info(ctx, "no reference data received, prune skipped")
		return
	}
	types := make([]models.DataType, 0, len(wm.Types))
	for _, dt := range wm.Types {
		if r.failed[dt] {
			r.log.Warn(ctx, "merge failed, prune skipped for data type", "data_type", dt)
			continue
		}
		types = append(types, dt)
	}
	if len(types) == 0 {
		r.log.Info(ctx, "no data type completed, prune skipped")
		return
	}
	if err := r.tn.SaveWatermark(ctx, wm.Value); err != nil {
		r.log.Error(ctx, "watermark not saved", "error", err)
	}
	report, err := r.tn.PruneObsolete(ctx, wm.Value, types...)
	for dt, n := range report {
		r.summary.Pruned[dt] += n
	}
	if err != nil {
		r.log.Error(ctx, "prune failed", "error", err)
	}
}

func (r *runner) applyResult(ctx context.Context, res models.PendingResult) {
	var err error
	switch {
	case r.req.Mode == transport.ModeConfirm:
		if res.OK() {
			err = r.tn.UpdateStatus(ctx, res.Kind, res.GUID, res.Status)
			r.summary.Confirmed++
		} else {
			r.log.Warn(ctx, "confirmation rejected", "guid", res.GUID, "status", res.Status, "error", res.Error)
		}
	case res.OK():
		err = r.tn.MarkSent(ctx, res.Kind, res.GUID, res.Status)
		r.summary.Sent++
	default:
		err = r.tn.RecordSendError(ctx, res.Kind, res.GUID, res.Status, res.Error)
		r.summary.Rejected++
		r.log.Warn(ctx, "document rejected", "kind", res.Kind, "guid", res.GUID, "status", res.Status, "error", res.Error)
	}
	if err != nil {
		r.log.Error(ctx, "document state not updated", "kind", res.Kind, "guid", res.GUID, "error", err)
	}
}

func (r *runner) applyAux(ctx context.Context, aux models.AuxResult) {
	if !aux.OK() {
		r.log.Warn(ctx, "upload rejected", "kind", aux.Kind, "error", aux.Error)
		return
	}
	if err := r.tn.MarkAuxSent(ctx, aux); err != nil {
		r.log.Error(ctx, "upload state not updated", "kind", aux.Kind, "error", err)
		return
	}
	r.summary.Uploads++
}
