package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// File is the legacy flat-file transport. The server drops JSON files into
// in/ and collects uploads from out/. It has no confirmation, printing or
// on-demand content; every upload is considered accepted.
type File struct {
	format string
	ex     Exchange
	log    logging.Logger
	state  stateMachine
	now    func() time.Time
}

func NewFile(format string, ex Exchange, log logging.Logger) *File {
	return &File{
		format: format,
		ex:     ex,
		log:    log.With("module", "transport", "format", format),
		now:    time.Now,
	}
}

func (t *File) Format() string { return t.format }

func (t *File) State() State { return t.state.get() }

func (t *File) DocumentContent(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("document content: %w", common.ErrUnsupported)
}

func (t *File) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer func() {
			if err := t.ex.Close(); err != nil {
				t.log.Warn(ctx, "exchange close failed", "error", err)
			}
		}()
		if err := t.run(ctx, req, out); err != nil {
			t.state.set(StateFailed)
			t.log.Debug(ctx, "state", "state", StateFailed, "error", err)
			out <- Event{Kind: EventFailed, Err: err}
			return
		}
		t.state.set(StateFinished)
		out <- Event{Kind: EventFinished}
	}()
	return out
}

func (t *File) run(ctx context.Context, req Request, out chan<- Event) error {
	switch req.Mode {
	case ModeFull, ModeSendOnly:
	case ModeConfirm, ModePrint:
		return fmt.Errorf("%s: %w", req.Mode, common.ErrUnsupported)
	default:
		return fmt.Errorf("unknown session mode %q", req.Mode)
	}

	t.state.set(StateTokenRequest)
	opts, err := t.options(ctx)
	if err != nil {
		return err
	}
	out <- Event{Kind: EventOptions, Options: opts}

	if req.Mode == ModeFull {
		for _, dt := range opts.PullTypes() {
			if err := t.pull(ctx, dt, out); err != nil {
				return err
			}
		}
	}
	return t.push(ctx, req.Outbox, opts, out)
}

// options reads in/options.json. Without one the exchange grants plain
// read and write access.
func (t *File) options(ctx context.Context) (models.Options, error) {
	opts := models.Options{Read: true, Write: true}
	b, err := t.ex.Get(ctx, "in/options.json")
	if errors.Is(err, common.ErrNotFound) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("options: %w", err)
	}
	if err := json.Unmarshal(b, &opts); err != nil {
		return opts, fmt.Errorf("%w: options: %w", common.ErrProtocol, err)
	}
	if !opts.Read {
		return opts, fmt.Errorf("options: %w", common.ErrAccessDenied)
	}
	return opts, nil
}

func (t *File) pull(ctx context.Context, dt models.DataType, out chan<- Event) error {
	t.state.set(StatePulling)
	name := fmt.Sprintf("in/%s.json", dt)
	b, err := t.ex.Get(ctx, name)
	if errors.Is(err, common.ErrNotFound) {
		t.log.Debug(ctx, "no file for data type", "data_type", dt)
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull %s: %w", dt, err)
	}
	rows, _, err := decodePage(b, dt)
	if err != nil {
		t.log.Warn(ctx, "malformed file, pull abandoned", "data_type", dt, "error", err)
		return nil
	}
	if len(rows) > 0 {
		out <- Event{Kind: EventRecords, DataType: dt, Records: rows}
	}
	out <- Event{Kind: EventPulled, DataType: dt}
	return nil
}

func (t *File) push(ctx context.Context, box models.Outbox, opts models.Options, out chan<- Event) error {
	t.state.set(StatePushing)

	put := func(name string, body any) error {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		return t.ex.Put(ctx, name, b)
	}

	if opts.Write {
		for _, o := range box.Orders {
			if err := put(fmt.Sprintf("out/%s-%s.json", models.KindOrder, o.GUID), orderPayload(o)); err != nil {
				return fmt.Errorf("push order %s: %w", o.GUID, err)
			}
			out <- Event{Kind: EventResult, Result: models.PendingResult{Kind: models.KindOrder, GUID: o.GUID, Result: "ok"}}
		}
		for _, c := range box.Cash {
			if err := put(fmt.Sprintf("out/%s-%s.json", models.KindCash, c.GUID), cashPayload(c)); err != nil {
				return fmt.Errorf("push cash %s: %w", c.GUID, err)
			}
			out <- Event{Kind: EventResult, Result: models.PendingResult{Kind: models.KindCash, GUID: c.GUID, Result: "ok"}}
		}
	}

	stamp := t.now().UnixMilli()
	for _, u := range auxUploads(box, opts) {
		if err := put(fmt.Sprintf("out/%s-%d.json", u.kind, stamp), u.body); err != nil {
			return fmt.Errorf("upload %s: %w", u.kind, err)
		}
		out <- Event{Kind: EventAuxResult, Aux: u.result(pushResponse{Result: "ok"})}
	}
	return nil
}
