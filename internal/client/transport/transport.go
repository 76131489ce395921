// Package transport turns sync intents into protocol exchanges with the
// server and reports the outcome as a stream of typed events.
//
// A transport never touches the local store: everything it pushes is handed
// to it in Request.Outbox and everything it pulls is emitted as events.
package transport

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

// Mode selects what a session does.
type Mode string

const (
	ModeFull     Mode = "FULL"
	ModeSendOnly Mode = "SEND_ONLY"
	ModeConfirm  Mode = "CONFIRM"
	ModePrint    Mode = "PRINT"
)

// Request describes one session.
type Request struct {
	Mode   Mode
	Outbox models.Outbox

	// Confirm parameters.
	ConfirmKind  models.DocKind
	ConfirmGUID  string
	ResponseCode string

	// Print parameters.
	PrintGUID string
}

type EventKind int

const (
	// EventRecords carries a batch of pulled records.
	EventRecords EventKind = iota + 1
	// EventPulled reports that every page of DataType was received. Types
	// abandoned on a protocol problem are never reported.
	EventPulled
	// EventOptions carries the capability document of the session.
	EventOptions
	// EventResult carries the server's answer to a pushed or confirmed document.
	EventResult
	// EventAuxResult carries the server's answer to an auxiliary upload.
	EventAuxResult
	// EventPrint carries a decoded print file.
	EventPrint
	// EventFinished and EventFailed are terminal. The channel is closed
	// right after either of them.
	EventFinished
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRecords:
		return "records"
	case EventPulled:
		return "pulled"
	case EventOptions:
		return "options"
	case EventResult:
		return "result"
	case EventAuxResult:
		return "aux_result"
	case EventPrint:
		return "print"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	}
	return "unknown"
}

// Event is one element of a session stream.
type Event struct {
	Kind EventKind

	// DataType is the requested data type of a records batch. Individual
	// records may carry a different discriminator (diff pulls).
	DataType models.DataType
	Records  []models.Row

	Options models.Options
	Result  models.PendingResult
	Aux     models.AuxResult
	File    []byte

	// Err is the classified error of EventFailed.
	Err error
}

// Transport is a protocol client bound to one tenant.
type Transport interface {
	// Run executes the session and returns its event stream. The stream
	// always ends with EventFinished or EventFailed and is then closed.
	// The caller must drain it.
	Run(ctx context.Context, req Request) <-chan Event

	// DocumentContent fetches the body of one debt document.
	DocumentContent(ctx context.Context, docType, docGUID string) (string, error)

	// Format names the transport ("http", "ftp", "dir").
	Format() string
}

// State is the protocol state of a running session.
type State string

const (
	StateIdle         State = "idle"
	StateTokenRequest State = "token_request"
	StatePulling      State = "pulling"
	StatePushing      State = "pushing"
	StateDiff         State = "diff"
	StateConfirming   State = "confirming"
	StatePrinting     State = "printing"
	StateFinished     State = "finished"
	StateFailed       State = "failed"
)

// stateMachine records the current protocol state for diagnostics.
type stateMachine struct {
	mu    sync.Mutex
	state State
}

func (m *stateMachine) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *stateMachine) get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == "" {
		return StateIdle
	}
	return m.state
}
