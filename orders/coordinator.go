package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Phase is the submission state of a draft
type Phase int

const (
	// PhaseIdle means no submission attempt is running
	PhaseIdle Phase = iota
	// PhaseValidating covers validation and normalization of the draft
	PhaseValidating
	// PhaseSubmitting means the upstream call is in flight
	PhaseSubmitting
)

// String returns the name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the phase by name
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Status summarizes how a submission attempt ended
type Status string

const (
	StatusCreated    Status = "created"
	StatusUpdated    Status = "updated"
	StatusInvalid    Status = "invalid"
	StatusOutOfStock Status = "out_of_stock"
	StatusFailed     Status = "failed"
	StatusDiscarded  Status = "discarded"
)

var (
	// ErrDraftNotFound is returned when no open form session has the id
	ErrDraftNotFound = errors.New("draft not found")
	// ErrSubmitInFlight is returned when the draft is already being submitted
	ErrSubmitInFlight = errors.New("draft is already being submitted")
	// ErrUnknownKind is returned for a draft whose kind is not in the catalog
	ErrUnknownKind = errors.New("unknown order kind")
)

// Notification is a transient message for the user
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func success(msg string) Notification { return Notification{Level: "success", Message: msg} }
func failure(msg string) Notification { return Notification{Level: "error", Message: msg} }

// Record is the upstream record created or updated by a submission
type Record struct {
	ID        string          `json:"id"`
	Reference string          `json:"reference"`
	Body      json.RawMessage `json:"-"`
}

// Store persists open drafts by form session id
type Store interface {
	Load(ctx context.Context, id string) (*Draft, error)
	Save(ctx context.Context, id string, d *Draft) error
	Delete(ctx context.Context, id string) error
}

// Submitter sends payloads to the warehouse API. Failures should be
// *UpstreamError so that out-of-stock rejections can be told apart.
type Submitter interface {
	Create(ctx context.Context, k *Kind, p *Payload) (*Record, error)
	Update(ctx context.Context, k *Kind, id string, p *Payload) (*Record, error)
}

// Archiver keeps a copy of every accepted submission
type Archiver interface {
	Archive(ctx context.Context, k *Kind, p *Payload, r *Record) (string, error)
}

// Outcome is what the form should show after a submission attempt
type Outcome struct {
	Status       Status       `json:"status"`
	Notification Notification `json:"notification"`
	Violations   Violations   `json:"violations,omitempty"`
	Draft        *Draft       `json:"draft,omitempty"`
	FlaggedLines []int        `json:"flagged_lines,omitempty"`
	Record       *Record      `json:"record,omitempty"`
	ArchiveKey   string       `json:"archive_key,omitempty"`
	// Close tells the enclosing view to close the form
	Close bool `json:"close"`
}

// Coordinator runs submission attempts and writes their outcome back into
// the draft. At most one attempt per draft is in flight.
type Coordinator struct {
	catalog   *Catalog
	store     Store
	submitter Submitter
	archiver  Archiver
	loc       *time.Location
	now       func() time.Time

	mu     sync.Mutex
	phases map[string]Phase
	locks  map[string]*draftLock

	// OnTransition, when set, observes every phase change
	OnTransition func(id string, from, to Phase)
}

// NewCoordinator creates a coordinator. archiver may be nil.
func NewCoordinator(catalog *Catalog, store Store, submitter Submitter, archiver Archiver, loc *time.Location) *Coordinator {
	if loc == nil {
		loc = time.Local
	}
	return &Coordinator{
		catalog:   catalog,
		store:     store,
		submitter: submitter,
		archiver:  archiver,
		loc:       loc,
		now:       time.Now,
		phases:    make(map[string]Phase),
		locks:     make(map[string]*draftLock),
	}
}

// draftLock serializes load-modify-save cycles on one draft
type draftLock struct {
	sync.Mutex
	refs int
}

// lock takes the draft's lock and returns its release func
func (c *Coordinator) lock(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &draftLock{}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}

// SetClock replaces the time source (primarily for testing)
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Location returns the time zone used for calendar dates
func (c *Coordinator) Location() *time.Location {
	return c.loc
}

// Today returns the current calendar date in the coordinator's time zone
func (c *Coordinator) Today() string {
	return c.now().In(c.loc).Format(DateLayout)
}

// Phase returns the current phase of a draft
func (c *Coordinator) Phase(id string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases[id]
}

// Busy reports whether a submission attempt is running for the draft
func (c *Coordinator) Busy(id string) bool {
	return c.Phase(id) != PhaseIdle
}

func (c *Coordinator) begin(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phases[id] != PhaseIdle {
		return ErrSubmitInFlight
	}
	c.phases[id] = PhaseValidating
	c.notify(id, PhaseIdle, PhaseValidating)
	return nil
}

func (c *Coordinator) move(id string, to Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.phases[id]
	if to == PhaseIdle {
		delete(c.phases, id)
	} else {
		c.phases[id] = to
	}
	c.notify(id, from, to)
}

func (c *Coordinator) notify(id string, from, to Phase) {
	if c.OnTransition != nil {
		c.OnTransition(id, from, to)
	}
}

// Edit loads the draft, applies edit and saves the result. Edits are refused
// with ErrSubmitInFlight while a submission attempt runs, and an edit never
// interleaves with the load and write-back of an attempt. When edit fails
// nothing is saved and the draft is returned as edit left it.
func (c *Coordinator) Edit(ctx context.Context, id string, edit func(k *Kind, d *Draft) error) (*Draft, error) {
	if c.Busy(id) {
		return nil, ErrSubmitInFlight
	}
	unlock := c.lock(id)
	defer unlock()

	d, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	k, ok := c.catalog.Get(d.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, d.Kind)
	}

	if err := edit(k, d); err != nil {
		return d, err
	}
	if err := c.store.Save(ctx, id, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Submit validates, normalizes and sends the draft with the given id
func (c *Coordinator) Submit(ctx context.Context, id string) (*Outcome, error) {
	if err := c.begin(id); err != nil {
		return nil, err
	}
	defer c.move(id, PhaseIdle)

	unlock := c.lock(id)
	defer unlock()

	d, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	k, ok := c.catalog.Get(d.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, d.Kind)
	}

	// A new attempt starts without the previous attempt's annotations
	d.Annotations = []Annotation{}

	if v := Validate(k, d); !v.Valid() {
		if err := c.store.Save(ctx, id, d); err != nil {
			return nil, err
		}
		return &Outcome{
			Status:       StatusInvalid,
			Notification: failure(v[0]),
			Violations:   v,
			Draft:        d,
		}, nil
	}

	payload, err := Normalize(k, d, c.loc, c.now())
	if err != nil {
		return nil, err
	}

	c.move(id, PhaseSubmitting)
	var record *Record
	if d.RecordID != "" {
		record, err = c.submitter.Update(ctx, k, d.RecordID, payload)
	} else {
		record, err = c.submitter.Create(ctx, k, payload)
	}

	// The form may have been closed while the request was in flight
	if _, loadErr := c.store.Load(ctx, id); errors.Is(loadErr, ErrDraftNotFound) {
		log.Printf("Discarding %s submission result for closed draft %s", k.Name, id)
		return &Outcome{Status: StatusDiscarded, Record: record, Close: true}, nil
	}

	if err != nil {
		return c.rejected(ctx, id, k, d, err)
	}
	return c.accepted(ctx, id, k, d, payload, record)
}

func (c *Coordinator) accepted(ctx context.Context, id string, k *Kind, d *Draft, p *Payload, r *Record) (*Outcome, error) {
	status, verb := StatusCreated, "created"
	if d.RecordID != "" {
		status, verb = StatusUpdated, "updated"
	}

	out := &Outcome{
		Status:       status,
		Notification: success(fmt.Sprintf("%s %s successfully!", k.Label, verb)),
		Draft:        NewDraft(k, c.Today()),
		Record:       r,
		Close:        true,
	}

	if c.archiver != nil {
		key, err := c.archiver.Archive(ctx, k, p, r)
		if err != nil {
			recordID := ""
			if r != nil {
				recordID = r.ID
			}
			log.Printf("Failed to archive %s %q: %v", k.Name, recordID, err)
		} else {
			out.ArchiveKey = key
		}
	}

	if err := c.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrDraftNotFound) {
		log.Printf("Failed to close draft %s after submission: %v", id, err)
	}
	return out, nil
}

func (c *Coordinator) rejected(ctx context.Context, id string, k *Kind, d *Draft, err error) (*Outcome, error) {
	fallback := fmt.Sprintf("Failed to %s %s", submitVerb(d), strings.ToLower(k.Label))

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		log.Printf("Submission of %s draft %s failed: %v", k.Name, id, err)
		return &Outcome{Status: StatusFailed, Notification: failure(fallback), Draft: d}, nil
	}

	out := &Outcome{
		Status:       StatusFailed,
		Notification: failure(upstream.UserMessage(fallback)),
		Draft:        d,
	}
	if upstream.Kind == ErrorOutOfStock {
		d.Annotations = append([]Annotation{}, upstream.OutOfStock...)
		out.Status = StatusOutOfStock
		out.FlaggedLines = d.FlaggedLines()
	} else {
		log.Printf("Submission of %s draft %s failed: %v", k.Name, id, upstream)
	}

	if err := c.store.Save(ctx, id, d); err != nil {
		return nil, err
	}
	return out, nil
}

func submitVerb(d *Draft) string {
	if d.RecordID != "" {
		return "update"
	}
	return "create"
}
