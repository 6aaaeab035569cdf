package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"feed-go/internal/model"
	"feed-go/internal/query"
)

// DefaultCollectionKey is the substrate key holding the record collection.
const DefaultCollectionKey = "publicaciones"

// Options tunes a Store.
type Options struct {
	// CollectionKey overrides DefaultCollectionKey.
	CollectionKey string
}

// Store owns the record collection. Every operation is a whole-collection
// read-modify-write against the substrate performed inside a critical
// section, so other callers in the process never observe intermediate state.
type Store struct {
	substrate Substrate
	identity  IdentityResolver
	encoder   AttachmentEncoder
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	metrics   Metrics
	key       string

	mu sync.Mutex
}

// NewStore creates a Store with the provided dependencies.
func NewStore(substrate Substrate, identity IdentityResolver, encoder AttachmentEncoder, logger Logger, clock Clock, idgen IDGenerator, metrics Metrics, opts Options) *Store {
	key := opts.CollectionKey
	if key == "" {
		key = DefaultCollectionKey
	}
	return &Store{
		substrate: substrate,
		identity:  identity,
		encoder:   encoder,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		metrics:   metrics,
		key:       key,
	}
}

// CreateInput is the payload of Create.
type CreateInput struct {
	Text        string
	Attachments []Blob
	Location    string
}

// createRequest is what Create validates. Names stays nil when there are no
// attachments so that required_without sees it as absent.
type createRequest struct {
	Text     string   `json:"text" validate:"required_without=Names,max=5000"`
	Names    []string `json:"attachments" validate:"omitempty,dive,required,max=255"`
	Location string   `json:"location" validate:"max=200"`
}

// ListQuery selects one page of the collection.
type ListQuery struct {
	Page    int
	PerPage int
	Sort    string // see query.ParseSort
	Filter  string // see query.ParseFilter
}

// Create publishes a new record authored by the current identity.
// All attachments are encoded before anything is written; if any of them
// fails the collection is left untouched.
func (s *Store) Create(in CreateInput) (rec *model.Record, err error) {
	const op = "create"
	defer s.observe(op, time.Now(), &err)

	who, err := s.requireIdentity(op, "")
	if err != nil {
		return nil, err
	}

	req := createRequest{Text: in.Text, Location: in.Location}
	for _, b := range in.Attachments {
		req.Names = append(req.Names, b.Name())
	}
	if err := Validate(op, req); err != nil {
		return nil, err
	}

	attachments := make([]model.Attachment, 0, len(in.Attachments))
	for i, b := range in.Attachments {
		data, err := s.encoder.Encode(b)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: op, Field: fmt.Sprintf("attachments[%d]", i), Err: err}
		}
		attachments = append(attachments, model.Attachment{Name: b.Name(), Data: data})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(op)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	created := model.Record{
		ID:          s.idgen.New(),
		Text:        in.Text,
		Attachments: attachments,
		Location:    in.Location,
		AuthorID:    who.ID,
		Author:      model.SnapshotOf(*who),
		Created:     now,
		Updated:     now,
		LikedBy:     []string{},
		Comments:    []model.Comment{},
	}
	records = append(records, created)

	if err := s.save(op, created.ID, records); err != nil {
		return nil, err
	}

	s.logger.Info("record created", "id", created.ID, "author", who.ID, "attachments", len(attachments))
	out := created.Clone()
	return &out, nil
}

// List returns one page of the collection, filtered and sorted per q.
// It never reports NotFound: no matches is an empty page. If the collection
// cannot be read the failure is logged and an empty page is returned.
func (s *Store) List(q ListQuery) (page *model.Page, err error) {
	const op = "list"
	start, degraded := time.Now(), false
	defer func() {
		outcome := Outcome(err)
		if degraded && err == nil {
			outcome = "degraded"
		}
		s.metrics.ObserveOperation(op, outcome, time.Since(start))
	}()

	if q.PerPage <= 0 {
		return nil, &Error{Kind: KindValidation, Op: op, Field: "perPage", Err: fmt.Errorf("must be positive, got %d", q.PerPage)}
	}
	if q.Page < 1 {
		return nil, &Error{Kind: KindValidation, Op: op, Field: "page", Err: fmt.Errorf("must be at least 1, got %d", q.Page)}
	}

	s.mu.Lock()
	records, err := s.load(op)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("listing degraded to empty page", "error", err)
		records, degraded = nil, true
	}

	matched := query.Apply(records, q.Filter, q.Sort)
	page, err = query.Paginate(matched, q.Page, q.PerPage)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Err: err}
	}
	return page, nil
}

// Get returns the record with the given id. A missing record is reported as
// KindNotFound, a failed read as KindStorage.
func (s *Store) Get(id string) (rec *model.Record, err error) {
	const op = "get"
	defer s.observe(op, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(op)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, &Error{Kind: KindNotFound, Op: op, ID: id}
	}
	out := records[i].Clone()
	return &out, nil
}

// Delete removes a record. Only its author may delete it. Deleting an id
// that does not exist is KindNotFound.
func (s *Store) Delete(id string) (err error) {
	const op = "delete"
	defer s.observe(op, time.Now(), &err)

	who, err := s.requireIdentity(op, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(op)
	if err != nil {
		return err
	}
	i := indexOf(records, id)
	if i < 0 {
		return &Error{Kind: KindNotFound, Op: op, ID: id}
	}
	if records[i].AuthorID != who.ID {
		return &Error{Kind: KindForbidden, Op: op, ID: id}
	}

	records = append(records[:i], records[i+1:]...)
	if err := s.save(op, id, records); err != nil {
		return err
	}

	s.logger.Info("record deleted", "id", id, "by", who.ID)
	return nil
}

// requireIdentity resolves the current identity or fails with KindUnauthenticated.
// A resolver that cannot read its own storage is a KindStorage failure.
func (s *Store) requireIdentity(op, id string) (*model.Identity, error) {
	who, err := s.identity.CurrentIdentity()
	if err != nil {
		return nil, storageError(op, id, fmt.Errorf("resolving identity: %w", err))
	}
	if who == nil {
		return nil, &Error{Kind: KindUnauthenticated, Op: op, ID: id}
	}
	return who, nil
}

// load reads and decodes the whole collection. An absent key is an empty collection.
func (s *Store) load(op string) ([]model.Record, error) {
	raw, ok, err := s.substrate.Get(s.key)
	if err != nil {
		return nil, storageError(op, "", fmt.Errorf("reading %s: %w", s.key, err))
	}
	if !ok || raw == "" {
		return []model.Record{}, nil
	}
	var records []model.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, storageError(op, "", fmt.Errorf("decoding %s: %w", s.key, err))
	}
	return records, nil
}

// save encodes the next state of the collection and writes it with a single Set.
func (s *Store) save(op, id string, records []model.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return storageError(op, id, fmt.Errorf("encoding %s: %w", s.key, err))
	}
	if err := s.substrate.Set(s.key, string(raw)); err != nil {
		s.logger.Error("collection write failed", "op", op, "id", id, "error", err)
		return storageError(op, id, fmt.Errorf("writing %s: %w", s.key, err))
	}
	s.metrics.SetRecordCount(len(records))
	return nil
}

func (s *Store) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, Outcome(*err), time.Since(start))
}

func indexOf(records []model.Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
