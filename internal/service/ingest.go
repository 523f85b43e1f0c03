package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"github.com/supplier-intake/intake-pipeline/pkg/metrics"
	"gorm.io/datatypes"
)

// groupNamespace seeds the name based group ids shared by all products of one source message.
var groupNamespace = uuid.MustParse("6f1f3ad2-8c4e-4b53-9a43-0d9c1b7e52a1")

// Dispatcher hands freshly ingested submissions to the extraction workers.
type Dispatcher interface {
	Enqueue(id uuid.UUID) bool
}

type IngestResult struct {
	GroupID     uuid.UUID
	Submissions model.SubmissionList
	// Duplicate is set when the message had already been ingested; Submissions are the stored ones.
	Duplicate bool
}

type IngestService struct {
	store      store.Store
	dispatcher Dispatcher
	logger     *log.StructuredLogger
}

type IngestOption func(*IngestService)

func WithDispatcher(d Dispatcher) IngestOption {
	return func(s *IngestService) {
		s.dispatcher = d
	}
}

func NewIngestService(s store.Store, opts ...IngestOption) *IngestService {
	svc := &IngestService{
		store:  s,
		logger: log.NewDebugLogger("ingest_service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Ingest stores a single-product message. Re-delivery returns the stored submission.
func (s *IngestService) Ingest(ctx context.Context, form mappers.IngestForm) (*model.Submission, error) {
	form.Items = nil
	result, err := s.IngestMessage(ctx, form)
	if err != nil {
		return nil, err
	}
	return &result.Submissions[0], nil
}

// IngestMessage stores every product of a message as its own submission sharing one group id.
// It is idempotent on the external message id.
func (s *IngestService) IngestMessage(ctx context.Context, form mappers.IngestForm) (*IngestResult, error) {
	messageID := strings.TrimSpace(form.ExternalMessageID)
	tracer := s.logger.WithContext(ctx).Operation("ingest_message").
		WithString("external_message_id", messageID).
		WithInt("items", len(form.ItemsOrSelf())).
		Build()

	if messageID == "" {
		return nil, NewErrInvalidInput("external message id is required")
	}

	if existing, err := s.stored(ctx, messageID); err != nil {
		tracer.Error(err).Log()
		return nil, err
	} else if existing != nil {
		metrics.IncreaseDuplicateIngestions()
		tracer.Step("duplicate").WithInt("submissions", len(existing.Submissions)).Log()
		return existing, nil
	}

	supplier, err := s.resolveSupplier(ctx, form.SupplierRef)
	if err != nil {
		return nil, err
	}

	items := form.ItemsOrSelf()
	contentTypes := make([]model.ContentType, len(items))
	for i, item := range items {
		ct, err := model.ParseContentType(strings.TrimSpace(item.ContentType))
		if err != nil {
			return nil, NewErrInvalidInput("item %d: %s", i, err)
		}
		if strings.TrimSpace(item.RawContent) == "" && (item.MediaLocator == nil || strings.TrimSpace(*item.MediaLocator) == "") {
			return nil, NewErrInvalidInput("item %d has neither content nor media", i)
		}
		if ct == model.ContentTypeText && strings.TrimSpace(item.RawContent) == "" {
			return nil, NewErrInvalidInput("item %d: text submissions need content", i)
		}
		contentTypes[i] = ct
	}

	template, err := s.resolveTemplate(ctx, form.TemplateID, contentTypes)
	if err != nil {
		return nil, err
	}

	groupID := uuid.NewSHA1(groupNamespace, []byte(messageID))
	submissions := make([]model.Submission, len(items))
	for i, item := range items {
		externalID := messageID
		if len(items) > 1 {
			externalID = fmt.Sprintf("%s#%d", messageID, i)
		}
		var locator *string
		if item.MediaLocator != nil && strings.TrimSpace(*item.MediaLocator) != "" {
			l := strings.TrimSpace(*item.MediaLocator)
			locator = &l
		}
		submissions[i] = model.Submission{
			ID:                uuid.New(),
			ExternalMessageID: externalID,
			SourceMessageID:   messageID,
			GroupID:           groupID,
			ItemIndex:         i,
			SupplierID:        supplier.ID,
			TemplateID:        template.ID,
			ContentType:       contentTypes[i],
			RawContent:        item.RawContent,
			MediaLocator:      locator,
			ProcessingStatus:  model.ProcessingStatusPending,
			ValidationStatus:  model.ValidationStatusPending,
			FieldErrors:       datatypes.NewJSONSlice([]string{}),
		}
	}

	created, err := s.create(ctx, submissions)
	if errors.Is(err, store.ErrDuplicateKey) {
		// lost the race against a concurrent delivery of the same message
		existing, getErr := s.stored(ctx, messageID)
		if getErr != nil {
			tracer.Error(getErr).Log()
			return nil, getErr
		}
		if existing != nil {
			metrics.IncreaseDuplicateIngestions()
			tracer.Step("duplicate_on_insert").Log()
			return existing, nil
		}
		return nil, NewErrDuplicateResource("submission", messageID)
	}
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	for _, ct := range contentTypes {
		metrics.IncreaseSubmissionsIngested(string(ct), 1)
	}
	if s.dispatcher != nil {
		for _, sub := range created {
			s.dispatcher.Enqueue(sub.ID)
		}
	}

	tracer.Success().WithUUID("group_id", groupID).WithString("supplier_id", supplier.ID.String()).Log()
	return &IngestResult{GroupID: groupID, Submissions: created}, nil
}

func (s *IngestService) create(ctx context.Context, submissions []model.Submission) (model.SubmissionList, error) {
	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Submission().Create(ctx, submissions)
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	entries := make([]model.ProcessingLogEntry, 0, len(created))
	for _, sub := range created {
		entries = append(entries, model.NewLogEntry(sub.ID, model.StageWebhook, model.StageStatusCompleted, 0).
			WithMeta("external_message_id", sub.ExternalMessageID).
			WithMeta("content_type", string(sub.ContentType)).
			WithMeta("item_index", sub.ItemIndex).
			WithMeta("group_size", len(created)))
	}
	if err := s.store.ProcessingLog().Append(ctx, entries...); err != nil {
		_, _ = store.Rollback(ctx)
		return nil, err
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *IngestService) stored(ctx context.Context, messageID string) (*IngestResult, error) {
	existing, err := s.store.Submission().List(ctx,
		store.NewSubmissionQueryFilter().BySourceMessageID(messageID),
		store.NewSubmissionQueryOptions().WithSortOrder(store.SortByCreatedTime))
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return &IngestResult{GroupID: existing[0].GroupID, Submissions: existing, Duplicate: true}, nil
}

func (s *IngestService) resolveSupplier(ctx context.Context, ref string) (*model.Supplier, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, NewErrInvalidInput("supplier reference is required")
	}

	var (
		supplier *model.Supplier
		err      error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		supplier, err = s.store.Supplier().Get(ctx, id)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSupplierNotFound(id)
		}
	} else {
		supplier, err = s.store.Supplier().GetByContactID(ctx, ref)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSupplierContactNotFound(ref)
		}
	}
	if err != nil {
		return nil, err
	}
	if !supplier.Active {
		return nil, NewErrSupplierInactive(supplier.ID)
	}
	return supplier, nil
}

// resolveTemplate returns the requested template, or the first active one supporting every content type.
func (s *IngestService) resolveTemplate(ctx context.Context, id string, contentTypes []model.ContentType) (*model.Template, error) {
	supportsAll := func(t model.Template) bool {
		for _, ct := range contentTypes {
			if !t.Supports(ct) {
				return false
			}
		}
		return true
	}

	if id = strings.TrimSpace(id); id != "" {
		t, err := s.store.Template().Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrTemplateNotFound(id)
			}
			return nil, err
		}
		if !t.Active {
			return nil, NewErrInvalidInput("template %s is not active", id)
		}
		if !supportsAll(*t) {
			return nil, NewErrInvalidInput("template %s does not support the submitted content", id)
		}
		return t, nil
	}

	templates, err := s.store.Template().List(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if supportsAll(t) {
			return &t, nil
		}
	}
	return nil, NewErrInvalidInput("no active template supports the submitted content")
}
