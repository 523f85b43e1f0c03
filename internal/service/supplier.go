package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
)

type SupplierService struct {
	store  store.Store
	now    func() time.Time
	logger *log.StructuredLogger
}

func NewSupplierService(s store.Store) *SupplierService {
	return &SupplierService{
		store:  s,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.NewDebugLogger("supplier_service"),
	}
}

func (s *SupplierService) CreateSupplier(ctx context.Context, form mappers.SupplierForm) (*model.Supplier, error) {
	supplier := form.ToSupplier()
	if supplier.ContactID == "" {
		return nil, NewErrInvalidInput("contact id is required")
	}

	created, err := s.store.Supplier().Create(ctx, supplier)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicateResource("supplier", supplier.ContactID)
		}
		return nil, err
	}

	s.logger.WithContext(ctx).Operation("create_supplier").
		WithUUID("supplier_id", created.ID).
		WithString("contact_id", created.ContactID).
		Build().Success().Log()
	return created, nil
}

func (s *SupplierService) GetSupplier(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	supplier, err := s.store.Supplier().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrSupplierNotFound(id)
		}
		return nil, err
	}
	return supplier, nil
}

func (s *SupplierService) ListSuppliers(ctx context.Context, activeOnly bool) (model.SupplierList, error) {
	return s.store.Supplier().List(ctx, activeOnly)
}

// RefreshMetrics recomputes the metric snapshot of every supplier from its submissions.
// The snapshot is derived data: running it twice on the same history gives the same metrics.
func (s *SupplierService) RefreshMetrics(ctx context.Context) (int, error) {
	tracer := s.logger.WithContext(ctx).Operation("refresh_supplier_metrics").Build()

	suppliers, err := s.store.Supplier().List(ctx, false)
	if err != nil {
		tracer.Error(err).Log()
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(suppliers))
	for _, sup := range suppliers {
		ids = append(ids, sup.ID)
	}

	counts, err := s.store.Submission().DecisionCountsBySupplier(ctx, ids)
	if err != nil {
		tracer.Error(err).Log()
		return 0, err
	}
	confidence, err := s.store.Submission().AverageConfidenceBySupplier(ctx, ids)
	if err != nil {
		tracer.Error(err).Log()
		return 0, err
	}

	now := s.now()
	for _, id := range ids {
		metrics := ComputeSupplierMetrics(counts[id], confidence[id])
		if err := s.store.Supplier().UpdateMetrics(ctx, id, metrics, now); err != nil {
			tracer.Error(err).WithUUID("supplier_id", id).Log()
			return 0, err
		}
	}

	tracer.Success().WithInt("suppliers", len(ids)).Log()
	return len(ids), nil
}

// ComputeSupplierMetrics derives the supplier snapshot from its decision counts and average confidence.
func ComputeSupplierMetrics(counts model.DecisionCount, averageConfidence float64) model.SupplierMetrics {
	m := model.SupplierMetrics{
		Submissions:       counts.Total,
		Approved:          counts.Approved,
		Rejected:          counts.Rejected,
		Failed:            counts.Failed,
		AverageConfidence: averageConfidence,
	}
	if counts.Decided() > 0 {
		m.ApprovalRate = float64(counts.Approved) / float64(counts.Decided())
	}
	return m
}
