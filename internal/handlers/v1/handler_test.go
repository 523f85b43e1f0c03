package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	apiv1 "github.com/supplier-intake/intake-pipeline/api/v1"
	"github.com/supplier-intake/intake-pipeline/internal/config"
	handlers "github.com/supplier-intake/intake-pipeline/internal/handlers/v1"
	"github.com/supplier-intake/intake-pipeline/internal/inventory"
	"github.com/supplier-intake/intake-pipeline/internal/scoring"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	srvMappers "github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	st "github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestHandlers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Handlers Suite")
}

type noopRetrier struct{}

func (noopRetrier) Retry(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return nil, service.NewErrSubmissionNotProcessable(id)
}

var _ = Describe("operator api", Ordered, func() {
	var (
		store       st.Store
		gormDB      *gorm.DB
		router      *chi.Mux
		inventoryUp atomic.Bool
		supplierID  uuid.UUID
	)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader io.Reader = http.NoBody
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).To(BeNil())
			reader = bytes.NewReader(data)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decodeBody := func(rec *httptest.ResponseRecorder, v any) {
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	ingest := func(messageID string) apiv1.Submission {
		rec := do(http.MethodPost, "/api/v1/ingest", apiv1.IngestRequest{
			ExternalMessageID: messageID,
			SupplierRef:       "+15550001111",
			ContentType:       "text",
			RawContent:        "desk lamp, 25 EUR",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var resp apiv1.IngestResponse
		decodeBody(rec, &resp)
		Expect(resp.Submissions).To(HaveLen(1))
		return resp.Submissions[0]
	}

	complete := func(id uuid.UUID) {
		tx := gormDB.Model(&model.Submission{}).Where("id = ?", id).Updates(model.Submission{
			ProcessingStatus:     model.ProcessingStatusCompleted,
			ExtractedData:        datatypes.JSONMap{"name": "Desk Lamp", "price": 25},
			ExtractionConfidence: ptr(92.0),
			Category:             ptr("home"),
		})
		Expect(tx.Error).To(BeNil())
	}

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "handlers.db")
		db, err := st.InitDB(cfg)
		Expect(err).To(BeNil())
		gormDB = db
		store = st.NewStore(db)
		Expect(store.InitialMigration(context.TODO())).To(BeNil())

		_, err = store.Template().Create(context.TODO(), model.Template{
			ID:   "T1",
			Name: "General goods",
			ExpectedFields: datatypes.NewJSONSlice([]model.FieldSpec{
				{Name: "name", Type: model.FieldTypeString, Required: true},
				{Name: "price", Type: model.FieldTypeNumber, Required: true},
			}),
			ContentTypes: datatypes.NewJSONSlice([]model.ContentType{}),
			Examples:     datatypes.NewJSONSlice([]string{}),
			Active:       true,
		})
		Expect(err).To(BeNil())

		supplierSrv := service.NewSupplierService(store)
		supplier, err := supplierSrv.CreateSupplier(context.TODO(), srvMappers.SupplierForm{ContactID: "+15550001111", Name: "Acme"})
		Expect(err).To(BeNil())
		supplierID = supplier.ID

		committer := inventory.CommitterFunc(func(ctx context.Context, p inventory.Product) (string, error) {
			if !inventoryUp.Load() {
				return "", errors.New("inventory unavailable")
			}
			return "prod-" + p.SubmissionID.String()[:8], nil
		})
		scorer := scoring.NewScorer()
		h := handlers.NewServiceHandler(
			service.NewIngestService(store),
			service.NewQueueService(store, service.WithScorer(scorer)),
			service.NewReviewService(store, committer),
			service.NewSubmissionService(store, scorer, noopRetrier{}),
			service.NewTemplateService(store),
			service.NewAnalysisService(store),
			supplierSrv,
		)
		router = chi.NewRouter()
		h.Router(router)
	})

	AfterAll(func() {
		store.Close()
	})

	BeforeEach(func() {
		inventoryUp.Store(true)
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM submissions;")
		gormDB.Exec("DELETE FROM processing_log_entries;")
		gormDB.Exec("DELETE FROM feedback;")
	})

	Context("ingest", func() {
		It("is idempotent on the external message id", func() {
			first := ingest("M1")
			Expect(first.SupplierID).To(Equal(supplierID))
			Expect(first.ProcessingStatus).To(Equal("pending"))

			rec := do(http.MethodPost, "/api/v1/ingest", apiv1.IngestRequest{
				ExternalMessageID: "M1",
				SupplierRef:       "+15550001111",
				ContentType:       "text",
				RawContent:        "desk lamp, 25 EUR",
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp apiv1.IngestResponse
			decodeBody(rec, &resp)
			Expect(resp.Duplicate).To(BeTrue())
			Expect(resp.Submissions).To(HaveLen(1))
			Expect(resp.Submissions[0].ID).To(Equal(first.ID))

			var count int64
			Expect(gormDB.Model(&model.Submission{}).Count(&count).Error).To(BeNil())
			Expect(count).To(Equal(int64(1)))
		})

		It("rejects an unknown content type", func() {
			rec := do(http.MethodPost, "/api/v1/ingest", map[string]any{
				"externalMessageId": "M2",
				"supplierId":        "+15550001111",
				"contentType":       "video",
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown supplier", func() {
			rec := do(http.MethodPost, "/api/v1/ingest", apiv1.IngestRequest{
				ExternalMessageID: "M3",
				SupplierRef:       "+15559999999",
				ContentType:       "text",
				RawContent:        "chair",
			})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("submissions", func() {
		It("returns 404 for an unknown submission", func() {
			rec := do(http.MethodGet, "/api/v1/submissions/"+uuid.NewString(), nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed id", func() {
			rec := do(http.MethodGet, "/api/v1/submissions/not-a-uuid", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns the detail with its processing log", func() {
			s := ingest("M4")
			rec := do(http.MethodGet, "/api/v1/submissions/"+s.ID.String(), nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var detail apiv1.SubmissionDetail
			decodeBody(rec, &detail)
			Expect(detail.Submission.ID).To(Equal(s.ID))
			Expect(detail.Log).To(HaveLen(1))
			Expect(detail.Log[0].Stage).To(Equal("webhook"))
		})
	})

	Context("review", func() {
		It("keeps the submission pending when the inventory fails", func() {
			s := ingest("M5")
			complete(s.ID)
			inventoryUp.Store(false)

			rec := do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/approve", apiv1.ApproveRequest{})
			Expect(rec.Code).To(Equal(http.StatusBadGateway))

			rec = do(http.MethodGet, "/api/v1/submissions/"+s.ID.String()+"/logs?stage=inventory_update", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var entries []apiv1.ProcessingLogEntry
			decodeBody(rec, &entries)
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Status).To(Equal("failed"))

			inventoryUp.Store(true)
			rec = do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/approve", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("approves with edits and refuses a second decision", func() {
			s := ingest("M6")
			complete(s.ID)

			rec := do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/approve", apiv1.ApproveRequest{
				Edits:     map[string]any{"price": 30},
				Validator: "ana",
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp apiv1.ApproveResponse
			decodeBody(rec, &resp)
			Expect(resp.ProductReference).To(HavePrefix("prod-"))
			Expect(resp.CommittedData["price"]).To(BeNumerically("==", 30))
			Expect(resp.CommittedData["name"]).To(Equal("Desk Lamp"))
			Expect(resp.Submission.ValidationStatus).To(Equal("approved"))

			rec = do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/reject", apiv1.RejectRequest{
				Feedback: apiv1.Feedback{Category: "other"},
			})
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("approves without a body of unknown length", func() {
			s := ingest("M6b")
			complete(s.ID)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/approve", io.MultiReader())
			Expect(req.ContentLength).To(Equal(int64(-1)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp apiv1.ApproveResponse
			decodeBody(rec, &resp)
			Expect(resp.CommittedData["name"]).To(Equal("Desk Lamp"))
		})

		It("still requires a body to reject", func() {
			s := ingest("M6c")
			complete(s.ID)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/reject", io.MultiReader())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("refuses to approve a submission still in extraction", func() {
			s := ingest("M7")
			rec := do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/approve", nil)
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("rejects malformed feedback without changing the submission", func() {
			s := ingest("M8")
			complete(s.ID)

			rec := do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/reject", apiv1.RejectRequest{
				Feedback: apiv1.Feedback{Category: "missing_field"},
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			rec = do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/reject", apiv1.RejectRequest{
				Feedback: apiv1.Feedback{Category: "bad_vibes"},
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			got, err := store.Submission().Get(context.TODO(), s.ID)
			Expect(err).To(BeNil())
			Expect(got.ValidationStatus).To(Equal(model.ValidationStatusPending))
		})

		It("rejects with structured feedback", func() {
			s := ingest("M9")
			complete(s.ID)

			rec := do(http.MethodPost, "/api/v1/submissions/"+s.ID.String()+"/reject", apiv1.RejectRequest{
				Feedback: apiv1.Feedback{Category: "missing_field", Fields: []string{"warrantyMonths"}},
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			var feedback apiv1.FeedbackRecord
			decodeBody(rec, &feedback)
			Expect(feedback.TemplateID).To(Equal("T1"))
			Expect(feedback.Fields).To(ConsistOf("warrantyMonths"))
		})
	})

	Context("queue", func() {
		It("lists completed submissions awaiting review", func() {
			done := ingest("M10")
			complete(done.ID)
			ingest("M11")

			rec := do(http.MethodGet, "/api/v1/queue", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var page apiv1.QueuePage
			decodeBody(rec, &page)
			Expect(page.Total).To(Equal(1))
			Expect(page.Items[0].Submission.ID).To(Equal(done.ID))
			Expect(page.Items[0].Priority).To(Equal("low"))
		})

		It("refuses an invalid page size", func() {
			rec := do(http.MethodGet, "/api/v1/queue?limit=0", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			rec = do(http.MethodGet, "/api/v1/queue?priority=urgent", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("templates", func() {
		It("returns a template and 404 for an unknown one", func() {
			rec := do(http.MethodGet, "/api/v1/templates/T1", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodGet, "/api/v1/templates/T404", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("exports the analysis as a spreadsheet", func() {
			rec := do(http.MethodGet, "/api/v1/templates/analysis?format=xlsx", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal(service.XLSXContentType))
			Expect(rec.Body.Len()).To(BeNumerically(">", 0))
		})

		It("refuses an invalid analysis window", func() {
			rec := do(http.MethodGet, "/api/v1/templates/T1/analysis?window=forever", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("applies an improvement and records the revision", func() {
			rec := do(http.MethodPost, "/api/v1/templates/T1/improvements", apiv1.ApplyImprovementRequest{
				Proposal: apiv1.Proposal{
					Type:            "field_addition",
					Field:           "warrantyMonths",
					SuggestedChange: apiv1.SuggestedChange{Field: &apiv1.FieldSpec{Name: "warrantyMonths", Type: "integer"}},
				},
				AppliedBy: "ana",
			})
			Expect(rec.Code).To(Equal(http.StatusOK))
			var template apiv1.Template
			decodeBody(rec, &template)
			Expect(template.Version).To(Equal(2))

			rec = do(http.MethodGet, "/api/v1/templates/T1/revisions", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var revisions []apiv1.TemplateRevision
			decodeBody(rec, &revisions)
			Expect(revisions).To(HaveLen(1))
			Expect(revisions[0].After.ExpectedFields).To(HaveLen(3))
			Expect(revisions[0].Before.ExpectedFields).To(HaveLen(2))
		})
	})

	Context("suppliers", func() {
		It("creates a supplier and refuses a duplicate contact", func() {
			rec := do(http.MethodPost, "/api/v1/suppliers", apiv1.SupplierCreate{ContactID: "+15550002222", Name: "Bolt & Co"})
			Expect(rec.Code).To(Equal(http.StatusCreated))

			rec = do(http.MethodPost, "/api/v1/suppliers", apiv1.SupplierCreate{ContactID: "+15550002222"})
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})
})

var _ = DescribeTable("analysis window",
	func(raw string, expected time.Duration, shouldFail bool) {
		d, err := handlers.ParseWindow(raw)
		if shouldFail {
			Expect(err).NotTo(BeNil())
			return
		}
		Expect(err).To(BeNil())
		Expect(d).To(Equal(expected))
	},
	Entry("default", "", time.Duration(0), false),
	Entry("days", "30d", 30*24*time.Hour, false),
	Entry("go duration", "72h", 72*time.Hour, false),
	Entry("garbage", "forever", time.Duration(0), true),
	Entry("negative", "-1h", time.Duration(0), true),
)

func ptr[T any](v T) *T { return &v }
