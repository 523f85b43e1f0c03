package service_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/supplier-intake/intake-pipeline/internal/inventory"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	st "github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("review service", Ordered, func() {
	var (
		store      st.Store
		gormDB     *gorm.DB
		supplierID uuid.UUID
		committed  []inventory.Product
	)

	working := inventory.CommitterFunc(func(ctx context.Context, p inventory.Product) (string, error) {
		committed = append(committed, p)
		return "SKU-1", nil
	})
	broken := inventory.CommitterFunc(func(ctx context.Context, p inventory.Product) (string, error) {
		return "", errors.New("inventory timeout")
	})
	silent := inventory.CommitterFunc(func(ctx context.Context, p inventory.Product) (string, error) {
		return "  ", nil
	})

	logFor := func(id uuid.UUID, stage model.StageName) model.ProcessingLog {
		entries, err := store.ProcessingLog().List(context.TODO(), st.NewLogQueryFilter().BySubmissionID(id).ByStage(stage))
		Expect(err).To(BeNil())
		return entries
	}

	BeforeAll(func() {
		store, gormDB = newTestStore("review")
		createTemplate(store, "T1", requiredNameAndPrice...)
		supplierID = createSupplier(store, "+15550001111")
	})

	AfterAll(func() {
		store.Close()
	})

	BeforeEach(func() {
		committed = nil
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM submissions;")
		gormDB.Exec("DELETE FROM processing_log_entries;")
		gormDB.Exec("DELETE FROM feedback;")
	})

	Context("approve", func() {
		It("commits the extracted data when there are no edits", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 25}, 92)

			result, err := service.NewReviewService(store, working).Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeNil())
			Expect(result.ProductReference).To(Equal("SKU-1"))
			Expect(result.Submission.ValidationStatus).To(Equal(model.ValidationStatusApproved))
			Expect(*result.Submission.ProductReference).To(Equal("SKU-1"))
			Expect(*result.Submission.ValidatedBy).To(Equal("anonymous"))
			Expect(committed).To(HaveLen(1))
			Expect(committed[0].Data).To(HaveKeyWithValue("name", "Lamp"))

			Expect(logFor(id, model.StageValidation)).To(HaveLen(1))
			inventoryLog := logFor(id, model.StageInventoryUpdate)
			Expect(inventoryLog).To(HaveLen(1))
			Expect(inventoryLog[0].Status).To(Equal(model.StageStatusCompleted))
		})

		It("lets reviewer edits win over extracted values", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 25}, 92)

			result, err := service.NewReviewService(store, working).Approve(context.TODO(), id, mappers.ApproveForm{
				Edits:     map[string]any{"price": 30, "color": "red"},
				Validator: "ana",
			})
			Expect(err).To(BeNil())
			Expect(result.Data).To(HaveKeyWithValue("price", 30))
			Expect(result.Data).To(HaveKeyWithValue("color", "red"))
			Expect(result.Data).To(HaveKeyWithValue("name", "Lamp"))

			stored, err := store.Submission().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(stored.ExtractedData["price"]).To(Equal(json.Number("25")))
		})

		It("keeps the submission pending when the inventory commit fails", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 25}, 92)

			_, err := service.NewReviewService(store, broken).Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).NotTo(BeNil())
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInventoryCommitFailed{}))

			stored, err := store.Submission().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(stored.ValidationStatus).To(Equal(model.ValidationStatusPending))
			Expect(stored.ProductReference).To(BeNil())
			Expect(*stored.LastError).To(ContainSubstring("inventory timeout"))

			failed := logFor(id, model.StageInventoryUpdate)
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Status).To(Equal(model.StageStatusFailed))
			Expect(logFor(id, model.StageValidation)).To(BeEmpty())

			// no terminal decision was persisted so a second approval goes through
			result, err := service.NewReviewService(store, working).Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeNil())
			Expect(result.Submission.ValidationStatus).To(Equal(model.ValidationStatusApproved))
		})

		It("treats an empty product reference as a failed commit", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 25}, 92)

			_, err := service.NewReviewService(store, silent).Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInventoryCommitFailed{}))
		})

		It("refuses a second decision", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 25}, 92)
			srv := service.NewReviewService(store, working)

			_, err := srv.Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeNil())

			_, err = srv.Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidationConflict{}))
			_, err = srv.Reject(context.TODO(), id, mappers.RejectForm{Feedback: mappers.FeedbackForm{Category: "other"}})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidationConflict{}))
			Expect(committed).To(HaveLen(1))
		})

		It("returns not found for an unknown submission", func() {
			_, err := service.NewReviewService(store, working).Approve(context.TODO(), uuid.New(), mappers.ApproveForm{})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("reject", func() {
		It("stores the feedback and the terminal decision", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Drill"}, 60)

			feedback, err := service.NewReviewService(store, working).Reject(context.TODO(), id, mappers.RejectForm{
				Feedback: mappers.FeedbackForm{Category: "missing_field", Fields: []string{" warrantyMonths "}, Note: "no warranty"},
				Notes:    ptr("resend with warranty"),
			})
			Expect(err).To(BeNil())
			Expect(feedback.Category).To(Equal(model.FeedbackMissingField))
			Expect([]string(feedback.Fields)).To(Equal([]string{"warrantyMonths"}))
			Expect(feedback.TemplateID).To(Equal("T1"))

			stored, err := store.Submission().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(stored.ValidationStatus).To(Equal(model.ValidationStatusRejected))
			Expect(*stored.ValidationNotes).To(Equal("resend with warranty"))
			Expect(committed).To(BeEmpty())
		})

		It("refuses malformed feedback before any write", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Drill"}, 60)
			srv := service.NewReviewService(store, working)

			for _, fb := range []mappers.FeedbackForm{
				{Category: "missing_field"},
				{Category: "bad_vibes"},
				{Category: ""},
				{Category: "other", Subcategory: "no_such_subcategory"},
			} {
				_, err := srv.Reject(context.TODO(), id, mappers.RejectForm{Feedback: fb})
				Expect(err).To(BeAssignableToTypeOf(&service.ErrMalformedFeedback{}))
			}

			stored, err := store.Submission().Get(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(stored.ValidationStatus).To(Equal(model.ValidationStatusPending))
			Expect(logFor(id, model.StageValidation)).To(BeEmpty())
		})

		It("refuses to decide a submission still in extraction", func() {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": "Drill"}, 60)
			Expect(gormDB.Model(&model.Submission{}).Where("id = ?", id).
				Update("processing_status", model.ProcessingStatusProcessing).Error).To(BeNil())

			_, err := service.NewReviewService(store, working).Reject(context.TODO(), id, mappers.RejectForm{
				Feedback: mappers.FeedbackForm{Category: "other"},
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidationConflict{}))
		})
	})
})

var _ = DescribeTable("merge edits",
	func(data, edits, expected map[string]any) {
		Expect(service.MergeEdits(data, edits)).To(Equal(expected))
	},
	Entry("no edits", map[string]any{"a": 1}, nil, map[string]any{"a": 1}),
	Entry("edit wins", map[string]any{"a": 1}, map[string]any{"a": 2}, map[string]any{"a": 2}),
	Entry("edit adds", map[string]any{"a": 1}, map[string]any{"b": "x"}, map[string]any{"a": 1, "b": "x"}),
	Entry("no data", nil, map[string]any{"b": "x"}, map[string]any{"b": "x"}),
)
