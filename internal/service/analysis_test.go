package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	"github.com/supplier-intake/intake-pipeline/internal/inventory"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	st "github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("analysis service", Ordered, func() {
	var (
		store      st.Store
		supplierID uuid.UUID
		proposal   analysis.Proposal
	)

	committer := inventory.CommitterFunc(func(ctx context.Context, p inventory.Product) (string, error) {
		return "SKU-" + p.SubmissionID.String(), nil
	})

	BeforeAll(func() {
		store, _ = newTestStore("analysis")
		createTemplate(store, "T1", requiredNameAndPrice...)
		createTemplate(store, "T2", requiredNameAndPrice...)
		supplierID = createSupplier(store, "+15550003333")

		review := service.NewReviewService(store, committer)
		for i := range 40 {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": fmt.Sprintf("Drill %d", i), "price": 99}, 85)
			if i < 12 {
				_, err := review.Reject(context.TODO(), id, mappers.RejectForm{
					Feedback: mappers.FeedbackForm{Category: "missing_field", Fields: []string{"warrantyMonths"}, Note: "warranty not extracted"},
				})
				Expect(err).To(BeNil())
				continue
			}
			_, err := review.Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeNil())
		}
	})

	AfterAll(func() {
		store.Close()
	})

	It("proposes adding the recurring missing field", func() {
		result, err := service.NewAnalysisService(store).Analyze(context.TODO(), "T1", 7*24*time.Hour)
		Expect(err).To(BeNil())
		Expect(result.Total).To(Equal(40))
		Expect(result.Approved).To(Equal(28))
		Expect(result.Rejected).To(Equal(12))
		Expect(result.SuccessRate).To(BeNumerically("~", 0.7, 0.0001))
		Expect(result.Health).To(Equal(model.HealthNeedsImprovement))
		Expect(result.Comparable).To(BeTrue())

		Expect(result.Proposals).To(HaveLen(1))
		proposal = result.Proposals[0]
		Expect(proposal.Type).To(Equal(model.ProposalFieldAddition))
		Expect(proposal.Field).To(Equal("warrantyMonths"))
		Expect(proposal.Priority).To(Equal(model.PriorityHigh))
		Expect(proposal.SupportingData.ErrorCount).To(Equal(12))
		Expect(proposal.SupportingData.ErrorRate).To(BeNumerically("~", 0.3, 0.0001))
		Expect(proposal.SupportingData.SampleErrors).To(ConsistOf("warranty not extracted"))
		Expect(proposal.SuggestedChange.Field).NotTo(BeNil())
		Expect(proposal.SuggestedChange.Field.Name).To(Equal("warrantyMonths"))
	})

	It("serves the stored snapshot while it is fresh", func() {
		result, err := service.NewAnalysisService(store).GetTemplateAnalysis(context.TODO(), "T1", 7*24*time.Hour)
		Expect(err).To(BeNil())
		Expect(result.Proposals).To(HaveLen(1))
		Expect(result.Window).To(Equal((7 * 24 * time.Hour).String()))
	})

	It("ranks only comparable templates needing attention", func() {
		overview, err := service.NewAnalysisService(store).AnalyzeAll(context.TODO(), 7*24*time.Hour)
		Expect(err).To(BeNil())
		Expect(overview.Results).To(HaveLen(2))
		Expect(overview.NeedsAttention).To(Equal([]string{"T1"}))
	})

	It("returns not found for an unknown template", func() {
		_, err := service.NewAnalysisService(store).Analyze(context.TODO(), "nope", 0)
		Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
	})

	It("applies the proposal and records the revision", func() {
		srv := service.NewAnalysisService(store)
		updated, err := srv.ApplyImprovement(context.TODO(), "T1", proposal, "ops")
		Expect(err).To(BeNil())
		Expect(updated.Version).To(Equal(2))
		field, ok := updated.Field("warrantyMonths")
		Expect(ok).To(BeTrue())
		Expect(field.Required).To(BeTrue())
		Expect(updated.Instructions).To(ContainSubstring("warrantyMonths"))

		revisions, err := srv.ListRevisions(context.TODO(), "T1")
		Expect(err).To(BeNil())
		Expect(revisions).To(HaveLen(1))
		Expect(revisions[0].FromVersion).To(Equal(1))
		Expect(revisions[0].ToVersion).To(Equal(2))
		Expect(revisions[0].AppliedBy).To(Equal("ops"))
		Expect(revisions[0].Before.Data().ExpectedFields).To(HaveLen(2))
		Expect(revisions[0].After.Data().ExpectedFields).To(HaveLen(3))

		// past feedback is left untouched
		feedback, err := store.Feedback().List(context.TODO(), st.NewFeedbackQueryFilter().ByTemplateID("T1"))
		Expect(err).To(BeNil())
		Expect(feedback).To(HaveLen(12))
	})

	It("refuses proposals that cannot be applied", func() {
		srv := service.NewAnalysisService(store)

		_, err := srv.ApplyImprovement(context.TODO(), "T1", analysis.Proposal{Type: "rewrite_everything"}, "")
		Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidProposal{}))

		_, err = srv.ApplyImprovement(context.TODO(), "T1", analysis.Proposal{Type: model.ProposalFieldAddition}, "")
		Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidProposal{}))

		_, err = srv.ApplyImprovement(context.TODO(), "missing", proposal, "")
		Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))

		template, err := store.Template().Get(context.TODO(), "T1")
		Expect(err).To(BeNil())
		Expect(template.Version).To(Equal(2))
	})

	It("detects a concurrent template update", func() {
		template, err := store.Template().Get(context.TODO(), "T1")
		Expect(err).To(BeNil())
		stale := *template
		stale.Version = template.Version + 1
		_, err = store.Template().Update(context.TODO(), stale, template.Version-1)
		Expect(err).To(MatchError(st.ErrNoRowsAffected))
	})
})

var _ = Describe("analysis window", Ordered, func() {
	var (
		store      st.Store
		gormDB     *gorm.DB
		supplierID uuid.UUID
		pending    []uuid.UUID
	)

	committer := inventory.CommitterFunc(func(ctx context.Context, p inventory.Product) (string, error) {
		return "SKU-" + p.SubmissionID.String(), nil
	})

	BeforeAll(func() {
		store, gormDB = newTestStore("analysis_window")
		createTemplate(store, "T1", requiredNameAndPrice...)
		supplierID = createSupplier(store, "+15550004444")

		review := service.NewReviewService(store, committer)
		for i := range 10 {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": fmt.Sprintf("Saw %d", i), "price": 40}, 85)
			tx := gormDB.Model(&model.Submission{}).Where("id = ?", id).Update("created_at", time.Now().UTC().Add(-60*24*time.Hour))
			Expect(tx.Error).To(BeNil())
			_, err := review.Reject(context.TODO(), id, mappers.RejectForm{
				Feedback: mappers.FeedbackForm{Category: "missing_field", Fields: []string{"warrantyMonths"}, Note: "warranty not extracted"},
			})
			Expect(err).To(BeNil())
		}
		for i := range 2 {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": fmt.Sprintf("Hammer %d", i), "price": 15}, 90)
			_, err := review.Approve(context.TODO(), id, mappers.ApproveForm{})
			Expect(err).To(BeNil())
		}
	})

	AfterAll(func() {
		store.Close()
	})

	It("ignores feedback on submissions created before the window", func() {
		result, err := service.NewAnalysisService(store).Analyze(context.TODO(), "T1", 30*24*time.Hour)
		Expect(err).To(BeNil())
		Expect(result.Total).To(Equal(2))
		Expect(result.Approved).To(Equal(2))
		Expect(result.Rejected).To(Equal(0))
		Expect(result.Health).To(Equal(model.HealthExcellent))
		Expect(result.Proposals).To(BeEmpty())
	})

	It("does not count cancelled or expired attempts as extraction failures", func() {
		for i, meta := range []string{model.MetaCancelled, model.MetaStaleClaim, model.MetaCancelled} {
			id := createCompleted(store, supplierID, "T1", map[string]any{"name": fmt.Sprintf("Chisel %d", i), "price": 8}, 70)
			pending = append(pending, id)
			entry := model.NewLogEntry(id, model.StageAIExtraction, model.StageStatusFailed, 1).
				WithError(errors.New("attempt interrupted")).
				WithMeta(meta, true)
			Expect(store.ProcessingLog().Append(context.TODO(), entry)).To(BeNil())
		}

		result, err := service.NewAnalysisService(store).Analyze(context.TODO(), "T1", 30*24*time.Hour)
		Expect(err).To(BeNil())
		Expect(result.Total).To(Equal(5))
		Expect(result.Proposals).To(BeEmpty())
	})

	It("proposes examples once the same submissions fail for real", func() {
		for _, id := range pending {
			entry := model.NewLogEntry(id, model.StageAIExtraction, model.StageStatusFailed, 2).
				WithError(errors.New("model returned no product"))
			Expect(store.ProcessingLog().Append(context.TODO(), entry)).To(BeNil())
		}

		result, err := service.NewAnalysisService(store).Analyze(context.TODO(), "T1", 30*24*time.Hour)
		Expect(err).To(BeNil())
		Expect(result.Proposals).To(HaveLen(1))
		Expect(result.Proposals[0].Type).To(Equal(model.ProposalExampleUpdate))
		Expect(result.Proposals[0].SupportingData.ErrorCount).To(Equal(3))
		Expect(result.Proposals[0].SupportingData.SampleErrors).To(ConsistOf("model returned no product"))
	})
})
