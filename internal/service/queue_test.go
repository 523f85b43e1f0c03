package service_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/supplier-intake/intake-pipeline/internal/scoring"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	st "github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("queue service", Ordered, func() {
	var (
		store      st.Store
		gormDB     *gorm.DB
		supplierID uuid.UUID
		clean      uuid.UUID
		weak       uuid.UUID
	)

	BeforeAll(func() {
		store, gormDB = newTestStore("queue")
		createTemplate(store, "T1", requiredNameAndPrice...)
		supplierID = createSupplier(store, "+15550002222")

		clean = createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 25}, 92)
		weak = createCompleted(store, supplierID, "T1", map[string]any{"name": "Chair"}, 40)
		// both products come from the same message
		Expect(gormDB.Model(&model.Submission{}).Where("id = ?", weak).Update("group_id", clean).Error).To(BeNil())
	})

	AfterAll(func() {
		store.Close()
	})

	It("scores and ranks the pending submissions", func() {
		page, err := service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 1, Limit: 10})
		Expect(err).To(BeNil())
		Expect(page.Total).To(Equal(2))
		Expect(page.Items).To(HaveLen(2))

		first, second := page.Items[0], page.Items[1]
		Expect(first.Submission.ID).To(Equal(weak))
		Expect(first.Priority).To(Equal(model.PriorityHigh))
		Expect(first.Confidence).To(BeNumerically("==", 25))
		Expect(first.Breakdown.MissingFields).To(ConsistOf("price"))
		Expect(first.SuggestedActions).To(Equal([]scoring.Action{scoring.ActionReviewMissingFields, scoring.ActionReject}))

		Expect(second.Submission.ID).To(Equal(clean))
		Expect(second.Priority).To(Equal(model.PriorityLow))
		Expect(second.Confidence).To(BeNumerically("==", 92))
		Expect(second.SuggestedActions).To(Equal([]scoring.Action{scoring.ActionApprove}))

		Expect(first.Siblings).To(HaveLen(1))
		Expect(first.Siblings[0].ID).To(Equal(clean))
		Expect(second.Siblings).To(HaveLen(1))
		Expect(second.Siblings[0].ID).To(Equal(weak))
	})

	It("filters on priority and confidence", func() {
		low := model.PriorityLow
		page, err := service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 1, Limit: 10, Priority: &low})
		Expect(err).To(BeNil())
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Items[0].Submission.ID).To(Equal(clean))

		page, err = service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 1, Limit: 10, MaxConfidence: ptr(50.0)})
		Expect(err).To(BeNil())
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Items[0].Submission.ID).To(Equal(weak))
	})

	It("paginates after ranking", func() {
		page, err := service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 2, Limit: 1})
		Expect(err).To(BeNil())
		Expect(page.Total).To(Equal(2))
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Items[0].Submission.ID).To(Equal(clean))

		page, err = service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 3, Limit: 1})
		Expect(err).To(BeNil())
		Expect(page.Items).To(BeEmpty())
	})

	It("drops decided submissions from the queue", func() {
		Expect(gormDB.Model(&model.Submission{}).Where("id = ?", clean).
			Update("validation_status", model.ValidationStatusApproved).Error).To(BeNil())
		defer gormDB.Model(&model.Submission{}).Where("id = ?", clean).
			Update("validation_status", model.ValidationStatusPending)

		page, err := service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 1, Limit: 10})
		Expect(err).To(BeNil())
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Items[0].Submission.ID).To(Equal(weak))
		// siblings are reported whatever their state
		Expect(page.Items[0].Siblings).To(HaveLen(1))
		Expect(page.Items[0].Siblings[0].ValidationStatus).To(Equal(model.ValidationStatusApproved))
	})

	DescribeTable("rejects invalid filters",
		func(filter service.QueueFilter) {
			_, err := service.NewQueueService(store).ListQueue(context.TODO(), filter)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidQueueFilter{}))
		},
		Entry("page zero", service.QueueFilter{Page: 0, Limit: 10}),
		Entry("limit zero", service.QueueFilter{Page: 1, Limit: 0}),
		Entry("limit above max", service.QueueFilter{Page: 1, Limit: 101}),
		Entry("confidence above 100", service.QueueFilter{Page: 1, Limit: 10, MinConfidence: ptr(120.0)}),
		Entry("inverted bounds", service.QueueFilter{Page: 1, Limit: 10, MinConfidence: ptr(80.0), MaxConfidence: ptr(20.0)}),
	)
})

var _ = Describe("queue service with a single pending submission", Ordered, func() {
	var (
		store st.Store
		only  uuid.UUID
	)

	BeforeAll(func() {
		store, _ = newTestStore("queue_single")
		createTemplate(store, "T1", requiredNameAndPrice...)
		only = createCompleted(store, createSupplier(store, "+15550009999"), "T1", map[string]any{"name": "Lamp", "price": 25}, 92)
	})

	AfterAll(func() {
		store.Close()
	})

	It("lists it without siblings", func() {
		page, err := service.NewQueueService(store).ListQueue(context.TODO(), service.QueueFilter{Page: 1, Limit: 10})
		Expect(err).To(BeNil())
		Expect(page.Total).To(Equal(1))
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Items[0].Submission.ID).To(Equal(only))
		Expect(page.Items[0].Priority).To(Equal(model.PriorityLow))
		Expect(page.Items[0].Siblings).To(BeEmpty())
	})
})
