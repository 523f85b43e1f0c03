package service_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	st "github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"gorm.io/gorm"
)

var _ = Describe("supplier service", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
		srv    *service.SupplierService
	)

	BeforeAll(func() {
		store, gormDB = newTestStore("supplier")
		createTemplate(store, "T1", requiredNameAndPrice...)
		srv = service.NewSupplierService(store)
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM submissions;")
		gormDB.Exec("DELETE FROM suppliers;")
	})

	It("creates a supplier with normalized categories", func() {
		created, err := srv.CreateSupplier(context.TODO(), mappers.SupplierForm{
			ContactID:           " +15550004444 ",
			Name:                "Acme",
			PreferredCategories: []string{" Tools ", "", "garden"},
		})
		Expect(err).To(BeNil())
		Expect(created.ContactID).To(Equal("+15550004444"))
		Expect(created.Active).To(BeTrue())
		Expect([]string(created.PreferredCategories)).To(Equal([]string{"tools", "garden"}))

		got, err := srv.GetSupplier(context.TODO(), created.ID)
		Expect(err).To(BeNil())
		Expect(got.Name).To(Equal("Acme"))
	})

	It("refuses a second supplier with the same contact", func() {
		_, err := srv.CreateSupplier(context.TODO(), mappers.SupplierForm{ContactID: "+15550004444"})
		Expect(err).To(BeNil())
		_, err = srv.CreateSupplier(context.TODO(), mappers.SupplierForm{ContactID: "+15550004444"})
		Expect(err).To(BeAssignableToTypeOf(&service.ErrDuplicateResource{}))
	})

	It("refuses a supplier without contact", func() {
		_, err := srv.CreateSupplier(context.TODO(), mappers.SupplierForm{ContactID: "   "})
		Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))
	})

	It("returns not found for an unknown supplier", func() {
		_, err := srv.GetSupplier(context.TODO(), uuid.New())
		Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
	})

	It("lists only active suppliers when asked", func() {
		inactive := false
		_, err := srv.CreateSupplier(context.TODO(), mappers.SupplierForm{ContactID: "+15550005555", Active: &inactive})
		Expect(err).To(BeNil())
		_, err = srv.CreateSupplier(context.TODO(), mappers.SupplierForm{ContactID: "+15550006666"})
		Expect(err).To(BeNil())

		all, err := srv.ListSuppliers(context.TODO(), false)
		Expect(err).To(BeNil())
		Expect(all).To(HaveLen(2))

		active, err := srv.ListSuppliers(context.TODO(), true)
		Expect(err).To(BeNil())
		Expect(active).To(HaveLen(1))
		Expect(active[0].ContactID).To(Equal("+15550006666"))
	})

	It("recomputes the metric snapshot from the submissions", func() {
		supplierID := createSupplier(store, "+15550007777")
		idle := createSupplier(store, "+15550008888")

		approved := createCompleted(store, supplierID, "T1", map[string]any{"name": "Lamp", "price": 10}, 90)
		rejected := createCompleted(store, supplierID, "T1", map[string]any{"name": "Desk"}, 60)
		createCompleted(store, supplierID, "T1", map[string]any{"name": "Sofa", "price": 10}, 30)
		Expect(gormDB.Model(&model.Submission{}).Where("id = ?", approved).
			Update("validation_status", model.ValidationStatusApproved).Error).To(BeNil())
		Expect(gormDB.Model(&model.Submission{}).Where("id = ?", rejected).
			Update("validation_status", model.ValidationStatusRejected).Error).To(BeNil())

		for range 2 {
			n, err := srv.RefreshMetrics(context.TODO())
			Expect(err).To(BeNil())
			Expect(n).To(Equal(2))
		}

		got, err := srv.GetSupplier(context.TODO(), supplierID)
		Expect(err).To(BeNil())
		m := got.Metrics.Data()
		Expect(m.Submissions).To(Equal(3))
		Expect(m.Approved).To(Equal(1))
		Expect(m.Rejected).To(Equal(1))
		Expect(m.ApprovalRate).To(BeNumerically("~", 0.5, 0.0001))
		Expect(m.AverageConfidence).To(BeNumerically("~", 60, 0.0001))
		Expect(got.MetricsComputedAt).NotTo(BeNil())

		empty, err := srv.GetSupplier(context.TODO(), idle)
		Expect(err).To(BeNil())
		Expect(empty.Metrics.Data()).To(Equal(model.SupplierMetrics{}))
	})
})

var _ = DescribeTable("supplier metrics",
	func(counts model.DecisionCount, avg float64, expected model.SupplierMetrics) {
		Expect(service.ComputeSupplierMetrics(counts, avg)).To(Equal(expected))
	},
	Entry("no history", model.DecisionCount{}, 0.0, model.SupplierMetrics{}),
	Entry("undecided only", model.DecisionCount{Total: 3, Failed: 1}, 50.0,
		model.SupplierMetrics{Submissions: 3, Failed: 1, AverageConfidence: 50}),
	Entry("mixed", model.DecisionCount{Total: 4, Approved: 3, Rejected: 1}, 80.0,
		model.SupplierMetrics{Submissions: 4, Approved: 3, Rejected: 1, ApprovalRate: 0.75, AverageConfidence: 80}),
)
