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

type recordingDispatcher struct {
	ids []uuid.UUID
}

func (d *recordingDispatcher) Enqueue(id uuid.UUID) bool {
	d.ids = append(d.ids, id)
	return true
}

var _ = Describe("ingest service", Ordered, func() {
	var (
		store      st.Store
		gormDB     *gorm.DB
		supplierID uuid.UUID
	)

	BeforeAll(func() {
		store, gormDB = newTestStore("ingest")
		createTemplate(store, "T1", requiredNameAndPrice...)
		supplierID = createSupplier(store, "+15550001111")
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE FROM submissions;")
		gormDB.Exec("DELETE FROM processing_log_entries;")
	})

	It("stores a message once even when delivered twice", func() {
		dispatcher := &recordingDispatcher{}
		srv := service.NewIngestService(store, service.WithDispatcher(dispatcher))
		form := mappers.IngestForm{
			ExternalMessageID: "M1",
			SupplierRef:       "+15550001111",
			ContentType:       "image",
			MediaLocator:      ptr("media/M1.jpg"),
		}

		first, err := srv.Ingest(context.TODO(), form)
		Expect(err).To(BeNil())
		Expect(first.SupplierID).To(Equal(supplierID))
		Expect(first.TemplateID).To(Equal("T1"))
		Expect(first.ProcessingStatus).To(Equal(model.ProcessingStatusPending))

		second, err := srv.Ingest(context.TODO(), form)
		Expect(err).To(BeNil())
		Expect(second.ID).To(Equal(first.ID))

		count, err := store.Submission().Count(context.TODO(), st.NewSubmissionQueryFilter())
		Expect(err).To(BeNil())
		Expect(count).To(Equal(int64(1)))
		Expect(dispatcher.ids).To(ConsistOf(Equal(first.ID)))

		entries, err := store.ProcessingLog().List(context.TODO(), st.NewLogQueryFilter().BySubmissionID(first.ID))
		Expect(err).To(BeNil())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Stage).To(Equal(model.StageWebhook))
	})

	It("splits a multi product message into sibling submissions", func() {
		srv := service.NewIngestService(store)
		result, err := srv.IngestMessage(context.TODO(), mappers.IngestForm{
			ExternalMessageID: "M2",
			SupplierRef:       supplierID.String(),
			Items: []mappers.IngestItem{
				{ContentType: "text", RawContent: "lamp, 25 EUR"},
				{ContentType: "pdf", MediaLocator: ptr("s3://intake/sheet.pdf")},
			},
		})
		Expect(err).To(BeNil())
		Expect(result.Duplicate).To(BeFalse())
		Expect(result.Submissions).To(HaveLen(2))
		for i, s := range result.Submissions {
			Expect(s.GroupID).To(Equal(result.GroupID))
			Expect(s.SourceMessageID).To(Equal("M2"))
			Expect(s.ItemIndex).To(Equal(i))
		}
		Expect(result.Submissions[0].ExternalMessageID).NotTo(Equal(result.Submissions[1].ExternalMessageID))

		again, err := srv.IngestMessage(context.TODO(), mappers.IngestForm{ExternalMessageID: "M2", SupplierRef: supplierID.String()})
		Expect(err).To(BeNil())
		Expect(again.Duplicate).To(BeTrue())
		Expect(again.GroupID).To(Equal(result.GroupID))
		Expect(again.Submissions).To(HaveLen(2))
	})

	DescribeTable("refuses invalid messages",
		func(form mappers.IngestForm, expected any) {
			_, err := service.NewIngestService(store).IngestMessage(context.TODO(), form)
			Expect(err).NotTo(BeNil())
			Expect(err).To(BeAssignableToTypeOf(expected))
		},
		Entry("unknown supplier", mappers.IngestForm{ExternalMessageID: "X1", SupplierRef: "+15559999999", ContentType: "text", RawContent: "x"},
			&service.ErrResourceNotFound{}),
		Entry("unknown content type", mappers.IngestForm{ExternalMessageID: "X2", SupplierRef: "+15550001111", ContentType: "video", RawContent: "x"},
			&service.ErrInvalidInput{}),
		Entry("text without content", mappers.IngestForm{ExternalMessageID: "X3", SupplierRef: "+15550001111", ContentType: "text"},
			&service.ErrInvalidInput{}),
		Entry("unknown template", mappers.IngestForm{ExternalMessageID: "X4", SupplierRef: "+15550001111", TemplateID: "T404", ContentType: "text", RawContent: "x"},
			&service.ErrResourceNotFound{}),
	)
})
