package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	st "github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

const templatesYAML = `
- id: T1
  name: Power tools
  instructions: Extract the tool from the catalog page.
  contentTypes: [text, image]
  expectedFields:
    - name: name
      required: true
    - name: price
      type: number
      required: true
  examples:
    - "Bosch drill 18V, 129 EUR"
- id: T2
  expectedFields: []
`

var _ = Describe("template service", Ordered, func() {
	var (
		store st.Store
		srv   *service.TemplateService
	)

	BeforeAll(func() {
		store, _ = newTestStore("template")
		srv = service.NewTemplateService(store)
	})

	AfterAll(func() {
		store.Close()
	})

	It("loads templates from yaml", func() {
		loaded, err := srv.LoadTemplates(context.TODO(), []byte(templatesYAML))
		Expect(err).To(BeNil())
		Expect(loaded).To(HaveLen(2))

		t1, err := srv.GetTemplate(context.TODO(), "T1")
		Expect(err).To(BeNil())
		Expect(t1.Name).To(Equal("Power tools"))
		Expect([]model.ContentType(t1.ContentTypes)).To(Equal([]model.ContentType{model.ContentTypeText, model.ContentTypeImage}))
		Expect(t1.ExpectedFields).To(HaveLen(2))
		Expect(t1.ExpectedFields[0].Type).To(Equal(model.FieldTypeString))
		Expect(t1.ExpectedFields[1].Type).To(Equal(model.FieldTypeNumber))
		Expect(t1.Supports(model.ContentTypeImage)).To(BeTrue())
		Expect(t1.Supports(model.ContentTypeVoice)).To(BeFalse())
		Expect(t1.Version).To(Equal(1))

		t2, err := srv.GetTemplate(context.TODO(), "T2")
		Expect(err).To(BeNil())
		Expect(t2.Name).To(Equal("T2"))
		Expect(t2.Active).To(BeTrue())
	})

	It("reloading keeps a single copy of each template", func() {
		_, err := srv.LoadTemplates(context.TODO(), []byte(templatesYAML))
		Expect(err).To(BeNil())

		all, err := srv.ListTemplates(context.TODO(), false)
		Expect(err).To(BeNil())
		Expect(all).To(HaveLen(2))
	})

	It("returns not found for an unknown template", func() {
		_, err := srv.GetTemplate(context.TODO(), "T9")
		Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
	})

	DescribeTable("rejects invalid documents without storing anything",
		func(doc string) {
			_, err := srv.LoadTemplates(context.TODO(), []byte(doc))
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInput{}))

			_, err = srv.GetTemplate(context.TODO(), "T3")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		},
		Entry("not yaml", "- id: [T3"),
		Entry("invalid id", "- id: \"bad id!\""),
		Entry("unknown content type", "- id: T3\n  contentTypes: [fax]"),
		Entry("unknown field type", "- id: T3\n  expectedFields:\n    - name: price\n      type: money"),
		Entry("duplicate field", "- id: T3\n  expectedFields:\n    - name: price\n    - name: price"),
		Entry("unnamed field", "- id: T3\n  expectedFields:\n    - type: number"),
		Entry("valid then invalid", "- id: T3\n- id: \"\""),
	)
})
