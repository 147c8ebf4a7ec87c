package store_test

import (
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/autumndb/autumndb/cmn"
	"github.com/autumndb/autumndb/store"
)

var _ = Describe("Collection", func() {
	var (
		dir string
		reg *store.Registry
		col *store.Collection
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "autumndb-store-")
		Expect(err).NotTo(HaveOccurred())
		reg = store.NewRegistry(dir)
		col, err = reg.CreateCollection("users")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("pairs data and metadata files on create", func() {
		Expect(col.CreateDocument("doc-1", []byte(`{"a":1}`), "")).To(Succeed())

		payload, err := col.ReadDocument("doc-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(Equal(`{"a":1}`))

		ts, err := col.GetUpdatedAt("doc-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ts).NotTo(BeEmpty())
	})

	It("rejects invalid JSON payloads", func() {
		err := col.CreateDocument("doc-1", []byte(`not json`), "")
		Expect(err).To(HaveOccurred())
		var ip *cmn.InvalidPayloadError
		Expect(err).To(BeAssignableToTypeOf(ip))
	})

	It("rejects update of a frozen document", func() {
		Expect(col.CreateDocument("doc-1", []byte(`{}`), "")).To(Succeed())
		Expect(col.SetFrozen("doc-1", true)).To(Succeed())

		err := col.UpdateDocument("doc-1", []byte(`{"x":1}`), "")
		Expect(cmn.IsFrozenConflict(err)).To(BeTrue())
	})

	It("keeps updated_at monotone across successive updates", func() {
		Expect(col.CreateDocument("doc-1", []byte(`{}`), "2024-01-01T00:00:00.000000Z")).To(Succeed())
		Expect(col.UpdateDocument("doc-1", []byte(`{"v":1}`), "2024-01-02T00:00:00.000000Z")).To(Succeed())

		ts, err := col.GetUpdatedAt("doc-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ts).To(Equal("2024-01-02T00:00:00.000000Z"))
	})

	It("deletes both files together", func() {
		Expect(col.CreateDocument("doc-1", []byte(`{}`), "")).To(Succeed())
		Expect(col.DeleteDocument("doc-1")).To(Succeed())
		Expect(col.DocExists("doc-1")).To(BeFalse())

		_, err := col.GetUpdatedAt("doc-1")
		Expect(cmn.IsNotFound(err)).To(BeTrue())
	})

	It("enumerates doc ids", func() {
		Expect(col.CreateDocument("doc-1", []byte(`{}`), "")).To(Succeed())
		Expect(col.CreateDocument("doc-2", []byte(`{}`), "")).To(Succeed())

		ids, err := col.DocIDs()
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(HaveKey("doc-1"))
		Expect(ids).To(HaveKey("doc-2"))
		Expect(ids).To(HaveLen(2))
	})

	It("rejects a second create at an existing id without adding a document", func() {
		Expect(col.CreateDocument("doc-1", []byte(`{}`), "")).To(Succeed())
		// Second create at the same id fails at the data-write step
		// (AlreadyExistsError), before any metadata write is attempted;
		// the collection still holds exactly one document.
		err := col.CreateDocument("doc-1", []byte(`{}`), "")
		Expect(cmn.IsAlreadyExists(err)).To(BeTrue())

		ids, err := col.DocIDs()
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(HaveLen(1))
	})
})

var _ = Describe("Registry", func() {
	var dir string
	var reg *store.Registry

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "autumndb-registry-")
		Expect(err).NotTo(HaveOccurred())
		reg = store.NewRegistry(dir)
	})

	AfterEach(func() { _ = os.RemoveAll(dir) })

	It("creates and destroys collections", func() {
		_, err := reg.CreateCollection("widgets")
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Names()).To(ContainElement("widgets"))

		Expect(reg.DeleteCollection("widgets")).To(Succeed())
		Expect(reg.Names()).NotTo(ContainElement("widgets"))
	})

	It("rejects collection names over the 255-byte cap", func() {
		long := make([]byte, 256)
		for i := range long {
			long[i] = 'a'
		}
		_, err := reg.CreateCollection(string(long))
		Expect(err).To(HaveOccurred())
	})
})
