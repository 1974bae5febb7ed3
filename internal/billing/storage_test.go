package billing

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("should write the file and return its name", func() {
			path, err := storage.Save("key-1_facture.jpg", []byte("jpeg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("key-1_facture.jpg"))
			Expect(filepath.Join(tmpDir, "receipts", "key-1_facture.jpg")).To(BeAnExistingFile())
		})

		DescribeTable("refuses paths leaving the directory",
			func(name string) {
				_, err := storage.Save(name, []byte("x"))
				Expect(err).To(MatchError(ContainSubstring("invalid storage path")))
			},
			Entry("parent", "../escape.jpg"),
			Entry("nested", "dir/file.jpg"),
			Entry("dot dot", ".."),
			Entry("empty", ""),
		)
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("key-1_facture.jpg", []byte("jpeg"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return its content", func() {
				Expect(storage.Get("key-1_facture.jpg")).To(Equal([]byte("jpeg")))
			})
		})

		When("the file does not exist", func() {
			It("returns the error", func() {
				_, err := storage.Get("missing.jpg")
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save("key-1_facture.jpg", []byte("jpeg"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("key-1_facture.jpg")).To(Succeed())
			Expect(filepath.Join(tmpDir, "receipts", "key-1_facture.jpg")).NotTo(BeAnExistingFile())
		})

		It("returns an error for missing files", func() {
			Expect(storage.Delete("missing.jpg")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})
