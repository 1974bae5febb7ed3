package billing

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billed/internal/bill"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	record := func(id, email string) *Record {
		return &Record{
			Bill: bill.Bill{
				ID:       id,
				Type:     "Transports",
				Name:     "Vol Paris Londres",
				Date:     "2022-03-01",
				Amount:   348,
				VAT:      "70",
				Pct:      20,
				FileURL:  "http://billed.test/api/bills/files/" + id,
				FileName: "facture.jpg",
				Status:   bill.StatusPending,
				Email:    email,
			},
			CreatedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		}
	}

	Describe("SaveBill and GetBill", func() {
		BeforeEach(func() {
			Expect(db.SaveBill(record("bill-1", "a@a"))).To(Succeed())
		})

		It("should return the saved bill", func() {
			saved, err := db.GetBill("bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(record("bill-1", "a@a")))
		})

		It("should overwrite on save", func() {
			updated := record("bill-1", "a@a")
			updated.Status = bill.StatusAccepted
			Expect(db.SaveBill(updated)).To(Succeed())
			saved, err := db.GetBill("bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Status).To(Equal(bill.StatusAccepted))
		})

		It("returns ErrNotFound for unknown bills", func() {
			_, err := db.GetBill("nonexistent")
			Expect(err).To(MatchError(ErrNotFound))
			Expect(err).To(MatchError("bill not found: nonexistent"))
		})
	})

	Describe("ListBills", func() {
		When("bills exist", func() {
			BeforeEach(func() {
				Expect(db.SaveBill(record("b", "a@a"))).To(Succeed())
				Expect(db.SaveBill(record("a", "b@b"))).To(Succeed())
			})

			It("should return them in key order", func() {
				records, err := db.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(records).To(HaveLen(2))
				Expect(records[0].ID).To(Equal("a"))
				Expect(records[1].ID).To(Equal("b"))
			})
		})

		When("no bills exist", func() {
			It("should return an empty slice", func() {
				records, err := db.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(records).NotTo(BeNil())
				Expect(records).To(BeEmpty())
			})
		})
	})

	Describe("DeleteBill", func() {
		It("should remove the bill", func() {
			Expect(db.SaveBill(record("bill-1", "a@a"))).To(Succeed())
			Expect(db.DeleteBill("bill-1")).To(Succeed())
			_, err := db.GetBill("bill-1")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("receipts", func() {
		var receipt *ReceiptFile

		BeforeEach(func() {
			receipt = &ReceiptFile{
				Key:         "key-1",
				Filename:    "key-1_facture.jpg",
				Original:    "facture.jpg",
				ContentType: "image/jpeg",
				Email:       "a@a",
				CreatedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveReceipt(receipt)).To(Succeed())
		})

		It("should return the saved receipt", func() {
			Expect(db.GetReceipt("key-1")).To(Equal(receipt))
		})

		It("should delete it", func() {
			Expect(db.DeleteReceipt("key-1")).To(Succeed())
			_, err := db.GetReceipt("key-1")
			Expect(err).To(MatchError("receipt not found: key-1"))
		})
	})

	Describe("reopening", func() {
		It("should keep data across restarts", func() {
			Expect(db.SaveBill(record("bill-1", "a@a"))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.GetBill("bill-1")).To(Equal(record("bill-1", "a@a")))
		})
	})
})
