package bill

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validForm() Form {
	return Form{
		Type:       "Transports",
		Name:       "Vol Paris Londres",
		Date:       "2022-03-01",
		Amount:     "348",
		VAT:        "70",
		Pct:        "20",
		Commentary: "Ceci est un commentaire",
	}
}

var _ = Describe("NewBill", func() {
	var (
		store   *mockStore
		session *mockSession
		rec     *recorder
		newBill *NewBill
	)

	BeforeEach(func() {
		store = newMockStore()
		session = &mockSession{user: User{Type: UserEmployee, Email: "a@a"}}
		rec = &recorder{}
	})

	JustBeforeEach(func() {
		newBill = NewNewBill(store, session, rec)
	})

	It("starts idle with submit disabled", func() {
		Expect(newBill.State()).To(Equal(StateIdle))
		Expect(newBill.SubmitEnabled()).To(BeFalse())
		Expect(newBill.ErrorVisible()).To(BeFalse())
	})

	Describe("HandleChangeFile", func() {
		DescribeTable("accepts jpg, jpeg and png in any case",
			func(name, contentType string) {
				nb := NewNewBill(store, session, rec)
				Expect(nb.HandleChangeFile(File{Name: name, ContentType: contentType, Data: []byte("img")})).To(Succeed())
				Expect(nb.State()).To(Equal(StateFileSelected))
				Expect(nb.SubmitEnabled()).To(BeTrue())
				Expect(nb.ErrorVisible()).To(BeFalse())
				Expect(nb.ErrorMessage()).To(BeEmpty())
			},
			Entry("jpg", "image.jpg", "image/jpg"),
			Entry("jpeg", "image.jpeg", "image/jpeg"),
			Entry("png", "image.png", "image/png"),
			Entry("upper case", "IMAGE.JPG", "image/jpeg"),
			Entry("mixed case", "scan.Png", ""),
			Entry("browser fake path", `C:\fakepath\note.jpeg`, "image/jpeg"),
			Entry("no extension, image mime type", "camera-upload", "image/png"),
		)

		DescribeTable("rejects other files",
			func(name, contentType string) {
				nb := NewNewBill(store, session, rec)
				err := nb.HandleChangeFile(File{Name: name, ContentType: contentType, Data: []byte("doc")})
				var verr *ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Message).To(Equal("Fichier incorrect. JPEG, JPG ou PNG uniquement."))
				Expect(nb.State()).To(Equal(StateFileRejected))
				Expect(nb.SubmitEnabled()).To(BeFalse())
				Expect(nb.ErrorVisible()).To(BeTrue())
				Expect(nb.ErrorMessage()).To(Equal("Fichier incorrect. JPEG, JPG ou PNG uniquement."))
				Expect(nb.SelectedFile()).To(BeNil())
			},
			Entry("pdf", "document.pdf", "application/pdf"),
			Entry("gif", "anim.gif", "image/gif"),
			Entry("png mime type but pdf extension", "document.pdf", "image/png"),
			Entry("jpg in the middle of the name", "image.jpg.exe", "image/jpeg"),
			Entry("no extension, pdf mime type", "scan", "application/pdf"),
		)

		When("a valid file follows a rejected one", func() {
			JustBeforeEach(func() {
				_ = newBill.HandleChangeFile(File{Name: "document.pdf", ContentType: "application/pdf"})
				Expect(newBill.HandleChangeFile(File{Name: "image.jpg", ContentType: "image/jpg"})).To(Succeed())
			})

			It("should hide the error and enable submit", func() {
				Expect(newBill.State()).To(Equal(StateFileSelected))
				Expect(newBill.ErrorVisible()).To(BeFalse())
				Expect(newBill.SubmitEnabled()).To(BeTrue())
			})
		})

		When("the same valid file is picked twice", func() {
			It("should stay in the same state", func() {
				f := File{Name: "image.jpg", ContentType: "image/jpg", Data: []byte("a")}
				Expect(newBill.HandleChangeFile(f)).To(Succeed())
				state, visible := newBill.State(), newBill.ErrorVisible()
				Expect(newBill.HandleChangeFile(f)).To(Succeed())
				Expect(newBill.State()).To(Equal(state))
				Expect(newBill.ErrorVisible()).To(Equal(visible))
				Expect(newBill.SelectedFile().Name).To(Equal("image.jpg"))
			})
		})

		It("should never call the store", func() {
			_ = newBill.HandleChangeFile(File{Name: "document.pdf"})
			_ = newBill.HandleChangeFile(File{Name: "image.png"})
			Expect(store.callCount()).To(BeZero())
		})
	})

	Describe("HandleSubmit", func() {
		var (
			form    Form
			created *Bill
			err     error
		)

		BeforeEach(func() {
			form = validForm()
		})

		When("a valid file is selected", func() {
			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.jpg", ContentType: "image/jpg", Data: []byte("jpg")})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should upload before creating", func() {
				Expect(store.calls).To(Equal([]string{"upload", "create"}))
			})

			It("should create exactly one bill", func() {
				Expect(store.createCalls).To(HaveLen(1))
			})

			It("should fill the bill from the form and session", func() {
				b := store.createCalls[0]
				Expect(b.Email).To(Equal("a@a"))
				Expect(b.Type).To(Equal("Transports"))
				Expect(b.Name).To(Equal("Vol Paris Londres"))
				Expect(b.Amount).To(Equal(348.0))
				Expect(b.Date).To(Equal("2022-03-01"))
				Expect(b.VAT).To(Equal("70"))
				Expect(b.Pct).To(Equal(20))
				Expect(b.Commentary).To(Equal("Ceci est un commentaire"))
				Expect(b.Status).To(Equal(StatusPending))
			})

			It("should attach the uploaded file", func() {
				b := store.createCalls[0]
				Expect(b.ID).To(Equal("key-1234"))
				Expect(b.FileURL).To(Equal("https://test.storage.tld/image.jpg"))
				Expect(b.FileName).To(Equal("image.jpg"))
			})

			It("should upload the selected file", func() {
				Expect(store.uploads).To(HaveLen(1))
				Expect(store.uploads[0].Data).To(Equal([]byte("jpg")))
			})

			It("should return the created bill", func() {
				Expect(created).To(BeIdenticalTo(store.createCalls[0]))
			})

			It("should navigate to the bill list", func() {
				Expect(rec.routes).To(Equal([]Route{RouteBills}))
			})

			It("should end in Submitted", func() {
				Expect(newBill.State()).To(Equal(StateSubmitted))
			})

			It("should refuse a second submission", func() {
				_, again := newBill.HandleSubmit(context.Background(), form)
				var serr *StateError
				Expect(errors.As(again, &serr)).To(BeTrue())
				Expect(store.createCalls).To(HaveLen(1))
			})
		})

		When("no file is selected", func() {
			JustBeforeEach(func() {
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a StateError", func() {
				var serr *StateError
				Expect(errors.As(err, &serr)).To(BeTrue())
			})

			It("should not call the store", func() {
				Expect(store.callCount()).To(BeZero())
			})
		})

		When("the file was rejected", func() {
			JustBeforeEach(func() {
				_ = newBill.HandleChangeFile(File{Name: "document.pdf", ContentType: "application/pdf"})
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a StateError", func() {
				var serr *StateError
				Expect(errors.As(err, &serr)).To(BeTrue())
			})

			It("should not call the store", func() {
				Expect(store.callCount()).To(BeZero())
			})
		})

		When("the form is missing a name", func() {
			BeforeEach(func() {
				form.Name = "  "
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a ValidationError", func() {
				var verr *ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Field).To(Equal("name"))
			})

			It("should not call the store", func() {
				Expect(store.callCount()).To(BeZero())
			})

			It("should go back to FileSelected", func() {
				Expect(newBill.State()).To(Equal(StateFileSelected))
				Expect(newBill.SubmitEnabled()).To(BeTrue())
			})
		})

		When("the amount is not a number", func() {
			BeforeEach(func() {
				form.Amount = "beaucoup"
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				_, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a ValidationError", func() {
				var verr *ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Field).To(Equal("amount"))
			})
		})

		When("the amount is too large", func() {
			BeforeEach(func() {
				form.Amount = "1e400"
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a ValidationError on the amount", func() {
				var verr *ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Field).To(Equal("amount"))
				Expect(created).To(BeNil())
			})

			It("should not call the store", func() {
				Expect(store.callCount()).To(BeZero())
			})

			It("should go back to FileSelected", func() {
				Expect(newBill.State()).To(Equal(StateFileSelected))
			})
		})

		When("the percentage has a fraction", func() {
			BeforeEach(func() {
				form.Pct = "12.5"
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a ValidationError on the percentage", func() {
				var verr *ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Field).To(Equal("pct"))
			})

			It("should not call the store", func() {
				Expect(store.callCount()).To(BeZero())
			})
		})

		When("the session has no email", func() {
			BeforeEach(func() {
				session.user = User{Type: UserEmployee}
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				_, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a StateError", func() {
				var serr *StateError
				Expect(errors.As(err, &serr)).To(BeTrue())
			})

			It("should not call the store", func() {
				Expect(store.callCount()).To(BeZero())
			})
		})

		When("the upload fails", func() {
			BeforeEach(func() {
				store.uploadErr = &NetworkError{Message: "Erreur 500"}
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns the NetworkError", func() {
				Expect(err).To(MatchError("Erreur 500"))
			})

			It("should not create the bill", func() {
				Expect(store.createCalls).To(BeEmpty())
			})

			It("should end in SubmitFailed with submit still enabled", func() {
				Expect(newBill.State()).To(Equal(StateSubmitFailed))
				Expect(newBill.SubmitEnabled()).To(BeTrue())
			})

			It("should not navigate", func() {
				Expect(rec.routes).To(BeEmpty())
			})
		})

		When("the create call fails", func() {
			BeforeEach(func() {
				store.createErr = &NetworkError{Message: "Erreur 404"}
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns a NetworkError with the store message", func() {
				var nerr *NetworkError
				Expect(errors.As(err, &nerr)).To(BeTrue())
				Expect(nerr.Message).To(Equal("Erreur 404"))
			})

			It("should end in SubmitFailed", func() {
				Expect(newBill.State()).To(Equal(StateSubmitFailed))
			})

			It("can be retried", func() {
				store.createErr = nil
				_, retryErr := newBill.HandleSubmit(context.Background(), form)
				Expect(retryErr).NotTo(HaveOccurred())
				Expect(newBill.State()).To(Equal(StateSubmitted))
			})
		})

		When("the create call fails before reaching the API", func() {
			BeforeEach(func() {
				store.createErr = errors.New("json: unsupported value: +Inf")
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns the error without presenting it as a NetworkError", func() {
				var nerr *NetworkError
				Expect(errors.As(err, &nerr)).To(BeFalse())
				Expect(err).To(MatchError(ContainSubstring("creating bill")))
				Expect(err).To(MatchError(store.createErr))
			})

			It("should end in SubmitFailed", func() {
				Expect(newBill.State()).To(Equal(StateSubmitFailed))
			})
		})

		When("the upload fails before reaching the API", func() {
			BeforeEach(func() {
				store.uploadErr = errors.New("writing file part: short write")
			})

			JustBeforeEach(func() {
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())
				created, err = newBill.HandleSubmit(context.Background(), form)
			})

			It("returns the error without presenting it as a NetworkError", func() {
				var nerr *NetworkError
				Expect(errors.As(err, &nerr)).To(BeFalse())
				Expect(err).To(MatchError(ContainSubstring("uploading receipt")))
			})

			It("should not create the bill", func() {
				Expect(store.createCalls).To(BeEmpty())
			})
		})

		When("a submission is already running", func() {
			It("rejects the overlapping submission", func() {
				store.uploadGate = make(chan struct{})
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())

				done := make(chan error, 1)
				go func() {
					defer GinkgoRecover()
					_, err := newBill.HandleSubmit(context.Background(), validForm())
					done <- err
				}()

				Eventually(newBill.State).Should(Equal(StateSubmitting))
				Expect(newBill.SubmitEnabled()).To(BeFalse())

				_, err := newBill.HandleSubmit(context.Background(), validForm())
				var serr *StateError
				Expect(errors.As(err, &serr)).To(BeTrue())
				Expect(newBill.HandleChangeFile(File{Name: "other.png"})).NotTo(Succeed())

				close(store.uploadGate)
				var submitErr error
				Eventually(done).Should(Receive(&submitErr))
				Expect(submitErr).NotTo(HaveOccurred())
				Expect(store.createCalls).To(HaveLen(1))
			})
		})

		When("the context is cancelled during upload", func() {
			It("ends in SubmitFailed without creating", func() {
				store.uploadGate = make(chan struct{})
				Expect(newBill.HandleChangeFile(File{Name: "image.png"})).To(Succeed())

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
				defer cancel()
				_, err := newBill.HandleSubmit(ctx, validForm())
				Expect(err).To(MatchError(context.DeadlineExceeded))
				Expect(newBill.State()).To(Equal(StateSubmitFailed))
				Expect(store.createCalls).To(BeEmpty())
			})
		})
	})

	Describe("Reset", func() {
		It("returns to Idle", func() {
			_ = newBill.HandleChangeFile(File{Name: "document.pdf"})
			Expect(newBill.Reset()).To(Succeed())
			Expect(newBill.State()).To(Equal(StateIdle))
			Expect(newBill.ErrorVisible()).To(BeFalse())
		})
	})
})
