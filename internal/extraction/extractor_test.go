package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// stubRunner is a stub implementation of Runner
type stubRunner struct {
	stdout []byte
	stderr []byte
	err    error

	gotName string
	gotArgs []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.gotName = name
	s.gotArgs = args
	return s.stdout, s.stderr, s.err
}

// stubBackend is a stub implementation of Backend
type stubBackend struct {
	text    string
	err     error
	gotPath string
	closed  bool
}

func (s *stubBackend) RecognizeImage(ctx context.Context, path string) (string, error) {
	s.gotPath = path
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.text, s.err
}

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

var _ = Describe("DetectKind", func() {
	It("should classify PDFs as paginated", func() {
		Expect(DetectKind("/tmp/receipt.pdf")).To(Equal(KindPaginated))
		Expect(DetectKind("/tmp/RECEIPT.PDF")).To(Equal(KindPaginated))
	})

	It("should classify everything else as an image", func() {
		Expect(DetectKind("/tmp/receipt.jpg")).To(Equal(KindImage))
		Expect(DetectKind("/tmp/receipt.png")).To(Equal(KindImage))
		Expect(DetectKind("/tmp/receipt.heic")).To(Equal(KindImage))
		Expect(DetectKind("/tmp/noext")).To(Equal(KindImage))
	})
})

var _ = Describe("Tesseract", func() {
	var (
		runner *stubRunner
		tess   *Tesseract
		text   string
		err    error
	)

	BeforeEach(func() {
		runner = &stubRunner{stdout: []byte("Сумма: 100,00\n")}
	})

	JustBeforeEach(func() {
		text, err = tess.RecognizeImage(context.Background(), "/tmp/receipt.jpg")
	})

	When("using defaults", func() {
		BeforeEach(func() {
			tess = newTesseractWithRunner("", "", "", runner)
		})

		It("should return the command output", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Сумма: 100,00\n"))
		})

		It("should invoke tesseract with the mixed-script language hint", func() {
			Expect(runner.gotName).To(Equal("tesseract"))
			Expect(runner.gotArgs).To(Equal([]string{"/tmp/receipt.jpg", "stdout", "-l", "rus+eng"}))
		})
	})

	When("a tessdata dir is configured", func() {
		BeforeEach(func() {
			tess = newTesseractWithRunner("tesseract", "rus+eng", "/opt/tessdata", runner)
		})

		It("should pass it through", func() {
			Expect(runner.gotArgs).To(ContainElements("--tessdata-dir", "/opt/tessdata"))
		})
	})

	When("the binary fails", func() {
		BeforeEach(func() {
			runner.err = errors.New("exit status 1")
			tess = newTesseractWithRunner("", "", "", runner)
		})

		It("should return the error", func() {
			Expect(err).To(MatchError(ContainSubstring("tesseract")))
		})
	})
})

var _ = Describe("Extractor", func() {
	var (
		backend   *stubBackend
		extractor *Extractor
		imagePath string
		text      string
		err       error
	)

	BeforeEach(func() {
		backend = &stubBackend{text: "Сумма: 100,00"}
		extractor = NewExtractor(backend, time.Minute)

		imagePath = filepath.Join(GinkgoT().TempDir(), "receipt.jpg")
		Expect(os.WriteFile(imagePath, []byte("fake image"), 0644)).To(Succeed())
	})

	JustBeforeEach(func() {
		text, err = extractor.ExtractText(context.Background(), imagePath)
	})

	When("the backend recognizes text", func() {
		It("should return it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Сумма: 100,00"))
		})

		It("should pass the image path through untouched", func() {
			Expect(backend.gotPath).To(Equal(imagePath))
		})
	})

	When("the backend fails", func() {
		BeforeEach(func() {
			backend.err = errors.New("boom")
		})

		It("should wrap the cause in an extraction error", func() {
			var exErr *Error
			Expect(errors.As(err, &exErr)).To(BeTrue())
			Expect(exErr.Cause).To(MatchError("boom"))
		})
	})

	When("the backend produces only whitespace", func() {
		BeforeEach(func() {
			backend.text = " \n\t "
		})

		It("should fail with ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the timeout has already expired", func() {
		BeforeEach(func() {
			extractor = NewExtractor(backend, time.Nanosecond)
		})

		It("should surface the deadline as an extraction error", func() {
			var exErr *Error
			Expect(errors.As(err, &exErr)).To(BeTrue())
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})

	Describe("Close", func() {
		It("should close the backend", func() {
			Expect(extractor.Close()).To(Succeed())
			Expect(backend.closed).To(BeTrue())
		})
	})
})
