package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validator", func() {
	var (
		validator *Validator
		mimeType  string
		size      int64
		err       error
	)

	BeforeEach(func() {
		validator = NewValidator(0)
		mimeType = "image/jpeg"
		size = 1024
	})

	JustBeforeEach(func() {
		err = validator.Validate(mimeType, size)
	})

	When("the upload is a small JPEG", func() {
		It("should accept it", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the media type is outside the allow-list", func() {
		BeforeEach(func() {
			mimeType = "video/mp4"
		})

		It("should reject it as unsupported", func() {
			Expect(err).To(MatchError(ErrUnsupportedType))
		})
	})

	When("the media type is empty", func() {
		BeforeEach(func() {
			mimeType = ""
		})

		It("should reject it as unsupported", func() {
			Expect(err).To(MatchError(ErrUnsupportedType))
		})
	})

	When("the media type carries parameters and odd casing", func() {
		BeforeEach(func() {
			mimeType = "Application/PDF; charset=binary"
		})

		It("should still accept it", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the declared size exceeds the default ceiling", func() {
		BeforeEach(func() {
			size = DefaultMaxFileSize + 1
		})

		It("should reject it as too large regardless of type", func() {
			Expect(err).To(MatchError(ErrTooLarge))
		})
	})

	When("the size is exactly the ceiling", func() {
		BeforeEach(func() {
			size = DefaultMaxFileSize
		})

		It("should accept it", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("a custom ceiling is configured", func() {
		BeforeEach(func() {
			validator = NewValidator(100)
			size = 101
		})

		It("should enforce the custom ceiling", func() {
			Expect(err).To(MatchError(ErrTooLarge))
		})
	})

	When("an unsupported type is also too large", func() {
		BeforeEach(func() {
			mimeType = "video/mp4"
			size = DefaultMaxFileSize + 1
		})

		It("should report the type problem first", func() {
			Expect(err).To(MatchError(ErrUnsupportedType))
		})
	})
})
