package validate_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsrv/pkg/embeddings"
	"github.com/papercomputeco/embedsrv/pkg/validate"
)

var _ = Describe("Text", func() {
	It("accepts ordinary text", func() {
		Expect(validate.Text("The quick brown fox jumps over the lazy dog")).To(Succeed())
	})

	It("accepts exactly 512 characters", func() {
		Expect(validate.Text(strings.Repeat("a", 512))).To(Succeed())
	})

	It("measures length in characters, not bytes", func() {
		// 512 three-byte runes
		Expect(validate.Text(strings.Repeat("語", 512))).To(Succeed())
	})

	DescribeTable("rejects empty input",
		func(text string) {
			err := validate.Text(text)
			Expect(errors.Is(err, embeddings.ErrEmptyText)).To(BeTrue())
			Expect(embeddings.IsValidation(err)).To(BeTrue())
		},
		Entry("empty", ""),
		Entry("spaces", "   "),
		Entry("mixed whitespace", "\t\n \r"),
	)

	It("rejects 513 characters", func() {
		err := validate.Text(strings.Repeat("a", 513))
		Expect(errors.Is(err, embeddings.ErrTextTooLong)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("too long"))
	})

	It("counts surrounding whitespace towards the limit", func() {
		err := validate.Text(" " + strings.Repeat("a", 512))
		Expect(errors.Is(err, embeddings.ErrTextTooLong)).To(BeTrue())
	})
})

var _ = Describe("ContentType", func() {
	DescribeTable("accepts supported types",
		func(ct string) {
			Expect(validate.ContentType(ct)).To(Succeed())
		},
		Entry("jpeg", "image/jpeg"),
		Entry("png", "image/png"),
		Entry("webp", "image/webp"),
		Entry("with parameters", "image/png; name=cat.png"),
		Entry("upper case", "IMAGE/JPEG"),
	)

	DescribeTable("rejects everything else",
		func(ct string) {
			Expect(validate.ContentType(ct)).To(MatchError(embeddings.ErrUnsupportedFormat))
		},
		Entry("gif", "image/gif"),
		Entry("text", "text/plain"),
		Entry("octet stream", "application/octet-stream"),
		Entry("empty", ""),
	)
})

var _ = Describe("Size", func() {
	It("accepts the limit itself", func() {
		Expect(validate.Size(validate.MaxImageBytes)).To(Succeed())
	})

	It("rejects one byte over", func() {
		err := validate.Size(validate.MaxImageBytes + 1)
		Expect(err).To(MatchError(embeddings.ErrPayloadTooLarge))
		Expect(err.Error()).To(ContainSubstring("too large"))
	})
})
