package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/embedsrv/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("Step", func() {
		It("ends the line with a check mark on success", func() {
			var buf bytes.Buffer
			err := cliui.Step(&buf, "embedding", func() error { return nil })
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(HaveSuffix("\n"))
			Expect(buf.String()).To(ContainSubstring("✓"))
			Expect(buf.String()).To(ContainSubstring("embedding"))
		})

		It("returns the error and marks the step failed", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")
			err := cliui.Step(&buf, "indexing", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("✗"))
		})

		It("writes only the result line when not on a terminal", func() {
			var buf bytes.Buffer
			Expect(cliui.Step(&buf, "embedding", func() error {
				time.Sleep(200 * time.Millisecond)
				return nil
			})).To(Succeed())
			Expect(buf.String()).NotTo(ContainSubstring("⣾"))
			Expect(bytes.Count(buf.Bytes(), []byte("embedding"))).To(Equal(1))
		})
	})

	Describe("IsTerminal", func() {
		It("is false for buffers", func() {
			Expect(cliui.IsTerminal(&bytes.Buffer{})).To(BeFalse())
		})
	})

	Describe("Rows", func() {
		It("pads keys to the widest one", func() {
			var buf bytes.Buffer
			cliui.Rows(&buf, [][2]string{{"device", "cpu"}, {"text model", "all-minilm"}})
			Expect(buf.String()).To(ContainSubstring("device    "))
			Expect(buf.String()).To(ContainSubstring("all-minilm"))
			Expect(bytes.Count(buf.Bytes(), []byte("\n"))).To(Equal(2))
		})
	})

	Describe("FormatDuration", func() {
		It("uses milliseconds under a second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses one decimal of seconds otherwise", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})
})
