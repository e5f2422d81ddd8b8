package logger_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("NewLoggerWithWriters", func() {
		It("writes structured fields to the console encoder", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf)
			l.Info("hello", zap.String("key", "value"))

			output := buf.String()
			Expect(output).To(ContainSubstring("hello"))
			Expect(output).To(ContainSubstring(`"key": "value"`))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf)
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.NewLoggerWithWriters(true, &buf)
			l.Debug("debug msg")

			Expect(buf.String()).To(ContainSubstring("debug msg"))
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.NewLoggerWithWriters(false, &buf1, &buf2)
			l.Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("NewJSONLogger", func() {
		It("writes one JSON object per entry", func() {
			var buf bytes.Buffer
			l := logger.NewJSONLogger(false, &buf)
			l.Info("structured", zap.Int("count", 42))

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("structured"))
			Expect(parsed["level"]).To(Equal("info"))
			Expect(parsed["count"]).To(BeNumerically("==", 42))
			Expect(parsed).To(HaveKey("time"))
		})
	})

	Describe("Multi", func() {
		It("sends every entry to each logger", func() {
			var console, file bytes.Buffer
			l := logger.Multi(
				logger.NewLoggerWithWriters(false, &console),
				logger.NewJSONLogger(false, &file),
			)
			l.Info("started", zap.String("listen", ":8000"))

			Expect(console.String()).To(ContainSubstring("started"))

			var parsed map[string]any
			Expect(json.Unmarshal([]byte(strings.TrimSpace(file.String())), &parsed)).To(Succeed())
			Expect(parsed["listen"]).To(Equal(":8000"))
		})

		It("keeps each logger's own level", func() {
			var quiet, verbose bytes.Buffer
			l := logger.Multi(
				logger.NewLoggerWithWriters(false, &quiet),
				logger.NewLoggerWithWriters(true, &verbose),
			)
			l.Debug("detail")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("detail"))
		})
	})

	Describe("NewPretty", func() {
		It("prints key value pairs", func() {
			var buf bytes.Buffer
			l := logger.NewPretty(&buf, false)
			l.Info("indexed", "id", "abc")

			Expect(buf.String()).To(ContainSubstring("indexed"))
			Expect(buf.String()).To(ContainSubstring("id=abc"))
		})

		It("hides debug output unless enabled", func() {
			var buf bytes.Buffer
			logger.NewPretty(&buf, false).Debug("hidden")
			Expect(buf.String()).To(BeEmpty())

			logger.NewPretty(&buf, true).Debug("shown")
			Expect(buf.String()).To(ContainSubstring("shown"))
		})
	})
})
