package versioncmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	versioncmder "github.com/papercomputeco/embedsrv/cmd/embedsrv/version"
	"github.com/papercomputeco/embedsrv/pkg/utils"
)

var _ = Describe("NewVersionCmd", func() {
	It("prints the build version", func() {
		DeferCleanup(func(v, s, b string) {
			utils.Version, utils.Sha, utils.Buildtime = v, s, b
		}, utils.Version, utils.Sha, utils.Buildtime)
		utils.Version, utils.Sha, utils.Buildtime = "v1.2.3", "abc123", "2026-01-01"

		out := &bytes.Buffer{}
		cmd := versioncmder.NewVersionCmd()
		cmd.SetOut(out)
		cmd.SetArgs(nil)
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("embedsrv v1.2.3 (abc123, built 2026-01-01)\n"))
	})
})
