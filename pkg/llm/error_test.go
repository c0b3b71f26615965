package llm_test

import (
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

var _ = Describe("Error", func() {
	DescribeTable("maps each kind to one status",
		func(err error, status int) {
			Expect(llm.StatusCode(err)).To(Equal(status))
		},
		Entry("unauthenticated", llm.Unauthenticated(nil), http.StatusUnauthorized),
		Entry("malformed input", llm.MalformedInput("bad", nil), http.StatusBadRequest),
		Entry("upstream unavailable", llm.UpstreamUnavailable(nil), http.StatusInternalServerError),
		Entry("stream interrupted", llm.StreamInterrupted(nil), http.StatusBadGateway),
		Entry("unclassified", errors.New("boom"), http.StatusInternalServerError),
	)

	It("classifies by kind, not by message text", func() {
		err := llm.UpstreamUnavailable(errors.New("invalid auth header for provider"))
		Expect(llm.StatusCode(err)).To(Equal(http.StatusInternalServerError))
	})

	It("finds the kind through wrapping", func() {
		err := fmt.Errorf("opening stream: %w", llm.Unauthenticated(nil))
		Expect(llm.KindOf(err)).To(Equal(llm.KindUnauthenticated))
		Expect(llm.StatusCode(err)).To(Equal(http.StatusUnauthorized))
	})

	It("keeps the cause out of the public message", func() {
		cause := errors.New("token signature mismatch")
		err := llm.Unauthenticated(cause)

		Expect(llm.PublicMessage(err)).To(Equal("not authenticated"))
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("token signature mismatch"))
	})

	It("hides unclassified error text", func() {
		Expect(llm.PublicMessage(errors.New("dial tcp 10.0.0.1:443"))).To(Equal("internal error"))
	})
})
