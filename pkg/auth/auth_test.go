package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/auth"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

var _ = Describe("ParseBearer", func() {
	It("extracts the token", func() {
		token, err := auth.ParseBearer("Bearer abc.def")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("abc.def"))
	})

	It("matches the scheme case-insensitively", func() {
		token, err := auth.ParseBearer("bearer abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("abc"))
	})

	DescribeTable("rejects unusable headers as unauthenticated",
		func(header string) {
			_, err := auth.ParseBearer(header)
			Expect(llm.KindOf(err)).To(Equal(llm.KindUnauthenticated))
		},
		Entry("absent", ""),
		Entry("whitespace", "   "),
		Entry("no token", "Bearer"),
		Entry("blank token", "Bearer    "),
		Entry("basic scheme", "Basic dXNlcjpwYXNz"),
	)
})

var _ = Describe("SupabaseValidator", func() {
	var (
		server    *httptest.Server
		calls     atomic.Int32
		validator *auth.SupabaseValidator
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls.Store(0)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon-key" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			switch r.Header.Get("Authorization") {
			case "Bearer good-token":
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"user-1","email":"one@example.com","role":"authenticated"}`))
			case "Bearer no-id":
				w.Write([]byte(`{"email":"ghost@example.com"}`))
			default:
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"msg":"invalid JWT"}`))
			}
		}))

		validator = auth.NewSupabaseValidator(auth.SupabaseConfig{
			URL:     server.URL + "/",
			AnonKey: "anon-key",
		}, zap.NewNop())
	})

	AfterEach(func() {
		server.Close()
	})

	It("resolves a live token to its principal", func() {
		p, err := validator.Validate(ctx, "Bearer good-token")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(&auth.Principal{ID: "user-1", Email: "one@example.com"}))
		Expect(calls.Load()).To(BeEquivalentTo(1))
	})

	It("rejects a token the identity service refuses", func() {
		_, err := validator.Validate(ctx, "Bearer expired-token")
		Expect(llm.KindOf(err)).To(Equal(llm.KindUnauthenticated))
		Expect(llm.PublicMessage(err)).To(Equal("not authenticated"))
	})

	It("rejects a user record without an id", func() {
		_, err := validator.Validate(ctx, "Bearer no-id")
		Expect(llm.KindOf(err)).To(Equal(llm.KindUnauthenticated))
	})

	It("does not call the identity service without a header", func() {
		_, err := validator.Validate(ctx, "")
		Expect(llm.KindOf(err)).To(Equal(llm.KindUnauthenticated))
		Expect(calls.Load()).To(BeEquivalentTo(0))
	})

	It("treats an unreachable identity service as unauthenticated", func() {
		server.Close()

		_, err := validator.Validate(ctx, "Bearer good-token")
		Expect(llm.KindOf(err)).To(Equal(llm.KindUnauthenticated))
	})
})
