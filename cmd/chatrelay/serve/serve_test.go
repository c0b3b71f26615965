package servecmder

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

var _ = Describe("Serve Command", func() {
	env := func(vars map[string]string) config.LookupFunc {
		return func(key string) (string, bool) {
			v, ok := vars[key]
			return v, ok
		}
	}

	complete := map[string]string{
		"SUPABASE_URL":      "https://project.supabase.co",
		"SUPABASE_ANON_KEY": "anon",
		"OPENAI_API_KEY":    "sk-test",
	}

	It("refuses to start without credentials", func() {
		cmd := NewServeCmd()
		cmder := &serveCommander{}

		_, err := cmder.loadConfig(cmd, env(nil))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("SUPABASE_URL"))
		Expect(err.Error()).To(ContainSubstring("OPENAI_API_KEY"))
	})

	It("applies flags over the environment and file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "chatrelay.toml")
		Expect(os.WriteFile(path, []byte("listen = \":7000\"\n"), 0o600)).To(Succeed())

		cmder := &serveCommander{}
		cmd := newServeCmdFor(cmder)
		Expect(cmd.Flags().Parse([]string{"--config", path, "--listen", ":9000", "--debug"})).To(Succeed())

		cfg, err := cmder.loadConfig(cmd, env(complete))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":9000"))
		Expect(cfg.Debug).To(BeTrue())
	})

	It("keeps the file's listen address when the flag is not set", func() {
		path := filepath.Join(GinkgoT().TempDir(), "chatrelay.toml")
		Expect(os.WriteFile(path, []byte("listen = \":7000\"\n"), 0o600)).To(Succeed())

		cmder := &serveCommander{}
		cmd := newServeCmdFor(cmder)
		Expect(cmd.Flags().Parse([]string{"--config", path})).To(Succeed())

		cfg, err := cmder.loadConfig(cmd, env(complete))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.ListenAddr).To(Equal(":7000"))
	})

	It("wires a relay from a valid config", func() {
		cfg := config.Default()
		cfg.Identity.URL = complete["SUPABASE_URL"]
		cfg.Identity.AnonKey = complete["SUPABASE_ANON_KEY"]
		cfg.Upstream.APIKey = complete["OPENAI_API_KEY"]
		cfg.Profiles.DBPath = filepath.Join(GinkgoT().TempDir(), "profiles.db")

		p, err := buildProxy(cfg, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})
})
