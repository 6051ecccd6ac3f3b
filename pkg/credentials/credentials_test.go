package credentials_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/patchbay/pkg/credentials"
)

// writeServiceAccount writes a syntactically valid service account key file
// and returns its path.
func writeServiceAccount(dir string) string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())

	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	Expect(err).NotTo(HaveOccurred())

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})

	account := map[string]string{
		"type":         "service_account",
		"project_id":   "test-project",
		"private_key":  string(keyPEM),
		"client_email": "patchbay@test-project.iam.gserviceaccount.com",
		"token_uri":    "https://oauth2.googleapis.com/token",
	}
	data, err := json.Marshal(account)
	Expect(err).NotTo(HaveOccurred())

	path := filepath.Join(dir, "service-account.json")
	Expect(os.WriteFile(path, data, 0o600)).To(Succeed())
	return path
}

var _ = Describe("Static", func() {
	It("returns the configured token", func() {
		source := credentials.NewStatic("fixed-token")
		token, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("fixed-token"))
	})

	It("fails on an empty token", func() {
		source := credentials.NewStatic("")
		_, err := source.Token(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ADC", func() {
	var (
		tmpDir  string
		origADC string
		hadADC  bool
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())

		origADC, hadADC = os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	})

	AfterEach(func() {
		if hadADC {
			os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", origADC)
		} else {
			os.Unsetenv("GOOGLE_APPLICATION_CREDENTIALS")
		}
		os.RemoveAll(tmpDir)
	})

	It("discovers credentials from GOOGLE_APPLICATION_CREDENTIALS", func() {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", writeServiceAccount(tmpDir))

		source, err := credentials.NewADC(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(source).NotTo(BeNil())
	})

	It("fails when the credentials file does not exist", func() {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(tmpDir, "missing.json"))

		_, err := credentials.NewADC(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("application default credentials"))
	})
})

var _ = Describe("Gcloud", func() {
	var (
		tmpDir   string
		origPath string
	)

	// fakeGcloud installs a gcloud stub that counts its invocations.
	fakeGcloud := func() string {
		countFile := filepath.Join(tmpDir, "count")
		script := "#!/bin/sh\n" +
			"count=$(cat \"" + countFile + "\" 2>/dev/null || echo 0)\n" +
			"count=$((count + 1))\n" +
			"echo \"$count\" > \"" + countFile + "\"\n" +
			"echo \"token-$count\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "gcloud"), []byte(script), 0o755)).To(Succeed())
		return countFile
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "credentials-test-*")
		Expect(err).NotTo(HaveOccurred())

		origPath = os.Getenv("PATH")
		os.Setenv("PATH", tmpDir+string(os.PathListSeparator)+origPath)
	})

	AfterEach(func() {
		os.Setenv("PATH", origPath)
		os.RemoveAll(tmpDir)
	})

	It("fetches a token from the gcloud CLI", func() {
		fakeGcloud()

		source := credentials.NewGcloud()
		token, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("token-1"))
	})

	It("caches the token across calls", func() {
		fakeGcloud()

		source := credentials.NewGcloud()
		first, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())

		second, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	It("fails when gcloud exits nonzero", func() {
		script := "#!/bin/sh\nexit 1\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "gcloud"), []byte(script), 0o755)).To(Succeed())

		source := credentials.NewGcloud()
		_, err := source.Token(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Resolve", func() {
	It("prefers a configured static token", func() {
		source, err := credentials.Resolve(context.Background(), "static-token")
		Expect(err).NotTo(HaveOccurred())

		token, err := source.Token(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("static-token"))
	})
})
