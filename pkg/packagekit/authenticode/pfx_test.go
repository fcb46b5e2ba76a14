package authenticode

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	p12 "software.sslmate.com/src/go-pkcs12"
)

func makeTestPfx(t *testing.T, subject pkix.Name, password string) string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfxData, err := p12.Encode(rand.Reader, key, cert, nil, password)
	require.NoError(t, err)

	pfxPath := filepath.Join(t.TempDir(), "test.pfx")
	require.NoError(t, os.WriteFile(pfxPath, pfxData, 0600))
	return pfxPath
}

func TestInspectPfx(t *testing.T) {
	t.Parallel()

	subject := pkix.Name{CommonName: "Example Corp", Organization: []string{"Example"}}
	pfxPath := makeTestPfx(t, subject, "hunter2")

	cert, err := InspectPfx(&Credential{PfxPath: pfxPath, password: "hunter2"})
	require.NoError(t, err)
	require.Equal(t, "Example Corp", cert.Subject.CommonName)

	require.True(t, PublisherMatches(cert, "CN=Example Corp, O=Example"))
	require.True(t, PublisherMatches(cert, "O=Example,CN=Example Corp"))
	require.False(t, PublisherMatches(cert, "CN=Someone Else"))

	_, err = InspectPfx(&Credential{PfxPath: pfxPath, password: "wrong-password-9f2"})
	require.Error(t, err)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	require.NotContains(t, err.Error(), "wrong-password-9f2")

	garbage := filepath.Join(t.TempDir(), "garbage.pfx")
	require.NoError(t, os.WriteFile(garbage, []byte("garbage"), 0600))
	_, err = InspectPfx(&Credential{PfxPath: garbage, password: "hunter2"})
	require.ErrorAs(t, err, &configErr)

	_, err = InspectPfx(&Credential{PfxPath: filepath.Join(t.TempDir(), "missing.pfx"), password: "hunter2"})
	require.Error(t, err)
}
