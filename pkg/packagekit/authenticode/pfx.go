package authenticode

import (
	"crypto/x509"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	p12 "software.sslmate.com/src/go-pkcs12"
)

// InspectPfx opens the credential's pfx and returns the signing
// certificate. signtool's own errors for a wrong password are opaque,
// so we check up front.
func InspectPfx(cred *Credential) (*x509.Certificate, error) {
	data, err := os.ReadFile(cred.PfxPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading pfx %s", cred.PfxPath)
	}

	privateKey, cert, _, err := p12.DecodeChain(data, cred.password)
	if err != nil {
		return nil, &ConfigError{
			Input:       cred.PfxPath,
			Problem:     "unable to open pfx with the supplied password",
			Remediation: "Check the pfx password, and that the file is a PKCS#12 bundle containing a private key",
			Err:         err,
		}
	}

	if privateKey == nil || cert == nil {
		return nil, &ConfigError{
			Input:   cred.PfxPath,
			Problem: "pfx does not contain both a private key and a certificate",
		}
	}

	return cert, nil
}

// PublisherMatches reports whether a certificate subject names the
// same publisher as an msix manifest. The manifest form is usually
// "CN=Foo, O=Bar" while x509 renders "CN=Foo,O=Bar", so whitespace
// around separators is ignored.
func PublisherMatches(cert *x509.Certificate, publisher string) bool {
	return normalizeDN(cert.Subject.String()) == normalizeDN(publisher)
}

func normalizeDN(dn string) string {
	parts := strings.Split(dn, ",")
	for i, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		for j := range kv {
			kv[j] = strings.TrimSpace(kv[j])
		}
		kv[0] = strings.ToUpper(kv[0])
		parts[i] = strings.Join(kv, "=")
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}
