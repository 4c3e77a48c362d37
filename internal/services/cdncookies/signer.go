// Package cdncookies keeps signed-access cookies fresh for every stored
// package prefix, so playback requests against the CDN never see an
// expired credential.
package cdncookies

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"
)

// Signer mints a cookie set granting access to everything under a
// package prefix until expires.
type Signer interface {
	Sign(prefix string, expires time.Time) (map[string]string, error)
}

// CloudFrontSigner mints CloudFront signed cookies with an RSA key pair.
type CloudFrontSigner struct {
	signer *sign.CookieSigner
	domain string
}

// NewCloudFrontSigner loads the PEM private key and prepares a signer
// for the given distribution domain.
func NewCloudFrontSigner(keyPairID, privateKeyPath, domain string) (*CloudFrontSigner, error) {
	privKey, err := sign.LoadPEMPrivKeyFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}

	return &CloudFrontSigner{
		signer: sign.NewCookieSigner(keyPairID, privKey),
		domain: domain,
	}, nil
}

// Sign mints cookies scoped to every object under prefix.
func (s *CloudFrontSigner) Sign(prefix string, expires time.Time) (map[string]string, error) {
	resource := fmt.Sprintf("https://%s/%s/*", s.domain, prefix)

	cookies, err := s.signer.Sign(resource, expires)
	if err != nil {
		return nil, fmt.Errorf("signing cookies for %s: %w", prefix, err)
	}

	set := make(map[string]string, len(cookies))
	for _, c := range cookies {
		set[c.Name] = c.Value
	}
	return set, nil
}
