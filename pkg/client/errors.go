package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

// ConnectError is returned for every failure to reach the server or complete
// the exchange, including TLS verification failures.
type ConnectError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IsTrustError reports whether err was caused by a certificate chain that the
// active trust context could not validate.
func IsTrustError(err error) bool {
	if err == nil {
		return false
	}
	var verr *tls.CertificateVerificationError
	if errors.As(err, &verr) {
		return true
	}
	var unknown x509.UnknownAuthorityError
	if errors.As(err, &unknown) {
		return true
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return true
	}
	var host x509.HostnameError
	return errors.As(err, &host)
}
