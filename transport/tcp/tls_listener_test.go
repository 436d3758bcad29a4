package tcp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeSelfSignedCert generates an ECDSA cert/key pair valid for
// "127.0.0.1" and writes them as PEM files under dir, returning their
// paths.
func writeSelfSignedCert(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "hutz-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certFile)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyOut, err := os.Create(keyFile)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}))
	require.NoError(t, keyOut.Close())

	return certFile, keyFile
}

func TestListenTLSHandshakeRoundTrip(t *testing.T) {
	certFile, keyFile := writeSelfSignedCert(t, t.TempDir())

	ln, err := ListenTLS("127.0.0.1:0", certFile, keyFile, 0)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	errs := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errs <- err
			return
		}
		accepted <- conn
	}()

	clientConn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	defer clientConn.Close()

	require.NoError(t, clientConn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err = clientConn.Write([]byte("ping"))
	require.NoError(t, err)

	select {
	case err := <-errs:
		t.Fatalf("accept failed: %v", err)
	case serverConn := <-accepted:
		defer serverConn.Close()
		buf := make([]byte, 4)
		require.NoError(t, serverConn.SetDeadline(time.Now().Add(2*time.Second)))
		n, err := serverConn.Read(buf)
		require.NoError(t, err)
		require.Equal(t, "ping", string(buf[:n]))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for TLS accept")
	}
}

func TestListenTLSBadCertPathFails(t *testing.T) {
	_, err := ListenTLS("127.0.0.1:0", "/nonexistent/cert.pem", "/nonexistent/key.pem", 0)
	require.Error(t, err)
}
