package security

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const NextProto = "clipsync"

// MakeTLSConfig builds a self-signed config used by both sides of a session.
// Peers sharing a non-empty secret derive the same ed25519 key and accept
// only each other; without a secret any peer without one is accepted.
func MakeTLSConfig(secret string, logger zerolog.Logger) (*tls.Config, error) {
	certDER, privateKey, err := selfSigned(secret)
	if err != nil {
		return nil, err
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("x509.MarshalPKCS8PrivateKey: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tls.X509KeyPair: %w", err)
	}

	myCert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse my cert: %w", err)
	}

	conf := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{NextProto},
		ClientAuth:   tls.RequireAnyClientCert,
		//nolint:gosec // peers are authenticated by VerifyPeerCertificate
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
	}

	populateKeyLog(logger, conf)

	conf.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrPeerSecretMissing
		}

		peerCert, pErr := x509.ParseCertificate(rawCerts[0])
		if pErr != nil {
			return fmt.Errorf("failed to parse peer cert: %w", pErr)
		}

		return verifyPeer(myCert, peerCert)
	}

	logger.Debug().
		Bool("secret", secret != "").
		Str("fingerprint", Fingerprint(certDER)).
		Msg("tls identity ready")

	return conf, nil
}

func verifyPeer(my, peer *x509.Certificate) error {
	myPub, myOk := my.PublicKey.(ed25519.PublicKey)
	peerPub, peerOk := peer.PublicKey.(ed25519.PublicKey)

	if myOk != peerOk {
		if myOk {
			return ErrPeerSecretMissing
		}
		return ErrLocalSecretMissing
	}

	if !myOk {
		return nil
	}

	if !bytes.Equal(myPub, peerPub) {
		return ErrSecretMismatch
	}

	return nil
}

func selfSigned(secret string) ([]byte, crypto.PrivateKey, error) {
	//nolint:mnd // 128 bit serial
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("rand.Int: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour * 365 * 10),
		IPAddresses: []net.IP{
			net.ParseIP("127.0.0.1"),
			net.ParseIP("::1"),
			net.ParseIP("0.0.0.0"),
		},
	}

	privateKey, publicKey, err := genKey(secret)
	if err != nil {
		return nil, nil, err
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, publicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("x509.CreateCertificate: %w", err)
	}

	return certDER, privateKey, nil
}

func genKey(secret string) (crypto.PrivateKey, crypto.PublicKey, error) {
	if secret != "" {
		seed := sha256.Sum256([]byte(secret))
		pk := ed25519.NewKeyFromSeed(seed[:])
		return pk, pk.Public(), nil
	}

	ecdsaPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ecdsa.GenerateKey: %w", err)
	}
	return ecdsaPriv, ecdsaPriv.Public(), nil
}

// Fingerprint is a short printable digest of a DER certificate.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8])
}
