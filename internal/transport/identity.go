package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"time"
)

// SecretEnv is the environment variable holding the provider's secret key
// seed as hex. Without it a fresh key is generated per run.
const SecretEnv = "FLIT_SECRET"

// Identity is the process-wide secret key material, loaded once at startup
// and injected into session construction rather than read ambiently.
type Identity struct {
	key ed25519.PrivateKey
}

// LoadIdentity builds an identity from the environment via getenv. When no
// seed is configured a random key is generated and its seed printed to
// warn so the user can pin it for stable addresses.
func LoadIdentity(getenv func(string) string, warn io.Writer) (*Identity, error) {
	if raw := strings.TrimSpace(getenv(SecretEnv)); raw != "" {
		seed, err := hex.DecodeString(raw)
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid %s: want %d hex bytes", SecretEnv, ed25519.SeedSize)
		}
		return &Identity{key: ed25519.NewKeyFromSeed(seed)}, nil
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	fmt.Fprintf(warn, "using secret key %s\n", hex.EncodeToString(seed))
	return &Identity{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Certificate derives a self-signed TLS certificate from the identity key.
func (id *Identity) Certificate() (tls.Certificate, error) {
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"flit"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, id.key.Public(), id.key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  id.key,
	}, nil
}

// DialableAddrs expands a bound listen address into the addresses a peer
// can put in a ticket: one entry per non-loopback unicast interface
// address, with the loopback address as a last resort.
func DialableAddrs(bound net.Addr) []string {
	udpAddr, ok := bound.(*net.UDPAddr)
	if !ok {
		return []string{bound.String()}
	}
	port := fmt.Sprintf("%d", udpAddr.Port)
	if udpAddr.IP != nil && !udpAddr.IP.IsUnspecified() {
		return []string{net.JoinHostPort(udpAddr.IP.String(), port)}
	}

	var addrs []string
	ifaceAddrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range ifaceAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			addrs = append(addrs, net.JoinHostPort(ipNet.IP.String(), port))
		}
	}
	if len(addrs) == 0 {
		addrs = append(addrs, net.JoinHostPort("127.0.0.1", port))
	}
	return addrs
}
