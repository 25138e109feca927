package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 365 * 24 * time.Hour
)

type Config struct {
	Enabled     bool     `mapstructure:"enabled"`
	CertFile    string   `mapstructure:"cert_file"`
	KeyFile     string   `mapstructure:"key_file"`
	CAFile      string   `mapstructure:"ca_file"`
	CAKeyFile   string   `mapstructure:"ca_key_file"`
	DomainNames []string `mapstructure:"domain_names"`
	IPAddresses []string `mapstructure:"ip_addresses"`
}

// Ensure creates a CA and a server certificate signed by it when the files
// named in cfg are missing. Existing files are left alone.
func Ensure(cfg Config) error {
	if fileExists(cfg.CertFile) && fileExists(cfg.KeyFile) {
		slog.Debug("Using existing server certificate", "cert_path", cfg.CertFile)
		return nil
	}
	if cfg.CAFile == "" || cfg.CAKeyFile == "" {
		return fmt.Errorf("server certificate %s not found and no CA configured to issue one", cfg.CertFile)
	}

	caCert, caKey, err := ensureCA(cfg.CAFile, cfg.CAKeyFile)
	if err != nil {
		return err
	}

	domains := cfg.DomainNames
	if len(domains) == 0 {
		domains = []string{"localhost"}
	}
	ips, err := parseIPs(cfg.IPAddresses)
	if err != nil {
		return err
	}

	slog.Info("Generating server certificate", "cert_path", cfg.CertFile, "domains", domains, "ips", ips)
	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"Probe Hub"},
			CommonName:   domains[0],
		},
		NotAfter:    time.Now().Add(serverValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    domains,
		IPAddresses: ips,
	}
	serverCert, serverKey, err := issue(template, caCert, caKey)
	if err != nil {
		return fmt.Errorf("failed to generate server certificate: %w", err)
	}
	if err := writePair(cfg.CertFile, cfg.KeyFile, serverCert, serverKey); err != nil {
		return err
	}
	return nil
}

// ServerTLSConfig loads the server key pair.
func ServerTLSConfig(cfg Config) (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// LoadCertPool reads PEM certificates from path into a pool.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func ensureCA(certPath, keyPath string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	if fileExists(certPath) && fileExists(keyPath) {
		return loadCA(certPath, keyPath)
	}

	slog.Info("CA certificate not found, generating new CA", "cert_path", certPath)
	template := &x509.Certificate{
		Subject: pkix.Name{
			Organization: []string{"Probe Hub CA"},
			CommonName:   "Probe Hub Root CA",
		},
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	caCert, caKey, err := issue(template, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate CA certificate: %w", err)
	}
	if err := writePair(certPath, keyPath, caCert, caKey); err != nil {
		return nil, nil, err
	}
	return caCert, caKey, nil
}

// issue signs template with parentKey, or self-signs when parent is nil.
func issue(template, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	template.SerialNumber = serial
	template.NotBefore = time.Now().Add(-time.Minute)

	if parent == nil {
		parent, parentKey = template, key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

func loadCA(certPath, keyPath string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	certBlock, err := readPEM(certPath, "CERTIFICATE")
	if err != nil {
		return nil, nil, err
	}
	caCert, err := x509.ParseCertificate(certBlock)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	keyBlock, err := readPEM(keyPath, "EC PRIVATE KEY")
	if err != nil {
		return nil, nil, err
	}
	caKey, err := x509.ParseECPrivateKey(keyBlock)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA key: %w", err)
	}
	return caCert, caKey, nil
}

func readPEM(path, blockType string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != blockType {
		return nil, fmt.Errorf("%s does not contain a %s block", path, blockType)
	}
	return block.Bytes, nil
}

func writePair(certPath, keyPath string, cert *x509.Certificate, key *ecdsa.PrivateKey) error {
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}

	if err := writePEM(certPath, "CERTIFICATE", cert.Raw, 0644); err != nil {
		return err
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", keyDER, 0600); err != nil {
		return err
	}
	slog.Info("Wrote certificate", "cert_path", certPath, "key_path", keyPath)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func parseIPs(values []string) ([]net.IP, error) {
	if len(values) == 0 {
		return []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}, nil
	}
	ips := make([]net.IP, 0, len(values))
	for _, v := range values {
		ip := net.ParseIP(v)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address %q", v)
		}
		ips = append(ips, ip)
	}
	return ips, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
