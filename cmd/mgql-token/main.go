// Command mgql-token mints RS256 bearer tokens for local development against
// an OIDC-protected server. Extra claims reach queries through the ambient
// $claims variable.
//
//	mgql-token --generate-key .auth/jwt_private.pem
//	mgql-token --key .auth/jwt_private.pem --subject 7 --claim company_id=1
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"
)

const keyBits = 2048

type options struct {
	keyPath     string
	generateKey string
	issuer      string
	audience    []string
	subject     string
	kid         string
	expires     time.Duration
	claims      []string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "mgql-token:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, now time.Time) error {
	var opts options
	fs := pflag.NewFlagSet("mgql-token", pflag.ContinueOnError)
	fs.StringVar(&opts.keyPath, "key", ".auth/jwt_private.pem", "RSA private key (PEM) used to sign")
	fs.StringVar(&opts.generateKey, "generate-key", "", "Write a new RSA private key and its public key to this path and exit")
	fs.StringVar(&opts.issuer, "issuer", "https://localhost:9000", "Token issuer")
	fs.StringSliceVar(&opts.audience, "audience", []string{"model-graphql"}, "Token audience")
	fs.StringVar(&opts.subject, "subject", "", "Token subject, exposed to queries as $uid (required)")
	fs.StringVar(&opts.kid, "kid", "local-key", "Key id header")
	fs.DurationVar(&opts.expires, "expires", time.Hour, "Token lifetime")
	fs.StringArrayVar(&opts.claims, "claim", nil, "Extra claim as key=value; JSON values are decoded (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.generateKey != "" {
		return generateKeyPair(opts.generateKey)
	}

	key, err := loadPrivateKey(opts.keyPath)
	if err != nil {
		return err
	}
	claims, err := opts.tokenClaims(now)
	if err != nil {
		return err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = opts.kid
	signed, err := token.SignedString(key)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	_, err = fmt.Fprintln(stdout, signed)
	return err
}

func (o options) tokenClaims(now time.Time) (jwt.MapClaims, error) {
	if o.subject == "" {
		return nil, errors.New("--subject is required")
	}
	claims := jwt.MapClaims{}
	for _, raw := range o.claims {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --claim %q: want key=value", raw)
		}
		claims[name] = claimValue(value)
	}
	// Registered claims win over --claim.
	claims["iss"] = o.issuer
	claims["sub"] = o.subject
	claims["aud"] = o.audience
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Add(-time.Minute).Unix()
	claims["exp"] = now.Add(o.expires).Unix()
	return claims, nil
}

// claimValue decodes JSON scalars, arrays and objects; anything else is a
// plain string.
func claimValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA private key", path)
	}
	return key, nil
}

// generateKeyPair writes path and path's ".pub" sibling.
func generateKeyPair(path string) error {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	private := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, private, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	public := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	if err := os.WriteFile(strings.TrimSuffix(path, filepath.Ext(path))+".pub", public, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}
