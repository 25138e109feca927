package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const sasPrefix = "SharedAccessSignature "

var (
	ErrInvalidToken     = errors.New("invalid shared access signature")
	ErrTokenExpired     = errors.New("shared access signature expired")
	ErrInvalidSignature = errors.New("shared access signature mismatch")
)

type SASToken struct {
	Resource  string
	Signature string
	Expiry    time.Time
	KeyName   string
}

// NewSASToken signs resourceURI with a base64 key. keyName is empty for
// device-scope tokens.
func NewSASToken(resourceURI, key, keyName string, expiry time.Time) (string, error) {
	se := strconv.FormatInt(expiry.Unix(), 10)
	sig, err := sign(resourceURI, se, key)
	if err != nil {
		return "", err
	}

	token := sasPrefix + "sr=" + url.QueryEscape(resourceURI) +
		"&sig=" + url.QueryEscape(sig) +
		"&se=" + se
	if keyName != "" {
		token += "&skn=" + url.QueryEscape(keyName)
	}
	return token, nil
}

func ParseSASToken(token string) (SASToken, error) {
	rest, ok := strings.CutPrefix(token, sasPrefix)
	if !ok {
		return SASToken{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidToken, strings.TrimSpace(sasPrefix))
	}

	values, err := url.ParseQuery(rest)
	if err != nil {
		return SASToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	t := SASToken{
		Resource:  values.Get("sr"),
		Signature: values.Get("sig"),
		KeyName:   values.Get("skn"),
	}
	if t.Resource == "" || t.Signature == "" {
		return SASToken{}, fmt.Errorf("%w: sr and sig are required", ErrInvalidToken)
	}

	se, err := strconv.ParseInt(values.Get("se"), 10, 64)
	if err != nil {
		return SASToken{}, fmt.Errorf("%w: bad expiry: %v", ErrInvalidToken, err)
	}
	t.Expiry = time.Unix(se, 0)
	return t, nil
}

// Verify checks expiry against now and the signature against key.
func (t SASToken) Verify(key string, now time.Time) error {
	if !now.Before(t.Expiry) {
		return ErrTokenExpired
	}

	want, err := sign(t.Resource, strconv.FormatInt(t.Expiry.Unix(), 10), key)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(t.Signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func sign(resourceURI, expiry, key string) (string, error) {
	rawKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("%w: key is not base64: %v", ErrInvalidToken, err)
	}
	mac := hmac.New(sha256.New, rawKey)
	mac.Write([]byte(url.QueryEscape(resourceURI) + "\n" + expiry))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// DeviceResource is the SAS resource URI for a device.
func DeviceResource(hostName, deviceID string) string {
	return hostName + "/devices/" + deviceID
}
