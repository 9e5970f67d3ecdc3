package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"
)

// GenerateSASToken builds an Azure IoT Hub SharedAccessSignature password
// from a resource URI (typically "{hostname}/devices/{deviceID}") and a
// base64-encoded shared access key, valid until expiry.
func GenerateSASToken(resourceURI, key string, expiry time.Time) (string, error) {
	decodedKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("invalid shared access key: %w", err)
	}

	encodedURI := url.QueryEscape(resourceURI)
	expirySeconds := expiry.Unix()

	toSign := fmt.Sprintf("%s\n%d", encodedURI, expirySeconds)

	mac := hmac.New(sha256.New, decodedKey)
	mac.Write([]byte(toSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf(
		"SharedAccessSignature sr=%s&sig=%s&se=%d",
		encodedURI,
		url.QueryEscape(signature),
		expirySeconds,
	), nil
}
