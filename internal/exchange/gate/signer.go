// Package gate implements the ExchangeClient: a Gate.io v4 spot REST
// client carrying over the HMAC-SHA512 signing technique from
// exchange/gate/{client,signer}.go, retargeted from futures to spot
// endpoints and wired through the retry manager, rate-limit enforcer,
// and endpoint classifier. It holds no circuit breaker; callers apply
// their own.
package gate

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer implements Gate.io API v4 request signing.
type Signer struct {
	apiKey    string
	secretKey string
}

func NewSigner(apiKey, secretKey string) *Signer {
	return &Signer{apiKey: apiKey, secretKey: secretKey}
}

// SignREST builds the v4 signature: HMAC-SHA512 over
// method + "\n" + path + "\n" + query + "\n" + hex(sha512(body)) + "\n" + timestamp.
func (s *Signer) SignREST(method, urlPath, queryString, body string, timestamp int64) string {
	hasher := sha512.New()
	if body != "" {
		hasher.Write([]byte(body))
	}
	bodyHash := hex.EncodeToString(hasher.Sum(nil))

	message := fmt.Sprintf("%s\n%s\n%s\n%s\n%d", method, urlPath, queryString, bodyHash, timestamp)

	mac := hmac.New(sha512.New, []byte(s.secretKey))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Timestamp() int64 {
	return time.Now().Unix()
}

func (s *Signer) APIKey() string {
	return s.apiKey
}
