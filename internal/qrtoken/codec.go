// Package qrtoken builds and verifies the signed, stateless QR credential
// printed on visitor passes and scanned at the venue gate.
//
// Wire format: "EVT:" + base64url(JSON{data:{r,e,m,t}, sig:hex-hmac-sha256}).
// The signature covers the exact payload bytes inside "data"; verification
// never reserializes, so byte-for-byte fidelity is guaranteed.
package qrtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/sangam-association/backend/internal/models"
)

// Tag prefixes every credential so scanners can tell it apart from other QR content.
const Tag = "EVT:"

// Payload is the signed content of a credential.
type Payload struct {
	RegistrationID int64 `json:"r"`
	EventID        int64 `json:"e"`
	MemberID       int64 `json:"m"`
	IssuedAt       int64 `json:"t"` // epoch milliseconds
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Sig  string          `json:"sig"`
}

// Codec signs and verifies credentials with a server-held secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec with the given HMAC secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode builds a credential for a registration. Pure; no side effects.
func (c *Codec) Encode(reg *models.Registration) (string, error) {
	payload := Payload{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		MemberID:       reg.MemberID,
		IssuedAt:       reg.RegisteredAt.UnixMilli(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	env := envelope{Data: data, Sig: c.sign(data)}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return Tag + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode verifies a scanned credential. The second return is false for every
// failure mode (bad tag, malformed base64/JSON, signature mismatch) so callers
// cannot leak which part failed.
func (c *Codec) Decode(token string) (Payload, bool) {
	if !strings.HasPrefix(token, Tag) {
		return Payload{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, Tag))
	if err != nil {
		return Payload{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return Payload{}, false
	}
	expected, err := hex.DecodeString(env.Sig)
	if err != nil {
		return Payload{}, false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(env.Data)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return Payload{}, false
	}
	return p, true
}

func (c *Codec) sign(data []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
