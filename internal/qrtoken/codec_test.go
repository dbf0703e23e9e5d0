package qrtoken

import (
	"strings"
	"testing"
	"time"

	"github.com/sangam-association/backend/internal/models"
)

func testRegistration() *models.Registration {
	return &models.Registration{
		ID:           42,
		EventID:      7,
		MemberID:     1001,
		RegisteredAt: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret")
	reg := testRegistration()

	token, err := codec.Encode(reg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(token, Tag) {
		t.Fatalf("token missing tag: %q", token)
	}

	payload, ok := codec.Decode(token)
	if !ok {
		t.Fatal("Decode reported invalid for a freshly encoded token")
	}
	if payload.RegistrationID != reg.ID {
		t.Errorf("registration id = %d, want %d", payload.RegistrationID, reg.ID)
	}
	if payload.EventID != reg.EventID {
		t.Errorf("event id = %d, want %d", payload.EventID, reg.EventID)
	}
	if payload.MemberID != reg.MemberID {
		t.Errorf("member id = %d, want %d", payload.MemberID, reg.MemberID)
	}
	if payload.IssuedAt != reg.RegisteredAt.UnixMilli() {
		t.Errorf("issued at = %d, want %d", payload.IssuedAt, reg.RegisteredAt.UnixMilli())
	}
}

func TestDecodeRejectsTampering(t *testing.T) {
	codec := NewCodec("test-secret")
	token, err := codec.Encode(testRegistration())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Flip every character of the encoded segment one at a time; all must fail.
	body := strings.TrimPrefix(token, Tag)
	for i := 0; i < len(body); i++ {
		mutated := []byte(body)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if _, ok := codec.Decode(Tag + string(mutated)); ok {
			t.Fatalf("tampered token at offset %d decoded as valid", i)
		}
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	codec := NewCodec("test-secret")
	valid, _ := codec.Encode(testRegistration())

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"missing tag", strings.TrimPrefix(valid, Tag)},
		{"wrong tag", "TKT:" + strings.TrimPrefix(valid, Tag)},
		{"not base64", Tag + "%%%%"},
		{"garbage json", Tag + "bm90IGpzb24"},
		{"truncated", valid[:len(valid)/2]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := codec.Decode(tc.token); ok {
				t.Errorf("Decode(%q) = valid, want invalid", tc.token)
			}
		})
	}
}

func TestDecodeRejectsForeignSecret(t *testing.T) {
	token, err := NewCodec("secret-a").Encode(testRegistration())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := NewCodec("secret-b").Decode(token); ok {
		t.Fatal("token signed with a different secret decoded as valid")
	}
}

func TestImageRendersPNG(t *testing.T) {
	codec := NewCodec("test-secret")
	token, _ := codec.Encode(testRegistration())

	png, err := Image(token, 0)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("output is not a PNG (%d bytes)", len(png))
	}
}
