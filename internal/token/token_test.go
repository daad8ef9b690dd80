package token

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestIdentifyPrefersUsername(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"username": "user-1", "sub": "subject-1"})
	id, err := Identify(tok)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id != "user-1" {
		t.Fatalf("id = %q, want user-1", id)
	}
}

func TestIdentifyFallsBackToSubject(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"sub": "subject-1"})
	id, err := Identify("Bearer " + tok)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id != "subject-1" {
		t.Fatalf("id = %q, want subject-1", id)
	}
}

func TestDecodePaddedSegment(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"username":"ab"}`))
	claims, err := Decode("h." + payload + ".s")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if UserID(claims) != "ab" {
		t.Fatalf("claims = %v", claims)
	}
}

func TestDecodeStandardAlphabet(t *testing.T) {
	// this payload encodes with a "/", which the URL alphabet rejects.
	payload := base64.StdEncoding.EncodeToString([]byte(`{"username":"??>"}`))
	claims, err := Decode("h." + payload + ".s")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if UserID(claims) != "??>" {
		t.Fatalf("claims = %v", claims)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"two segments":   "abc.def",
		"bad base64":     "h.!!!notbase64!!!.s",
		"not json":       "h." + base64.RawURLEncoding.EncodeToString([]byte("plain")) + ".s",
		"empty":          "",
		"bearer no body": "Bearer ",
		"empty object":   "h." + base64.RawURLEncoding.EncodeToString([]byte("{}")) + ".s",
		"null payload":   "h." + base64.RawURLEncoding.EncodeToString([]byte("null")) + ".s",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Decode(%q) err = %v, want ErrInvalidToken", raw, err)
			}
		})
	}
}

func TestIdentifyRequiresUser(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"role": "guest"})
	if id, err := Identify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Identify = %q, %v, want ErrInvalidToken", id, err)
	}
}

func TestStripBearer(t *testing.T) {
	for in, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		" abc ":       "abc",
		"Bearerabc":   "Bearerabc",
	} {
		if got := StripBearer(in); got != want {
			t.Errorf("StripBearer(%q) = %q, want %q", in, got, want)
		}
	}
}
