package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

// FuzzCodecParse feeds arbitrary strings to Parse: it must never panic and
// must never return nil claims without an error.
func FuzzCodecParse(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	codec, err := NewCodec(Config{
		TTL:           5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := codec.Issue(Identity{ID: "u-1", Email: "u@example.com", Name: "U"})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJzdWIiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := codec.Parse(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("Parse returned nil claims without error")
		}
	})
}
