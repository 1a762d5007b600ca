package telephony

import "testing"

func TestVerifySignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"event_type":"call.completed","call_id":"c-1"}`)
	secret := "test-webhook-secret"

	if !VerifySignature(payload, Sign(payload, secret), secret) {
		t.Fatal("expected signature produced by Sign to verify")
	}
}

func TestVerifySignature_Mismatch(t *testing.T) {
	payload := []byte(`{"event_type":"call.completed"}`)
	secret := "test-webhook-secret"

	cases := map[string]string{
		"wrong signature":   Sign([]byte("other payload"), secret),
		"empty signature":   "",
		"not hex":           "zzzz",
		"truncated":         Sign(payload, secret)[:8],
		"different secret":  Sign(payload, "another-secret"),
	}

	for name, sig := range cases {
		if VerifySignature(payload, sig, secret) {
			t.Errorf("%s: expected verification failure", name)
		}
	}
}

func TestVerifySignature_MissingSecret(t *testing.T) {
	payload := []byte(`{}`)
	if VerifySignature(payload, Sign(payload, ""), "") {
		t.Fatal("expected verification failure with empty secret")
	}
}

func TestVerifySignature_RawBytesNotReserialized(t *testing.T) {
	// Two JSON documents with identical content but different key order
	// must not be interchangeable for verification.
	a := []byte(`{"event_type":"call.completed","call_id":"c-1"}`)
	b := []byte(`{"call_id":"c-1","event_type":"call.completed"}`)
	secret := "s"

	if VerifySignature(b, Sign(a, secret), secret) {
		t.Fatal("signature over reordered payload must not verify")
	}
}
