package event

import (
	"strings"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	sig := Sign(payload, "whsec_test")
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("expected sha256= prefix, got %q", sig)
	}
	if !VerifySignature(payload, sig, "whsec_test") {
		t.Fatalf("signature must verify against the signing secret")
	}
}

func TestVerify_Tampered(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount":1999}`)
	sig := Sign(payload, "whsec_test")

	tampered := []byte(`{"id":"evt_1","amount":9999}`)
	if VerifySignature(tampered, sig, "whsec_test") {
		t.Fatalf("a tampered payload must not verify")
	}
	if VerifySignature(payload, sig, "whsec_other") {
		t.Fatalf("a different secret must not verify")
	}
	if VerifySignature(payload, "", "whsec_test") {
		t.Fatalf("an empty signature must not verify")
	}
}
