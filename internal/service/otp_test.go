package service

import "testing"

func TestGenerateOTPFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateOTP()
		if err != nil {
			t.Fatalf("generate otp: %v", err)
		}
		if !isValidOTPCode(code) {
			t.Fatalf("expected zero-padded 6-digit code, got %q", code)
		}
	}
}

func TestIsValidOTPCode(t *testing.T) {
	valid := []string{"000000", "123456", "999999"}
	for _, code := range valid {
		if !isValidOTPCode(code) {
			t.Fatalf("expected %q to be valid", code)
		}
	}
	invalid := []string{"", "12345", "1234567", "12a456", "12 456", "12345½"}
	for _, code := range invalid {
		if isValidOTPCode(code) {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}

func TestMatchOTP(t *testing.T) {
	if matchOTP("123456", "") {
		t.Fatalf("empty stored code must never match")
	}
	if matchOTP("123456", "654321") {
		t.Fatalf("different codes must not match")
	}
	if !matchOTP("123456", "123456") {
		t.Fatalf("equal codes must match")
	}
}
