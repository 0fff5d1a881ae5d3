package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	at := NewAuthToken("test-secret")

	token, err := at.GenerateToken("client-42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	isValid, clientID, err := at.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !isValid {
		t.Error("freshly issued token must verify")
	}
	if clientID != "client-42" {
		t.Errorf("client_id = %q, want client-42", clientID)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, err := NewAuthToken("secret-a").GenerateToken("client-42")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	isValid, _, err := NewAuthToken("secret-b").VerifyToken(token)
	if err == nil || isValid {
		t.Error("token signed with another secret must not verify")
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	isValid, _, err := NewAuthToken("secret").VerifyToken("not.a.token")
	if err == nil || isValid {
		t.Error("garbage token must not verify")
	}
}
