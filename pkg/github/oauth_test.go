package github

import "testing"

func TestDeviceAuthMissingClientID(t *testing.T) {
	_, err := DeviceAuth(t.Context(), OAuthConfig{}, nil)
	if err == nil {
		t.Error("DeviceAuth with empty client ID should return error")
	}
}
