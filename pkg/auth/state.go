package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// AuthRequest is an MCP client's pending authorization request. It travels
// through the Sentry redirect inside the state parameter.
type AuthRequest struct {
	ResponseType        string `json:"responseType"`
	ClientID            string `json:"clientId"`
	RedirectURI         string `json:"redirectUri"`
	Scope               string `json:"scope,omitempty"`
	State               string `json:"state,omitempty"`
	CodeChallenge       string `json:"codeChallenge,omitempty"`
	CodeChallengeMethod string `json:"codeChallengeMethod,omitempty"`
}

// EncodeState serializes req as base64 JSON. The encoding is not a trust
// boundary: DecodeState callers still validate what comes back.
func EncodeState(req AuthRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeState reverses EncodeState. Malformed input and requests without a
// client identity fail with a 400 *Failure.
func DecodeState(state string) (AuthRequest, error) {
	invalid := &Failure{Status: http.StatusBadRequest, Message: "Invalid state"}

	data, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return AuthRequest{}, invalid
	}

	var req AuthRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return AuthRequest{}, invalid
	}

	if req.ClientID == "" {
		return AuthRequest{}, invalid
	}

	return req, nil
}
