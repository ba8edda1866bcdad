package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var ErrInvalidGoogleToken = errors.New("invalid google id token")

// GoogleIdentity is the verified subset of a Google ID token
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type googleTokenInfo struct {
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Exp           string `json:"exp"`
	ErrorDesc     string `json:"error_description"`
}

// GoogleVerifier checks ID tokens against Google's tokeninfo endpoint
type GoogleVerifier struct {
	client   *resty.Client
	clientID string
	endpoint string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond)
	return &GoogleVerifier{client: client, clientID: clientID, endpoint: googleTokenInfoURL}
}

// WithEndpoint points the verifier at another tokeninfo URL (tests)
func (v *GoogleVerifier) WithEndpoint(endpoint string) *GoogleVerifier {
	v.endpoint = endpoint
	return v
}

// Verify validates audience, expiry and email verification of an ID token
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if idToken == "" {
		return nil, ErrInvalidGoogleToken
	}

	var info googleTokenInfo
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("id_token", idToken).
		SetResult(&info).
		SetError(&info).
		Get(v.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to reach google tokeninfo: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGoogleToken, info.ErrorDesc)
	}

	if v.clientID != "" && info.Aud != v.clientID {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidGoogleToken)
	}
	if info.EmailVerified != "true" || info.Email == "" || info.Sub == "" {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidGoogleToken)
	}
	if exp, err := strconv.ParseInt(info.Exp, 10, 64); err == nil && time.Unix(exp, 0).Before(time.Now()) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidGoogleToken)
	}

	return &GoogleIdentity{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
