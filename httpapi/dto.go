package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/memoauth"
)

const birthDateLayout = "2006-01-02"

type signupRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	PasswordCheck string `json:"passwordCheck"`
	Nickname      string `json:"nickname"`
	BirthDate     string `json:"birthDate"`
}

func (r signupRequest) toDomain() (memoauth.SignupRequest, error) {
	req := memoauth.SignupRequest{
		Email:           r.Email,
		Password:        r.Password,
		PasswordConfirm: r.PasswordCheck,
		Nickname:        r.Nickname,
	}
	if s := strings.TrimSpace(r.BirthDate); s != "" {
		d, err := time.ParseInLocation(birthDateLayout, s, time.UTC)
		if err != nil {
			return req, fmt.Errorf("%w: birthDate %q", memoauth.ErrIllegalArgument, r.BirthDate)
		}
		req.BirthDate = d
	}
	return req, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type reissueRequest struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	GrantType             string `json:"grantType"`
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresAt  int64  `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt int64  `json:"refreshTokenExpiresAt"`
}

func newTokenResponse(p memoauth.TokenPair) tokenResponse {
	return tokenResponse{
		GrantType:             "Bearer",
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  p.AccessExpiresAt.UnixMilli(),
		RefreshTokenExpiresAt: p.RefreshExpiresAt.UnixMilli(),
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expiresAt"`
}

type healthResponse struct {
	Status string `json:"status"`
}

var errBadBody = fmt.Errorf("%w: request body", memoauth.ErrIllegalArgument)

// decodeJSON reads exactly one JSON object of at most maxBytes. With optional
// set, an empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return errBadBody
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}
