package authapi

import "time"

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"fullName,omitempty"`
	Role             string `json:"role,omitempty"`
	SecurityQuestion string `json:"securityQuestion,omitempty"`
	SecurityAnswer   string `json:"securityAnswer,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type forgotQuestionsRequest struct {
	Email  string `json:"email"`
	Answer string `json:"answer"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type mfaVerifyRequest struct {
	Code string `json:"code"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginResponse struct {
	User       userResponse `json:"user"`
	MFAPending bool         `json:"mfaPending,omitempty"`
}

type ackResponse struct {
	OK bool `json:"ok"`
}

type csrfTokenResponse struct {
	Token string `json:"token"`
}

type resetIssuedResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type mfaInitiateResponse struct {
	OK bool `json:"ok"`

	// DevCode carries the challenge code outside production so local
	// frontends can complete the flow without a delivery channel.
	DevCode string `json:"devCode,omitempty"`
}

// deniedResponse is the 403 body. It names the caller's actual role and the
// resource that role lands on, so clients can redirect instead of guessing.
type deniedResponse struct {
	Error   apiError `json:"error"`
	Role    string   `json:"role"`
	Landing string   `json:"landing"`
}
