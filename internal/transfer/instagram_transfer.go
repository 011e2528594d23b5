package transfer

import (
	"fmt"
	"strings"
)

type InstagramErrorResponse struct {
	Error *struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

// Details folds message, code and subcode into "msg | code=X | subcode=Y".
func (r *InstagramErrorResponse) Details() string {
	if r == nil || r.Error == nil {
		return ""
	}
	parts := []string{}
	if r.Error.Message != "" {
		parts = append(parts, r.Error.Message)
	}
	if r.Error.Code != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", r.Error.Code))
	}
	if r.Error.ErrorSubcode != 0 {
		parts = append(parts, fmt.Sprintf("subcode=%d", r.Error.ErrorSubcode))
	}
	return strings.Join(parts, " | ")
}

type InstagramIDResponse struct {
	ID string `json:"id"`
}

type InstagramContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
}

type InstagramPagesResponse struct {
	Data []struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		InstagramBusinessAccount *struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

type InstagramRefreshedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
