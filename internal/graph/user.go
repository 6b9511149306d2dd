package graph

import (
	"context"
	"fmt"
)

// UserInfo contains the user's basic profile information from Microsoft Graph.
type UserInfo struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// GetUserInfo fetches the authenticated user's profile. The email address
// serves as the account identifier.
func (c *Client) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	url := c.baseURL + "/me?$select=id,displayName,mail,userPrincipalName"
	var info UserInfo
	if err := c.GetJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	return &info, nil
}

// Email returns the user's email address, falling back to userPrincipalName
// if mail is not set.
func (u *UserInfo) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}
