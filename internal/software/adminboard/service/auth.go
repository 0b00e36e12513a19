package service

import (
	"context"
	"strings"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
)

// Login verifies back-office credentials and issues an access token. Unknown
// username, wrong password, and a deactivated account all come back as the
// same validation error so the response leaks nothing about which it was.
func (service *adminService) Login(ctx context.Context, username, password, deviceID string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", protocol.Validationf("username and password are required")
	}

	var u *user.User
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = service.users.GetByUsername(ctx, username)
		return err
	})
	if err != nil {
		return "", err
	}

	if u == nil || !u.Active || !u.CheckPassword(password) {
		service.logger.Info(ctx, "login_rejected", "Login attempt rejected", map[string]any{
			"username": username,
		})
		return "", protocol.Validationf("invalid username or password").Wrap(user.ErrBadCredentials)
	}

	token, _, err := service.auth.IssueUserToken(u.ID, deviceID, u.Role)
	if err != nil {
		return "", err
	}

	service.logger.Info(ctx, "login_success", "User logged in", map[string]any{
		"user_id": u.ID, "role": u.Role.String(),
	})
	return token, nil
}

// RegisterPushToken stores or refreshes a device push registration.
func (service *adminService) RegisterPushToken(ctx context.Context, t *notify.PushToken) error {
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		return service.tokens.Upsert(ctx, t)
	})
	if err != nil {
		return err
	}

	service.logger.Info(ctx, "push_token_registered", "Push token registered", map[string]any{
		"user_id": t.UserID, "device_id": t.DeviceID, "platform": t.Platform,
	})
	return nil
}
