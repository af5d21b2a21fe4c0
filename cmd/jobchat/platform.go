package main

import (
	"context"
	"os"
	"strings"

	"jobchat/internal/models"
)

// Environment variables the headless push platform reads on every call, so a
// token provisioned after start-up is picked up by the next registration run.
const (
	EnvPushToken      = "JOBCHAT_PUSH_TOKEN"
	EnvPushPermission = "JOBCHAT_PUSH_PERMISSION"
)

// envPushPlatform is the PushPlatform used by the daemon, which has no OS push
// service of its own.
type envPushPlatform struct {
	platform string
	getenv   func(string) string
}

func newEnvPushPlatform(platform string) *envPushPlatform {
	return &envPushPlatform{platform: platform, getenv: os.Getenv}
}

func (p *envPushPlatform) RequestPermission(ctx context.Context) (models.PermissionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(p.getenv(EnvPushPermission))) {
	case "", string(models.PermissionGranted):
		return models.PermissionGranted, nil
	case string(models.PermissionUndetermined):
		return models.PermissionUndetermined, nil
	default:
		return models.PermissionDenied, nil
	}
}

func (p *envPushPlatform) DeviceToken(ctx context.Context) (string, error) {
	return strings.TrimSpace(p.getenv(EnvPushToken)), nil
}

func (p *envPushPlatform) Platform() string {
	return p.platform
}
