package service

import (
	"context"
	"testing"
	"time"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthFixture(t *testing.T, active bool) (AuthService, *fakeWorkerStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2!"), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)

	workers := &fakeWorkerStore{}
	workers.workers = append(workers.workers, domain.Worker{
		ID: 7, Code: "EMP-7", Name: "Dana Reyes", Email: "dana@example.com",
		Role: domain.RoleStaff, Type: domain.StaffField,
		PasswordHash: &h, Active: active,
	})
	cfg := testConfig()
	cfg.JWTSecret = "test-secret"
	cfg.AccessTokenTTL = time.Hour
	cfg.RefreshTokenTTL = 24 * time.Hour
	return AuthService{Config: cfg, Workers: workers}, workers
}

func TestLogin_Success(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	res, err := svc.Login(context.Background(), LoginInput{Email: "dana@example.com", Password: "hunter2!"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(7), res.Worker.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	_, err := svc.Login(context.Background(), LoginInput{Email: "dana@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	_, err := svc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "hunter2!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_InactiveWorker(t *testing.T) {
	svc, _ := newAuthFixture(t, false)
	_, err := svc.Login(context.Background(), LoginInput{Email: "dana@example.com", Password: "hunter2!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_RoundTrip(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	res, err := svc.Login(context.Background(), LoginInput{Email: "dana@example.com", Password: "hunter2!"})
	require.NoError(t, err)

	renewed, err := svc.Refresh(context.Background(), RefreshInput{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, int64(7), renewed.Worker.ID)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	res, err := svc.Login(context.Background(), LoginInput{Email: "dana@example.com", Password: "hunter2!"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), RefreshInput{RefreshToken: res.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_GarbageTokenRejected(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	_, err := svc.Refresh(context.Background(), RefreshInput{RefreshToken: "not-a-jwt"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
