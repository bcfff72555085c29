package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/models"
)

func TestTokenManager_IssueAndParse(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleWorker}

	token, exp, err := manager.Issue(user)
	if err != nil {
		t.Fatalf("не удалось выпустить токен: %v", err)
	}
	if token == "" {
		t.Fatal("токен пустой")
	}
	if !exp.After(time.Now()) {
		t.Fatal("срок действия токена в прошлом")
	}

	userID, role, err := manager.ParseAccess(token)
	if err != nil {
		t.Fatalf("не удалось разобрать токен: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("из токена прочитан другой пользователь: %s", userID)
	}
	if role != models.RoleWorker {
		t.Fatalf("из токена прочитана другая роль: %s", role)
	}
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, _, err := issuer.Issue(&models.User{ID: uuid.New(), Role: models.RoleClient})
	if err != nil {
		t.Fatalf("не удалось выпустить токен: %v", err)
	}

	if _, _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("токен с чужой подписью принят")
	}
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	manager := NewTokenManager("test-secret", -time.Minute)

	token, _, err := manager.Issue(&models.User{ID: uuid.New(), Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("не удалось выпустить токен: %v", err)
	}

	if _, _, err := manager.ParseAccess(token); err == nil {
		t.Fatal("просроченный токен принят")
	}
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	manager := NewTokenManager("test-secret", time.Hour)

	if _, _, err := manager.ParseAccess("definitely.not.a-jwt"); err == nil {
		t.Fatal("мусорная строка принята как токен")
	}
}
