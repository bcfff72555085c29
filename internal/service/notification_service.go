package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/laburoapp/laburo-backend/internal/goroutine"
	"github.com/laburoapp/laburo-backend/internal/logger"
	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/repository"
)

// Notifier — граница доставки уведомлений. Финансовые сервисы зовут её
// строго после коммита транзакции; сбой доставки логируется и никогда
// не откатывает операцию.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, category, title, message string) error
}

// WSNotifier интерфейс для отправки WebSocket уведомлений.
type WSNotifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
}

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationService сохраняет уведомления и рассылает их подключённым
// клиентам через WebSocket hub.
type NotificationService struct {
	repo NotificationRepository
	hub  WSNotifier
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// SetHub устанавливает WebSocket hub для онлайн-доставки.
func (s *NotificationService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// Notify сохраняет уведомление и рассылает его онлайн-клиентам.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, category, title, message string) error {
	payload := map[string]interface{}{
		"category": category,
		"title":    title,
		"message":  message,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		UserID:  userID,
		Payload: payloadBytes,
		IsRead:  false,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	if s.hub != nil {
		_ = s.hub.BroadcastToUser(userID, "notification", notification)
	}

	return nil
}

// ListNotifications возвращает список уведомлений пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление как прочитанное.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")
		}
		return err
	}
	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// notifyAsync доставляет уведомление вне транзакции вызвавшей операции.
// nil-notifier допустим: сервисы работают и без подключённых уведомлений.
func notifyAsync(n Notifier, userID uuid.UUID, category, title, message string) {
	if n == nil {
		return
	}
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := n.Notify(ctx, userID, category, title, message); err != nil && logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"user_id":  userID,
				"category": category,
				"error":    err.Error(),
			}).Warn("notification service: не удалось доставить уведомление")
		}
	})
}
