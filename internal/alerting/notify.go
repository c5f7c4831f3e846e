package alerting

import (
	"SafeCircle/internal/models"

	"github.com/google/uuid"
)

// notificationRing 轮询客户端能看到的最近提示条数
const notificationRing = 5

// notify 渲染提示文本，放进最近提示并通过 SigNotification 广播
func (e *Engine) notify(level models.NotificationLevel, id string, data map[string]interface{}) models.Notification {
	n := models.Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   e.formatter.Text(id, data),
		Timestamp: e.clock(),
		Topic:     id,
	}

	e.mu.Lock()
	next := make([]models.Notification, 0, notificationRing)
	next = append(next, n)
	for _, old := range e.notifications {
		if len(next) == notificationRing {
			break
		}
		next = append(next, old)
	}
	e.notifications = next
	e.mu.Unlock()

	e.signals.Emit(models.SigNotification, n)
	return n
}

// Notifications 最新在前
func (e *Engine) Notifications() []models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Notification(nil), e.notifications...)
}
