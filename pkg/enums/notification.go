package enums

import "fmt"

// NotificationType groups in-app notifications for the notification center.
type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "ORDER"
	NotificationTypePayment NotificationType = "PAYMENT"
	NotificationTypeSystem  NotificationType = "SYSTEM"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypePayment,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationKind identifies the event a notification reports. The kind
// selects the message template, the notification type and the email priority.
type NotificationKind string

const (
	NotificationKindPaymentSucceeded     NotificationKind = "payment_succeeded"
	NotificationKindPaymentFailed        NotificationKind = "payment_failed"
	NotificationKindPaymentReminder      NotificationKind = "payment_reminder"
	NotificationKindOrderCancelledByUser NotificationKind = "order_cancelled_user"
	NotificationKindOrderCancelledSystem NotificationKind = "order_cancelled_system"
	NotificationKindOrderCancelledStore  NotificationKind = "order_cancelled_store"
	NotificationKindOrderOngoing         NotificationKind = "order_ongoing"
	NotificationKindOrderCompleted       NotificationKind = "order_completed"
	NotificationKindOrderRefunded        NotificationKind = "order_refunded"
)

var notificationTypeByKind = map[NotificationKind]NotificationType{
	NotificationKindPaymentSucceeded:     NotificationTypeOrder,
	NotificationKindPaymentFailed:        NotificationTypePayment,
	NotificationKindPaymentReminder:      NotificationTypePayment,
	NotificationKindOrderCancelledByUser: NotificationTypeOrder,
	NotificationKindOrderCancelledSystem: NotificationTypeOrder,
	NotificationKindOrderCancelledStore:  NotificationTypeOrder,
	NotificationKindOrderOngoing:         NotificationTypeOrder,
	NotificationKindOrderCompleted:       NotificationTypeOrder,
	NotificationKindOrderRefunded:        NotificationTypePayment,
}

// IsValid reports whether the kind is known.
func (k NotificationKind) IsValid() bool {
	_, ok := notificationTypeByKind[k]
	return ok
}

// Type returns the notification center bucket for the kind.
func (k NotificationKind) Type() NotificationType {
	if t, ok := notificationTypeByKind[k]; ok {
		return t
	}
	return NotificationTypeSystem
}

func ParseNotificationKind(value string) (NotificationKind, error) {
	k := NotificationKind(value)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid notification kind %q", value)
	}
	return k, nil
}
