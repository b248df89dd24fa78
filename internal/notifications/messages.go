package notifications

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/angelmondragon/driveaway-backend/pkg/enums"
)

// Message templates take two positional arguments: the order number and a
// kind specific detail (amount, failure reason). Templates that do not need
// the detail simply omit %[2]s.
type template struct {
	title string
	body  string
}

var translations = map[language.Tag]map[enums.NotificationKind]template{
	language.English: {
		enums.NotificationKindPaymentSucceeded: {
			title: "Payment received",
			body:  "We received your payment of %[2]s for order %[1]s. Your booking is confirmed.",
		},
		enums.NotificationKindPaymentFailed: {
			title: "Payment failed",
			body:  "The payment for order %[1]s did not go through (%[2]s). You can retry checkout from your order page.",
		},
		enums.NotificationKindPaymentReminder: {
			title: "Payment pending",
			body:  "Order %[1]s is still waiting for payment. Unpaid orders are cancelled automatically.",
		},
		enums.NotificationKindOrderCancelledByUser: {
			title: "Order cancelled",
			body:  "You cancelled order %[1]s.",
		},
		enums.NotificationKindOrderCancelledSystem: {
			title: "Order expired",
			body:  "Order %[1]s was cancelled because payment was not completed in time.",
		},
		enums.NotificationKindOrderCancelledStore: {
			title: "Order cancelled by store",
			body:  "The rental store cancelled order %[1]s.",
		},
		enums.NotificationKindOrderOngoing: {
			title: "Rental started",
			body:  "Your rental for order %[1]s has started. Have a safe trip.",
		},
		enums.NotificationKindOrderCompleted: {
			title: "Rental completed",
			body:  "Order %[1]s is complete. Thank you for choosing DriveAway.",
		},
		enums.NotificationKindOrderRefunded: {
			title: "Refund issued",
			body:  "A refund of %[2]s for order %[1]s has been issued.",
		},
	},
	language.Japanese: {
		enums.NotificationKindPaymentSucceeded: {
			title: "お支払いを受け付けました",
			body:  "注文 %[1]s のお支払い（%[2]s）を受け付けました。ご予約が確定しました。",
		},
		enums.NotificationKindPaymentFailed: {
			title: "お支払いに失敗しました",
			body:  "注文 %[1]s のお支払いに失敗しました（%[2]s）。注文ページから再度お支払いいただけます。",
		},
		enums.NotificationKindPaymentReminder: {
			title: "お支払い待ち",
			body:  "注文 %[1]s はお支払い待ちです。未払いの注文は自動的にキャンセルされます。",
		},
		enums.NotificationKindOrderCancelledByUser: {
			title: "注文をキャンセルしました",
			body:  "注文 %[1]s をキャンセルしました。",
		},
		enums.NotificationKindOrderCancelledSystem: {
			title: "注文の有効期限切れ",
			body:  "お支払いが期限内に完了しなかったため、注文 %[1]s はキャンセルされました。",
		},
		enums.NotificationKindOrderCancelledStore: {
			title: "店舗により注文がキャンセルされました",
			body:  "レンタル店舗が注文 %[1]s をキャンセルしました。",
		},
		enums.NotificationKindOrderOngoing: {
			title: "レンタル開始",
			body:  "注文 %[1]s のレンタルが開始しました。安全運転でお楽しみください。",
		},
		enums.NotificationKindOrderCompleted: {
			title: "レンタル完了",
			body:  "注文 %[1]s が完了しました。DriveAway をご利用いただきありがとうございました。",
		},
		enums.NotificationKindOrderRefunded: {
			title: "返金しました",
			body:  "注文 %[1]s について %[2]s を返金しました。",
		},
	},
	language.Chinese: {
		enums.NotificationKindPaymentSucceeded: {
			title: "付款成功",
			body:  "我们已收到订单 %[1]s 的付款 %[2]s，您的预订已确认。",
		},
		enums.NotificationKindPaymentFailed: {
			title: "付款失败",
			body:  "订单 %[1]s 付款失败（%[2]s）。您可以在订单页面重新付款。",
		},
		enums.NotificationKindPaymentReminder: {
			title: "等待付款",
			body:  "订单 %[1]s 仍在等待付款，未付款的订单将被自动取消。",
		},
		enums.NotificationKindOrderCancelledByUser: {
			title: "订单已取消",
			body:  "您已取消订单 %[1]s。",
		},
		enums.NotificationKindOrderCancelledSystem: {
			title: "订单已过期",
			body:  "由于未在规定时间内完成付款，订单 %[1]s 已被取消。",
		},
		enums.NotificationKindOrderCancelledStore: {
			title: "门店已取消订单",
			body:  "租车门店已取消订单 %[1]s。",
		},
		enums.NotificationKindOrderOngoing: {
			title: "租赁已开始",
			body:  "订单 %[1]s 的租赁已开始，祝您旅途愉快。",
		},
		enums.NotificationKindOrderCompleted: {
			title: "租赁已完成",
			body:  "订单 %[1]s 已完成，感谢您选择 DriveAway。",
		},
	},
}

var supportedTags = []language.Tag{language.English, language.Japanese, language.Chinese}

// Localizer renders notification text in the closest supported language.
// Keys missing from a language fall back to the default language.
type Localizer struct {
	matcher  language.Matcher
	tags     []language.Tag
	fallback language.Tag
	catalog  *catalog.Builder
}

// NewLocalizer builds the catalog. An unsupported default falls back to English.
func NewLocalizer(defaultLanguage string) *Localizer {
	fallback := language.English
	if tag, err := language.Parse(defaultLanguage); err == nil {
		for _, supported := range supportedTags {
			if supported == tag {
				fallback = tag
			}
		}
	}

	builder := catalog.NewBuilder(catalog.Fallback(fallback))
	for tag, kinds := range translations {
		for kind, tmpl := range kinds {
			_ = builder.SetString(tag, titleKey(kind), tmpl.title)
			_ = builder.SetString(tag, bodyKey(kind), tmpl.body)
		}
	}

	ordered := append([]language.Tag{fallback}, supportedTags...)
	return &Localizer{
		matcher:  language.NewMatcher(ordered),
		tags:     ordered,
		fallback: fallback,
		catalog:  builder,
	}
}

// Match resolves a stored preference to a supported language.
func (l *Localizer) Match(preference string) language.Tag {
	tag, err := language.Parse(preference)
	if err != nil {
		return l.fallback
	}
	_, idx, confidence := l.matcher.Match(tag)
	if confidence == language.No {
		return l.fallback
	}
	return l.tags[idx]
}

// Render returns the title and body for kind. It never fails: unknown kinds
// render a generic order update.
func (l *Localizer) Render(tag language.Tag, kind enums.NotificationKind, orderNumber, detail string) (string, string) {
	if !kind.IsValid() {
		return "Order update", "Order " + orderNumber + " was updated."
	}
	if _, ok := translations[tag][kind]; !ok {
		tag = l.fallback
		if _, ok := translations[tag][kind]; !ok {
			tag = language.English
		}
	}
	printer := message.NewPrinter(tag, message.Catalog(l.catalog))
	title := printer.Sprintf(titleKey(kind))
	body := printer.Sprintf(bodyKey(kind), orderNumber, detail)
	return title, body
}

func titleKey(kind enums.NotificationKind) string {
	return "notification." + string(kind) + ".title"
}

func bodyKey(kind enums.NotificationKind) string {
	return "notification." + string(kind) + ".body"
}
