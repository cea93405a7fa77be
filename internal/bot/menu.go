package bot

import tele "gopkg.in/telebot.v3"

// Ticket categories offered in the main menu. The category string ends
// up in the thread title, so staff can triage at a glance.
var categories = []string{"Question", "Problem", "Payment", "Suggestion", "Other"}

var (
	btnNewTicket   = tele.Btn{Unique: "new_ticket", Text: "📨 New ticket"}
	btnProfile     = tele.Btn{Unique: "profile", Text: "👤 My profile"}
	btnReviewWall  = tele.Btn{Unique: "review_wall", Text: "⭐ Reviews"}
	btnLeaveReview = tele.Btn{Unique: "leave_review", Text: "✍️ Leave a review"}
	btnCancel      = tele.Btn{Unique: "cancel_flow", Text: "❌ Cancel"}

	btnCategory = tele.Btn{Unique: "category"}

	btnBroadcastGo    = tele.Btn{Unique: "broadcast_go", Text: "✅ Send"}
	btnBroadcastAbort = tele.Btn{Unique: "broadcast_abort", Text: "❌ Abort"}
)

func mainMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnNewTicket),
		menu.Row(btnProfile, btnReviewWall),
		menu.Row(btnLeaveReview, btnCancel),
	)
	return menu
}

func categoryMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(categories)+1)
	for _, cat := range categories {
		rows = append(rows, menu.Row(menu.Data(cat, btnCategory.Unique, cat)))
	}
	rows = append(rows, menu.Row(btnCancel))
	menu.Inline(rows...)
	return menu
}

func broadcastConfirmMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnBroadcastGo, btnBroadcastAbort))
	return menu
}
