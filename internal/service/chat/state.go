package chat

import "errors"

// State 是会话状态机的状态。
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAwaitingModel
	StateExecutingTools
	StateFinalizing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a turn is in flight.
func (s State) Busy() bool {
	return s == StateAwaitingModel || s == StateExecutingTools
}

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionBusy        = errors.New("session is processing another turn")
	ErrSessionClosed      = errors.New("session is closed")
	ErrSessionUnavailable = errors.New("session failed to initialize")
	ErrEmptyTurn          = errors.New("turn needs text or an image")
	ErrImageTooLarge      = errors.New("image exceeds size limit")
)

// 固定的本地化提示文本。
const (
	GreetingText = "أهلاً بحضرتك في الدعم الفني لشركة Modern Soft 🧡\n" +
		"معاك المساعد الذكي لنظام E-stock، وأنا هنا عشان أساعدك في أي وقت.\n\n" +
		"عشان أقدر أخدمك بأفضل شكل، ممكن أتشرف ببيانات حضرتك؟\n" +
		"(الاسم، اسم الصيدلية، رقم التليفون، والعنوان)\n\n" +
		"وبعدها أمرني، أنا معاك."
	MissingCredentialText = "عذراً، لم يتم العثور على مفتاح API. يرجى التحقق من الإعدادات."
	InitErrorText         = "بعتذر جداً، حصل خطأ تقني بسيط أثناء التحميل. ممكن تعمل تحديث للصفحة؟"
	ApologyText           = "معلش في مشكلة بسيطة في الاتصال، ممكن تحاول تاني؟"
	ToolLoopText          = "معلش، الطلب ده محتاج خطوات كتير أوي ومقدرتش أكمله. ممكن توضح سؤالك بشكل أبسط؟"
	ImageTooLargeText     = "عفواً، حجم الصورة كبير جداً. يرجى اختيار صورة أقل من 1 ميجابايت."
)
