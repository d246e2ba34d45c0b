package knowledge

import (
	"context"
	_ "embed"
	"strings"
	"time"
)

// DefaultManual 是未上传自定义手册时使用的 e-stock 系统文档。
//
//go:embed default_manual.md
var DefaultManual string

// Snippet 是管理员添加的一条高优先级知识更新，可附带图片。
type Snippet struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasImage reports whether the snippet carries an image.
func (s Snippet) HasImage() bool {
	return strings.TrimSpace(s.ImageURL) != ""
}

// CompanyInfo 是对外展示的联系方式。
type CompanyInfo struct {
	Address    string `json:"address" yaml:"address"`
	Phone      string `json:"phone" yaml:"phone"`
	Email      string `json:"email" yaml:"email"`
	WhatsApp   string `json:"whatsapp" yaml:"whatsapp"`
	FooterText string `json:"footerText" yaml:"footerText"`
}

// KBItem 是一条问答式知识条目。
type KBItem struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
}

// Store 是知识库的持久化接口。found=false 表示从未写入过，调用方应使用默认值。
type Store interface {
	GetManual(ctx context.Context) (string, bool, error)
	SaveManual(ctx context.Context, text string) error
	DeleteManual(ctx context.Context) error

	GetSnippets(ctx context.Context) ([]Snippet, error)
	AddSnippet(ctx context.Context, snippet Snippet) error
	DeleteSnippet(ctx context.Context, id string) error

	GetCompanyInfo(ctx context.Context) (CompanyInfo, bool, error)
	SaveCompanyInfo(ctx context.Context, info CompanyInfo) error

	GetKBItems(ctx context.Context) ([]KBItem, bool, error)
	SaveKBItems(ctx context.Context, items []KBItem) error
}

// DefaultCompanyInfo returns the built-in contact details.
func DefaultCompanyInfo() CompanyInfo {
	return CompanyInfo{
		Address:    "برج لؤلؤة الهندسة, بجوار كلية الهندسة_شبين الكوم_المنوفية",
		Phone:      "01272000075",
		Email:      "support@modernsoft.com",
		WhatsApp:   "201223438201",
		FooterText: "© 2025 جميع الحقوق محفوظة لشركة Modern Soft.",
	}
}

// DefaultKBItems returns the seed question/answer set.
func DefaultKBItems() []KBItem {
	return []KBItem{
		{
			ID:       "1",
			Question: "أجيب منين فاتورة المبيعات؟",
			Answer:   `من قائمة [المبيعات] واختار "فاتورة المبيعات" أو اضغط على اختصار Alt+S.`,
			Tags:     []string{"sales", "pos"},
		},
	}
}
