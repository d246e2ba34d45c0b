package knowledge

import (
	"strings"
	"unicode/utf8"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
)

const (
	// DefaultManualLimit 是系统指令中手册部分的最大字符数。
	DefaultManualLimit = 150000
	// DefaultSnippetLimit 是单条知识片段的最大字符数。
	DefaultSnippetLimit = 2000

	TruncationMarker = "\n...[TRUNCATED_FOR_SIZE]..."

	docsHeader     = "=== E-STOCK SYSTEM DOCUMENTATION (BASE KNOWLEDGE) ==="
	snippetsBanner = "=== 🚨 CRITICAL UPDATES & NEW KNOWLEDGE (HIGHEST PRIORITY) ==="
	snippetsIntro  = "The following information was manually added by the admin to train you.\n" +
		"**RULE: If any information here conflicts with the system manual above, YOU MUST USE THE INFO BELOW as the correct truth.**"
	companyHeader = "=== CURRENT COMPANY INFORMATION (USE THIS FOR CONTACT INFO) ==="
	docsFooter    = "Use the above documentation to explain how features work in e-stock."
	imageMarker   = " (Has Image available)"
)

// Limits bounds the assembled context. Zero values mean the defaults.
type Limits struct {
	Manual  int
	Snippet int
}

func (l Limits) normalized() Limits {
	if l.Manual <= 0 {
		l.Manual = DefaultManualLimit
	}
	if l.Snippet <= 0 {
		l.Snippet = DefaultSnippetLimit
	}
	return l
}

// AssembleContext 按固定顺序拼接：手册 → 知识片段（非空时带优先级横幅）→ 公司信息。
// 纯函数，相同输入得到逐字节相同的输出；片段顺序保持存储返回的顺序。
func AssembleContext(manual string, snippets []knowledge.Snippet, info knowledge.CompanyInfo, limits Limits) string {
	limits = limits.normalized()
	sections := make([]string, 0, 4)

	if strings.TrimSpace(manual) != "" {
		docs, cut := truncateRunes(manual, limits.Manual)
		if cut {
			docs += TruncationMarker
		}
		sections = append(sections, docsHeader+"\n"+docs)
	}

	if len(snippets) > 0 {
		var b strings.Builder
		b.WriteString(snippetsBanner)
		b.WriteString("\n")
		b.WriteString(snippetsIntro)
		for _, sn := range snippets {
			content, cut := truncateRunes(sn.Content, limits.Snippet)
			if cut {
				content += "..."
			}
			b.WriteString("\n-[ID: ")
			b.WriteString(sn.ID)
			b.WriteString("] Content: ")
			b.WriteString(content)
			if sn.HasImage() {
				b.WriteString(imageMarker)
			}
		}
		sections = append(sections, b.String())
	}

	sections = append(sections, companyBlock(info))

	if strings.TrimSpace(manual) != "" || len(snippets) > 0 {
		sections = append(sections, docsFooter)
	}

	return strings.Join(sections, "\n\n")
}

func companyBlock(info knowledge.CompanyInfo) string {
	lines := []string{
		companyHeader,
		"Address: " + info.Address,
		"Phone: " + info.Phone,
		"Email: " + info.Email,
		"WhatsApp Number (for Demo): " + info.WhatsApp,
		"Website Footer Text: " + info.FooterText,
	}
	return strings.Join(lines, "\n")
}

// truncateRunes 按字符（而非字节）截断，避免切断多字节的阿拉伯文字符。
func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}
