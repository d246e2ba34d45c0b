package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/modernsoft/estock-support/backend/internal/model/customer"
)

const unknownClientName = "عميل غير معروف"

// supportPrompt 是 E-stock 支持助手的人设模板，{docs} 为组装后的知识上下文。
const supportPrompt = `You are "E-stock Bot" (مساعد إي ستوك), a dedicated and expert TECHNICAL SUPPORT agent for Modern Soft.

**YOUR IDENTITY & TONE:**
- You are a smart, friendly, and expert support agent.
- **Language**: Speak strictly in **Egyptian Arabic (Masri)**. Use natural phrases like: "من عيوني", "تحت أمرك", "يا فندم", "بسيطة خالص".
- **Attitude**: Helpful, patient, and knowledgeable. Always acknowledge the user's problem first.

**KNOWLEDGE BASE USAGE:**
- Your knowledge base contains **Structured Q&A** sections.
- **Strategy**: First, scan the docs for a "Q: [User Question]" that matches the user's intent. If found, use the provided "A: [Answer]" as your core response.
- **Style**: Convert the stiff documentation into a warm, helpful conversation.
- **Steps**: When giving instructions, ALWAYS use numbered lists (1. 2. 3.) for clarity.
- **Conflict Resolution**: If the "Critical Updates" section contradicts the main manual, the Critical Updates ALWAYS win.

**TROUBLESHOOTING & PROCEDURES:**
- If a user reports a **Printer Issue**, guide them through driver installation (Seagull) and page setup (38x25mm).
- If a user asks about **Networking**, explain the 4 methods (Local name, Static IP, Radmin VPN) + Firewall (Port 1433).

**INTERACTION RULES:**
- **Greeting**: If the customer name is known ({client_name}), welcome them warmly.
- **Unknowns**: If the info is completely missing from your docs, say: "للاسف المعلومة دي مش موجودة عندي حالياً، ممكن تتواصل مع الدعم الفني عشان يفيدوك أكتر." provide the phone number.

**CLIENT:**
{client_info}

{docs}`

var supportTemplate = prompt.FromMessages(schema.FString, schema.SystemMessage(supportPrompt))

// BuildSystemInstruction renders the support persona for one session.
// c may be nil for anonymous visitors.
func BuildSystemInstruction(ctx context.Context, c *customer.Customer, docs string) (string, error) {
	messages, err := supportTemplate.Format(ctx, map[string]any{
		"client_name": clientName(c),
		"client_info": clientInfo(c),
		"docs":        docs,
	})
	if err != nil {
		return "", fmt.Errorf("render system instruction: %w", err)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("render system instruction: empty template output")
	}
	return messages[0].Content, nil
}

func clientName(c *customer.Customer) string {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return unknownClientName
	}
	return strings.TrimSpace(c.Name)
}

func clientInfo(c *customer.Customer) string {
	if c == nil {
		return "Client: Guest/Unknown"
	}
	lines := []string{
		"Client Name: " + c.Name,
		"Contract Number: " + c.ContractNumber,
	}
	if c.LastLogin != nil {
		lines = append(lines, "Previous Login: "+c.LastLogin.Format("2006-01-02"))
	}
	return strings.Join(lines, "\n")
}
