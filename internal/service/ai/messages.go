package ai

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// DefaultImagePrompt 在用户只发送图片时作为文本部分。
const DefaultImagePrompt = "Please analyze this image in the context of e-stock system and explain what is shown or solve the error."

// Image is an inline image attached to a user turn.
type Image struct {
	MimeType string
	Data     []byte
}

// DataURI encodes the image as a data: URI.
func (img *Image) DataURI() string {
	if img == nil || len(img.Data) == 0 {
		return ""
	}
	mime := strings.TrimSpace(img.MimeType)
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// UserTurn builds the user message sent to the model. With an image the message
// is multimodal: image part first, then the text (or the default prompt).
func UserTurn(text string, img *Image) *schema.Message {
	if img == nil || len(img.Data) == 0 {
		return schema.UserMessage(text)
	}

	prompt := text
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultImagePrompt
	}
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: img.DataURI(), MIMEType: img.MimeType},
			},
			{
				Type: schema.ChatMessagePartTypeText,
				Text: prompt,
			},
		},
	}
}

// ToolResultMessage 构造工具结果消息，回传调用 ID 以便模型关联。
func ToolResultMessage(name, callID string, response map[string]any) *schema.Message {
	raw, err := json.Marshal(response)
	if err != nil {
		raw = []byte(`{"error":"unencodable tool response"}`)
	}
	return &schema.Message{
		Role:       schema.Tool,
		Content:    string(raw),
		ToolCallID: callID,
		ToolName:   name,
	}
}
