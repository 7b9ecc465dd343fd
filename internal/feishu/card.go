package feishu

import (
	"encoding/json"
	"fmt"
)

// Card is a Feishu interactive message card.
type Card struct {
	Config   CardConfig    `json:"config"`
	Header   CardHeader    `json:"header"`
	Elements []CardElement `json:"elements"`
}

type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template"`
}

type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// CardElement is one block of the card body. Tag decides which of the
// optional fields apply.
type CardElement struct {
	Tag    string    `json:"tag"`
	Text   *CardText `json:"text,omitempty"`
	ImgKey string    `json:"img_key,omitempty"`
	Mode   string    `json:"mode,omitempty"`
	Alt    *CardText `json:"alt,omitempty"`
}

// BuildAnswerCard assembles the Q/A reply card: the question and answer as
// lark_md blocks, then a divider and one image block per uploaded key.
func BuildAnswerCard(question, answer string, imageKeys []string) Card {
	elements := []CardElement{
		{Tag: "div", Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**🙋 问：%s**", question)}},
		{Tag: "div", Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**🤖 答：**\n%s", answer)}},
	}

	if len(imageKeys) > 0 {
		elements = append(elements, CardElement{Tag: "hr"})
		for _, key := range imageKeys {
			elements = append(elements, CardElement{
				Tag:    "img",
				ImgKey: key,
				Mode:   "fit_horizontal",
				Alt:    &CardText{Tag: "plain_text", Content: "相关插图"},
			})
		}
	}

	return Card{
		Config: CardConfig{WideScreenMode: true},
		Header: CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "📄 视觉全流程助手"},
			Template: "blue",
		},
		Elements: elements,
	}
}

// Encode renders the card as the JSON payload the reply endpoint expects.
func (c Card) Encode() ([]byte, error) {
	return json.Marshal(c)
}
