package dialogue

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
)

const defaultToyName = "小悠"

// Builder 负责把孩子档案、玩具人设和会话历史组装成一次
// 大模型调用的消息列表。
type Builder struct {
	maxHistoryTurns int
}

// NewBuilder 创建消息构造器，maxHistoryTurns 控制带入的历史轮数。
func NewBuilder(maxHistoryTurns int) *Builder {
	return &Builder{maxHistoryTurns: maxHistoryTurns}
}

// Build 组装消息：系统人设 + 最近若干轮历史 + 本轮输入。
// 历史按 seq 升序排好后取尾部窗口，保证越近的对话越靠后。
func (b *Builder) Build(cc domain.ChildContext, history []domain.Turn, userText string) []*schema.Message {
	messages := make([]*schema.Message, 0, 2+len(history)*2)
	messages = append(messages, schema.SystemMessage(b.systemPrompt(cc)))

	if b.maxHistoryTurns > 0 && len(history) > b.maxHistoryTurns {
		history = history[len(history)-b.maxHistoryTurns:]
	}

	for _, t := range history {
		if t.UserText != "" {
			messages = append(messages, schema.UserMessage(t.UserText))
		}
		if t.ReplyText != "" {
			messages = append(messages, schema.AssistantMessage(t.ReplyText, nil))
		}
	}

	messages = append(messages, schema.UserMessage(userText))
	return messages
}

// systemPrompt 生成玩具人设提示词。
func (b *Builder) systemPrompt(cc domain.ChildContext) string {
	toyName := cc.ToyName
	if strings.TrimSpace(toyName) == "" {
		toyName = defaultToyName
	}
	persona := cc.ToyPersona
	if strings.TrimSpace(persona) == "" {
		persona = fmt.Sprintf("一个叫%s的温柔可爱小伙伴，会认真听小朋友说话，轻声细语，喜欢鼓励和安慰小朋友。", toyName)
	}

	gender := cc.Gender
	if strings.TrimSpace(gender) == "" {
		gender = "未知"
	}
	interests := "暂时未知"
	if len(cc.Interests) > 0 {
		interests = strings.Join(cc.Interests, ", ")
	}
	forbidden := "无特别限制"
	if len(cc.ForbiddenTopics) > 0 {
		forbidden = strings.Join(cc.ForbiddenTopics, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "你是一个儿童智能语音陪伴玩具，名字叫「%s」。", toyName)
	fmt.Fprintf(&sb, "你的性格设定：%s。", persona)
	fmt.Fprintf(&sb, "说话对象是一个大约 %d 岁的孩子，性别：%s。", cc.Age, gender)
	fmt.Fprintf(&sb, "孩子的兴趣：%s。", interests)
	fmt.Fprintf(&sb, "家长禁止谈论的话题：%s。", forbidden)
	sb.WriteString("和孩子聊天时要遵守这些原则：")
	sb.WriteString("1）用简短、温柔、具体的句子，像小朋友的好朋友一样说话；")
	sb.WriteString("2）多鼓励、多肯定，避免批评；")
	sb.WriteString("3）遇到危险、暴力、隐私、敏感内容时婉拒，并引导到安全健康的话题；")
	sb.WriteString("4）不要出现成人世界的复杂概念（如色情、血腥、极端政治等）；")
	sb.WriteString("5）一定用中文回答。")
	return sb.String()
}
