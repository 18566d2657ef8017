package domain

import "strings"

// Parent 家长账号，当前只按邮箱区分，不做登录。
type Parent struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt,omitempty"`
}

// Child 儿童档案。兴趣和禁止话题在库里用逗号分隔存储，
// 对外接口统一转成字符串列表。
type Child struct {
	ID              int64  `json:"id"`
	ParentID        int64  `json:"parentId"`
	Name            string `json:"name"`
	Age             int    `json:"age"`
	Gender          string `json:"gender,omitempty"` // boy/girl/other
	Interests       string `json:"interests,omitempty"`
	ForbiddenTopics string `json:"forbiddenTopics,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt,omitempty"`
}

// Device 玩具设备，按 SN 唯一，1:1 绑定一个儿童。
type Device struct {
	ID           int64  `json:"id"`
	DeviceSN     string `json:"deviceSn"`
	BoundChildID int64  `json:"boundChildId,omitempty"` // 0 表示未绑定
	ToyName      string `json:"toyName,omitempty"`
	ToyAge       string `json:"toyAge,omitempty"`
	ToyGender    string `json:"toyGender,omitempty"`
	ToyPersona   string `json:"toyPersona,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt,omitempty"`
	LastSeenAt   int64  `json:"lastSeenAt,omitempty"`
}

// ChatSession 一段对话会话，按 child 归属，结束时自动命名。
type ChatSession struct {
	ID        int64  `json:"id"`
	ChildID   int64  `json:"childId"`
	Title     string `json:"title,omitempty"`
	StartedAt int64  `json:"startedAt"`
	EndedAt   int64  `json:"endedAt,omitempty"` // 0 表示未结束
}

// 风险来源取值。
const (
	RiskSourceInput  = "input"
	RiskSourceOutput = "output"
	RiskSourceBoth   = "both"
)

// Turn 一轮对话（孩子说话 → 玩具回复），写入后不再修改。
// Seq 在会话内从 1 开始严格递增且无空洞。
type Turn struct {
	ID            int64  `json:"id"`
	SessionID     int64  `json:"sessionId"`
	DeviceID      int64  `json:"deviceId"`
	Seq           int    `json:"seq"`
	UserText      string `json:"userText"`
	ReplyText     string `json:"replyText"`
	UserAudioKey  string `json:"userAudioKey,omitempty"`
	ReplyAudioKey string `json:"replyAudioKey,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
	RiskFlag      bool   `json:"riskFlag"`
	RiskSource    string `json:"riskSource,omitempty"` // input / output / both
	RiskReason    string `json:"riskReason,omitempty"`
}

// ChildContext 单轮对话用到的孩子 + 玩具人设快照，只读，不落库。
type ChildContext struct {
	ChildID         int64
	Age             int
	Gender          string
	Interests       []string
	ForbiddenTopics []string
	ToyName         string
	ToyPersona      string
}

// SplitList 把逗号分隔字符串拆回列表，用于接口返回和上下文构造。
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// JoinList 把字符串列表压成逗号分隔字符串存库。
func JoinList(items []string) string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return strings.Join(cleaned, ",")
}
