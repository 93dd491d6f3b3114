package api

// ChatRequest 是 POST /api/chat 的请求体
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatResponse 是成功响应体，两个字段都可能缺失
type ChatResponse struct {
	Response *string `json:"response,omitempty"`
	Audio    string  `json:"audio,omitempty"`
}

// Text 返回 response 字段以及它是否存在且非空
func (r *ChatResponse) Text() (string, bool) {
	if r == nil || r.Response == nil || *r.Response == "" {
		return "", false
	}
	return *r.Response, true
}

// HasAudio 报告响应是否携带音频
func (r *ChatResponse) HasAudio() bool {
	return r != nil && r.Audio != ""
}
